package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/gogh-ml/gogh/internal/tensor"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

// SafeTensorsDType represents supported SafeTensors data types.
type SafeTensorsDType string

// Supported SafeTensors dtypes.
const (
	SafeTensorsF16  SafeTensorsDType = "F16"
	SafeTensorsF32  SafeTensorsDType = "F32"
	SafeTensorsF64  SafeTensorsDType = "F64"
	SafeTensorsBF16 SafeTensorsDType = "BF16"
)

// SafeTensorInfo describes a tensor in SafeTensors format.
type SafeTensorInfo struct {
	DType       SafeTensorsDType `json:"dtype"`
	Shape       []int            `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"` // [start, end]
}

// SafeTensorsHeader is the JSON header in SafeTensors format.
type SafeTensorsHeader struct {
	Metadata map[string]string          `json:"__metadata__"`
	Tensors  map[string]SafeTensorInfo  `json:"-"`
	RawMap   map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom JSON unmarshaling for SafeTensorsHeader.
func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	// First parse as generic map
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}
	h.RawMap = rawMap

	// Extract metadata
	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	// Extract tensors (everything except __metadata__)
	h.Tensors = make(map[string]SafeTensorInfo)
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info SafeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}

	return nil
}

// SafeTensorsReader reads SafeTensors format files.
type SafeTensorsReader struct {
	file       *os.File
	header     SafeTensorsHeader
	headerSize uint64
	dataOffset int64 // Offset where tensor data starts
}

// NewSafeTensorsReader creates a new SafeTensors reader.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	// Read header size (8 bytes, little-endian uint64)
	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}

	// Validate header size (should be reasonable, < 100MB)
	if headerSize > 100*1024*1024 {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("invalid header size: %d (too large)", headerSize)
	}

	// Read header JSON
	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Parse header
	var header SafeTensorsHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	dataOffset := int64(8 + headerSize) //nolint:gosec // G115: File offset conversion safe - file size within int64 range.

	return &SafeTensorsReader{
		file:       file,
		header:     header,
		headerSize: headerSize,
		dataOffset: dataOffset,
	}, nil
}

// Close closes the SafeTensors file.
func (r *SafeTensorsReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the metadata map from the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns a list of all tensor names in the file.
func (r *SafeTensorsReader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	return names
}

// HasTensor reports whether a tensor with the given name exists.
func (r *SafeTensorsReader) HasTensor(name string) bool {
	_, ok := r.header.Tensors[name]
	return ok
}

// TensorInfo returns information about a specific tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (*SafeTensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return &info, nil
}

// ReadTensorData reads raw tensor data for a given tensor name.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	// Calculate absolute offsets
	start := r.dataOffset + info.DataOffsets[0]
	end := r.dataOffset + info.DataOffsets[1]
	size := end - start

	if size < 0 {
		return nil, fmt.Errorf("invalid data offsets for tensor %s: [%d, %d]",
			name, info.DataOffsets[0], info.DataOffsets[1])
	}

	if _, err := r.file.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r.file, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	return data, nil
}

// LoadTensor loads a tensor from the SafeTensors file.
//
// F32 and F64 tensors are loaded directly. F16 and BF16 checkpoints are
// widened to float32 so the rest of the framework stays in full
// precision.
func (r *SafeTensorsReader) LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	shape := tensor.Shape(info.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}

	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	switch info.DType {
	case SafeTensorsF32:
		return rawFromBytes(shape, tensor.Float32, backend.Device(), data, 4, name)
	case SafeTensorsF64:
		return rawFromBytes(shape, tensor.Float64, backend.Device(), data, 8, name)
	case SafeTensorsF16:
		return rawFromHalf(shape, backend.Device(), data, name, float16ToFloat32)
	case SafeTensorsBF16:
		return rawFromHalf(shape, backend.Device(), data, name, bfloat16ToFloat32)
	default:
		return nil, fmt.Errorf("unsupported dtype %s for tensor %s", info.DType, name)
	}
}

// rawFromBytes copies little-endian tensor bytes directly into a RawTensor.
func rawFromBytes(shape tensor.Shape, dtype tensor.DataType, device tensor.Device, data []byte, elemSize int, name string) (*tensor.RawTensor, error) {
	if len(data) != shape.NumElements()*elemSize {
		return nil, fmt.Errorf("tensor %s: data size %d does not match shape %v", name, len(data), shape)
	}

	raw, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	copy(raw.Data(), data)
	return raw, nil
}

// rawFromHalf widens 16-bit floats to a float32 RawTensor.
func rawFromHalf(shape tensor.Shape, device tensor.Device, data []byte, name string, convert func(uint16) float32) (*tensor.RawTensor, error) {
	if len(data) != shape.NumElements()*2 {
		return nil, fmt.Errorf("tensor %s: data size %d does not match shape %v", name, len(data), shape)
	}

	raw, err := tensor.NewRaw(shape, tensor.Float32, device)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	out := raw.AsFloat32()
	for i := range out {
		bits := binary.LittleEndian.Uint16(data[i*2:])
		out[i] = convert(bits)
	}

	return raw, nil
}

// float16ToFloat32 converts IEEE 754 half precision bits to float32.
func float16ToFloat32(bits uint16) float32 {
	sign := uint32(bits>>15) & 1
	exp := uint32(bits>>10) & 0x1f
	frac := uint32(bits) & 0x3ff

	var bits32 uint32
	switch exp {
	case 0:
		if frac == 0 {
			// Signed zero
			bits32 = sign << 31
		} else {
			// Subnormal: normalize
			e := uint32(127 - 15 + 1)
			for frac&0x400 == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3ff
			bits32 = sign<<31 | e<<23 | frac<<13
		}
	case 0x1f:
		// Inf or NaN
		bits32 = sign<<31 | 0xff<<23 | frac<<13
	default:
		bits32 = sign<<31 | (exp-15+127)<<23 | frac<<13
	}

	return math.Float32frombits(bits32)
}

// bfloat16ToFloat32 converts brain-float bits to float32.
// BF16 is the upper half of the float32 bit pattern.
func bfloat16ToFloat32(bits uint16) float32 {
	return math.Float32frombits(uint32(bits) << 16)
}

package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/gogh-ml/gogh/internal/tensor"
)

// WriteSafeTensors writes a set of named tensors to a safetensors file.
//
// Tensors are laid out in alphabetical name order after the JSON
// header. Only F32 and F64 payloads are written; the half-precision
// dtypes exist solely for reading published checkpoints.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	if len(tensors) == 0 {
		return fmt.Errorf("no tensors to write")
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(tensors)+1)
	if len(metadata) > 0 {
		header["__metadata__"] = metadata
	}

	var offset int64
	for _, name := range names {
		raw := tensors[name]

		dtype, err := safetensorsDType(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}

		size := int64(len(raw.Data()))

		header[name] = SafeTensorInfo{
			DType:       dtype,
			Shape:       []int(raw.Shape().Clone()),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	//nolint:gosec // G304: checkpoint paths are user input by design
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := writePayload(file, headerJSON, names, tensors); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return file.Close()
}

func writePayload(file *os.File, headerJSON []byte, names []string, tensors map[string]*tensor.RawTensor) error {
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(len(headerJSON)))

	if _, err := file.Write(sizeBuf[:]); err != nil {
		return err
	}
	if _, err := file.Write(headerJSON); err != nil {
		return err
	}
	for _, name := range names {
		if _, err := file.Write(tensors[name].Data()); err != nil {
			return err
		}
	}
	return nil
}

func safetensorsDType(dtype tensor.DataType) (SafeTensorsDType, error) {
	switch dtype {
	case tensor.Float32:
		return SafeTensorsF32, nil
	case tensor.Float64:
		return SafeTensorsF64, nil
	default:
		return "", fmt.Errorf("unsupported dtype %v", dtype)
	}
}

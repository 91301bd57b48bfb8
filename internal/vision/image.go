// Package vision converts between image files and image tensors.
//
// Images are represented as [1, 3, H, W] float32 tensors in RGB channel
// order with values in [0, 1]. Decoding supports PNG and JPEG; resizing
// uses Catmull-Rom interpolation, which preserves edges better than
// bilinear at the cost of a little ringing.
package vision

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/gogh-ml/gogh/internal/backend/webgpu"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// Working resolutions. Feature extraction at 512x512 is only practical
// with GPU acceleration; the CPU fallback works at 128x128.
const (
	GPUSize = 512
	CPUSize = 128
)

// DefaultSize returns the working image resolution for this machine:
// 512 when a GPU adapter is available, 128 otherwise.
func DefaultSize() int {
	if webgpu.IsAvailable() {
		return GPUSize
	}
	return CPUSize
}

// Load decodes a PNG or JPEG file, resizes it to size x size and returns
// a [1, 3, size, size] float32 tensor with values in [0, 1].
func Load[B tensor.Backend](path string, size int, backend B) (*tensor.Tensor[float32, B], error) {
	//nolint:gosec // G304: image paths are user input by design
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vision: failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("vision: failed to decode %s: %w", path, err)
	}

	return FromImage(img, size, backend)
}

// FromImage resizes a decoded image to size x size and converts it to a
// [1, 3, size, size] tensor.
func FromImage[B tensor.Backend](img image.Image, size int, backend B) (*tensor.Tensor[float32, B], error) {
	if size <= 0 {
		return nil, fmt.Errorf("vision: invalid size %d", size)
	}

	resized := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	raw, err := tensor.NewRaw(tensor.Shape{1, 3, size, size}, tensor.Float32, backend.Device())
	if err != nil {
		return nil, fmt.Errorf("vision: failed to create tensor: %w", err)
	}

	data := raw.AsFloat32()
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			offset := resized.PixOffset(x, y)
			idx := y*size + x
			data[idx] = float32(resized.Pix[offset]) / 255.0
			data[plane+idx] = float32(resized.Pix[offset+1]) / 255.0
			data[2*plane+idx] = float32(resized.Pix[offset+2]) / 255.0
		}
	}

	return tensor.New[float32, B](raw, backend), nil
}

// ToImage converts a [1, 3, H, W] tensor back to an image. Values are
// clamped to [0, 1] before quantization.
func ToImage[B tensor.Backend](t *tensor.Tensor[float32, B]) (*image.NRGBA, error) {
	shape := t.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 {
		return nil, fmt.Errorf("vision: expected [1,3,H,W] tensor, got %v", shape)
	}

	height, width := shape[2], shape[3]
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	data := t.Raw().AsFloat32()
	plane := height * width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			offset := img.PixOffset(x, y)
			img.Pix[offset] = quantize(data[idx])
			img.Pix[offset+1] = quantize(data[plane+idx])
			img.Pix[offset+2] = quantize(data[2*plane+idx])
			img.Pix[offset+3] = 0xff
		}
	}

	return img, nil
}

// quantize maps a [0,1] float to a byte, clamping out-of-range values.
func quantize(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Save writes an image to disk; the format follows the file extension
// (.png, .jpg or .jpeg).
func Save(img image.Image, path string) error {
	//nolint:gosec // G304: output paths are user input by design
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vision: failed to create %s: %w", path, err)
	}

	var encodeErr error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		encodeErr = png.Encode(file, img)
	case ".jpg", ".jpeg":
		encodeErr = jpeg.Encode(file, img, &jpeg.Options{Quality: 95})
	default:
		encodeErr = fmt.Errorf("unsupported image extension %q", filepath.Ext(path))
	}
	if encodeErr != nil {
		file.Close()
		return fmt.Errorf("vision: failed to write %s: %w", path, encodeErr)
	}

	return file.Close()
}

// Package loader provides pretrained weight loading for the Gogh ML framework.
//
// This package implements a reader for the SafeTensors format (the
// Hugging Face standard), which is how pretrained convolutional
// checkpoints are distributed:
//
//	reader, err := loader.NewSafeTensorsReader("vgg19.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reader.Close()
//
//	raw, err := reader.LoadTensor("features.0.weight", backend)
//
// Design principles:
//   - Pure Go: No CGO dependencies
//   - Lazy loading: Tensors are read on demand
//   - Type safety: F16/BF16 checkpoints are widened to float32 on load
package loader

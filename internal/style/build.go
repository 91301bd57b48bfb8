package style

import (
	"fmt"
	"sort"

	"github.com/gogh-ml/gogh/internal/autodiff"
	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// DefaultContentLayers returns the convolution depths that receive a
// content probe by default.
func DefaultContentLayers() []string {
	return []string{"conv_4"}
}

// DefaultStyleLayers returns the convolution depths that receive a
// style probe by default.
func DefaultStyleLayers() []string {
	return []string{"conv_1", "conv_2", "conv_3", "conv_4", "conv_5"}
}

// Model is an assembled style-transfer graph: a normalization stage,
// the extractor's layers in their original order, and loss probes
// spliced in after the requested depths. The graph is truncated right
// after the last probe; layers beyond it would never influence a loss.
type Model[B tensor.Backend] struct {
	graph         *nn.Sequential[B]
	contentProbes []*ContentLoss[B]
	styleProbes   []*StyleLoss[B]
}

// Forward evaluates the graph. Every probe updates its loss slot as a
// side effect; the returned tensor is the output of the last stage and
// is usually discarded.
func (m *Model[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return m.graph.Forward(input)
}

// Graph returns the underlying layer sequence.
func (m *Model[B]) Graph() *nn.Sequential[B] {
	return m.graph
}

// ContentProbes returns the content probes in depth order.
func (m *Model[B]) ContentProbes() []*ContentLoss[B] {
	return m.contentProbes
}

// StyleProbes returns the style probes in depth order.
func (m *Model[B]) StyleProbes() []*StyleLoss[B] {
	return m.styleProbes
}

// Build assembles a style-transfer model from a pretrained extractor.
//
// The extractor's layers are walked in order with a counter incremented
// on every convolution; each layer is named conv_i, relu_i or pool_i
// from the counter. Convolutions are deep-copied so the caller's
// extractor is never mutated, and in-place activations are replaced
// with out-of-place ones so a probe appended after them reads an
// unclobbered tensor. Any other layer kind is an error.
//
// Whenever a layer's name appears in contentLayers (styleLayers), the
// graph built so far runs on the content (style) image with recording
// disabled, the result is detached and frozen into a new probe, and the
// probe is appended. Targets are captured exactly once, here; the
// optimization loop never recomputes them.
//
// Passing nil layer lists selects the defaults: content at conv_4,
// style at conv_1 through conv_5.
func Build[B autodiff.BackwardCapable](
	extractor *nn.Sequential[B],
	mean, std [3]float32,
	content, styleImg *tensor.Tensor[float32, B],
	contentLayers, styleLayers []string,
	backend B,
) (*Model[B], error) {
	if contentLayers == nil {
		contentLayers = DefaultContentLayers()
	}
	if styleLayers == nil {
		styleLayers = DefaultStyleLayers()
	}
	if len(contentLayers)+len(styleLayers) == 0 {
		return nil, fmt.Errorf("style: no probe layers requested")
	}

	// Target capture must not leave ops on the tape.
	tape := backend.GetTape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	norm, err := NewNormalization(mean, std, backend)
	if err != nil {
		return nil, err
	}

	contentWanted := toNameSet(contentLayers)
	styleWanted := toNameSet(styleLayers)

	model := &Model[B]{graph: nn.NewSequential[B](norm)}
	convDepth := 0
	lastProbe := 0

	for i, layer := range extractor.Modules() {
		var name string
		switch m := layer.(type) {
		case *nn.Conv2D[B]:
			convDepth++
			name = fmt.Sprintf("conv_%d", convDepth)
			model.graph.Add(m.Clone())
		case *nn.ReLU[B]:
			name = fmt.Sprintf("relu_%d", convDepth)
			model.graph.Add(nn.NewReLU[B](false))
		case *nn.MaxPool2D[B]:
			name = fmt.Sprintf("pool_%d", convDepth)
			model.graph.Add(nn.NewMaxPool2D(m.KernelSize(), m.Stride(), backend))
		default:
			return nil, fmt.Errorf("style: unsupported layer kind %T at position %d", layer, i)
		}

		if contentWanted[name] {
			delete(contentWanted, name)
			target := model.graph.Forward(content).Detach()
			probe := NewContentLoss(target)
			model.graph.Add(probe)
			model.contentProbes = append(model.contentProbes, probe)
			lastProbe = model.graph.Len()
		}

		if styleWanted[name] {
			delete(styleWanted, name)
			target := model.graph.Forward(styleImg)
			probe := NewStyleLoss(target)
			model.graph.Add(probe)
			model.styleProbes = append(model.styleProbes, probe)
			lastProbe = model.graph.Len()
		}
	}

	if len(contentWanted) > 0 || len(styleWanted) > 0 {
		return nil, fmt.Errorf("style: requested layers not found in extractor: %v",
			append(sortedNames(contentWanted), sortedNames(styleWanted)...))
	}

	// Everything after the last probe is dead weight.
	model.graph = nn.NewSequential(model.graph.Modules()[:lastProbe]...)

	return model, nil
}

func toNameSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

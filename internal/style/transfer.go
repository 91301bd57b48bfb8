package style

import (
	"fmt"
	"log"

	"github.com/gogh-ml/gogh/internal/autodiff"
	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/optim"
	"github.com/gogh-ml/gogh/internal/tensor"
	"github.com/gogh-ml/gogh/internal/vgg"
)

// Transfer loop defaults.
const (
	DefaultIterations    = 300
	DefaultStyleWeight   = 1e6
	DefaultContentWeight = 1
	DefaultLogEvery      = 50
)

// TransferConfig controls the optimization loop. The zero value selects
// the defaults: 300 iterations, style weight 1e6, content weight 1,
// ImageNet normalization constants, content probe at conv_4 and style
// probes at conv_1 through conv_5, progress logged every 50 iterations.
//
// The style weight dwarfs the content weight because style losses are
// orders of magnitude smaller than content losses at matched visual
// strength.
type TransferConfig struct {
	Iterations    int
	StyleWeight   float32
	ContentWeight float32

	// ContentLayers and StyleLayers name the convolution depths that
	// receive probes. nil selects the defaults; an empty non-nil slice
	// requests no probes of that kind.
	ContentLayers []string
	StyleLayers   []string

	// Mean and Std override the normalization constants. Both zero
	// selects the ImageNet statistics the extractor was trained with.
	Mean [3]float32
	Std  [3]float32

	// Progress receives (iteration, style score, content score) every
	// LogEvery iterations. nil logs through the stdlib logger.
	Progress func(iteration int, styleScore, contentScore float32)
	LogEvery int
}

func (c *TransferConfig) applyDefaults() {
	if c.Iterations == 0 {
		c.Iterations = DefaultIterations
	}
	if c.StyleWeight == 0 {
		c.StyleWeight = DefaultStyleWeight
	}
	if c.ContentWeight == 0 {
		c.ContentWeight = DefaultContentWeight
	}
	if c.Mean == ([3]float32{}) && c.Std == ([3]float32{}) {
		c.Mean = vgg.ImageNetMean
		c.Std = vgg.ImageNetStd
	}
	if c.LogEvery == 0 {
		c.LogEvery = DefaultLogEvery
	}
	if c.Progress == nil {
		c.Progress = func(iteration int, styleScore, contentScore float32) {
			log.Printf("style transfer: iteration %d, style loss %.4f, content loss %.4f",
				iteration, styleScore, contentScore)
		}
	}
}

// Transfer runs optimization-based style transfer and returns the
// stylized image. The working image starts as a copy of the content
// image; use TransferFrom to start from something else.
func Transfer[B autodiff.BackwardCapable](
	extractor *nn.Sequential[B],
	content, styleImg *tensor.Tensor[float32, B],
	config TransferConfig,
	backend B,
) (*tensor.Tensor[float32, B], error) {
	return TransferFrom(extractor, content, styleImg, nil, config, backend)
}

// TransferFrom is Transfer with an explicit starting image, usually
// white noise or a previous result. The start image must match the
// content image's dimensions and is not mutated; the loop works on a
// copy.
//
// The image's pixels are the only trainable parameter: the extractor's
// weights and every probe target stay frozen for the whole run. Each
// iteration clamps the pixels to [0, 1], re-evaluates the assembled
// graph, aggregates the probe losses with the configured weights and
// hands loss plus pixel gradient to an L-BFGS optimizer.
func TransferFrom[B autodiff.BackwardCapable](
	extractor *nn.Sequential[B],
	content, styleImg, start *tensor.Tensor[float32, B],
	config TransferConfig,
	backend B,
) (*tensor.Tensor[float32, B], error) {
	if !content.Shape().Equal(styleImg.Shape()) {
		return nil, fmt.Errorf("style: content %v and style %v images must have identical dimensions",
			content.Shape(), styleImg.Shape())
	}
	if start != nil && !start.Shape().Equal(content.Shape()) {
		return nil, fmt.Errorf("style: start image %v must match content dimensions %v",
			start.Shape(), content.Shape())
	}

	config.applyDefaults()

	model, err := Build(extractor, config.Mean, config.Std,
		content, styleImg, config.ContentLayers, config.StyleLayers, backend)
	if err != nil {
		return nil, err
	}

	working := content.Clone()
	if start != nil {
		working = start.Clone()
	}
	working.RequireGrad()

	pixels := nn.NewParameter("pixels", working)
	optimizer := optim.NewLBFGS([]*nn.Parameter[B]{pixels}, optim.LBFGSConfig{}, backend)

	tape := backend.GetTape()
	iteration := 0

	closure := func() (float32, map[*tensor.RawTensor]*tensor.RawTensor, error) {
		// Project the previous step's update back onto the pixel domain.
		working.Clamp(0, 1)

		tape.Clear()
		tape.StartRecording()
		model.Forward(working)

		styleScore := sumLosses(styleLosses(model.StyleProbes()))
		contentScore := sumLosses(contentLosses(model.ContentProbes()))

		total := weigh(styleScore, config.StyleWeight)
		if weighted := weigh(contentScore, config.ContentWeight); weighted != nil {
			if total == nil {
				total = weighted
			} else {
				total = total.Add(weighted)
			}
		}
		tape.StopRecording()

		grads := autodiff.Backward(total, backend)

		iteration++
		if iteration%config.LogEvery == 0 {
			config.Progress(iteration, scoreValue(styleScore), scoreValue(contentScore))
		}

		return total.Item(), grads, nil
	}

	for iteration < config.Iterations {
		if _, err := optimizer.Step(closure); err != nil {
			return nil, err
		}
	}

	working.Clamp(0, 1)
	return working.Detach(), nil
}

func contentLosses[B tensor.Backend](probes []*ContentLoss[B]) []*tensor.Tensor[float32, B] {
	losses := make([]*tensor.Tensor[float32, B], len(probes))
	for i, probe := range probes {
		losses[i] = probe.Loss()
	}
	return losses
}

func styleLosses[B tensor.Backend](probes []*StyleLoss[B]) []*tensor.Tensor[float32, B] {
	losses := make([]*tensor.Tensor[float32, B], len(probes))
	for i, probe := range probes {
		losses[i] = probe.Loss()
	}
	return losses
}

// sumLosses adds scalar loss tensors through tape-recorded ops so the
// aggregate stays differentiable. Returns nil for an empty slice.
func sumLosses[B tensor.Backend](losses []*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	var sum *tensor.Tensor[float32, B]
	for _, loss := range losses {
		if sum == nil {
			sum = loss
		} else {
			sum = sum.Add(loss)
		}
	}
	return sum
}

func weigh[B tensor.Backend](score *tensor.Tensor[float32, B], weight float32) *tensor.Tensor[float32, B] {
	if score == nil {
		return nil
	}
	return score.MulScalar(weight)
}

func scoreValue[B tensor.Backend](score *tensor.Tensor[float32, B]) float32 {
	if score == nil {
		return 0
	}
	return score.Item()
}

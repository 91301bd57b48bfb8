package style

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogh-ml/gogh/internal/autodiff"
	"github.com/gogh-ml/gogh/internal/backend/cpu"
	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/tensor"
)

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func testBackend() adBackend {
	return autodiff.New(cpu.New())
}

// testImage fills a tensor with a deterministic [0,1] pattern; phase
// makes two images differ.
func testImage(shape tensor.Shape, phase float64, backend adBackend) *tensor.Tensor[float32, adBackend] {
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32(0.5 + 0.45*math.Sin(phase+float64(i)*0.37))
	}
	img, err := tensor.FromSlice(data, shape, backend)
	if err != nil {
		panic(err)
	}
	return img
}

func TestNormalization_Forward(t *testing.T) {
	backend := testBackend()

	norm, err := NewNormalization([3]float32{0.5, 0.5, 0.5}, [3]float32{0.5, 0.25, 0.1}, backend)
	require.NoError(t, err)

	input := tensor.Full[float32](tensor.Shape{1, 3, 2, 2}, 1.0, backend)
	output := norm.Forward(input)

	require.Equal(t, tensor.Shape{1, 3, 2, 2}, output.Shape())
	assert.InDelta(t, 1.0, output.At(0, 0, 0, 0), 1e-5)
	assert.InDelta(t, 2.0, output.At(0, 1, 0, 0), 1e-5)
	assert.InDelta(t, 5.0, output.At(0, 2, 1, 1), 1e-5)
}

func TestNormalization_ZeroStd(t *testing.T) {
	backend := testBackend()

	_, err := NewNormalization([3]float32{0, 0, 0}, [3]float32{1, 0, 1}, backend)
	assert.Error(t, err)
}

func TestNormalization_NoParameters(t *testing.T) {
	backend := testBackend()

	norm, err := NewNormalization([3]float32{0, 0, 0}, [3]float32{1, 1, 1}, backend)
	require.NoError(t, err)
	assert.Empty(t, norm.Parameters())
}

func TestGramMatrix_KnownValues(t *testing.T) {
	backend := testBackend()

	// Two channels with flattened rows [1,2] and [3,4]:
	//   G = [[5, 11], [11, 25]] / (2*1*2)
	features, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 2, 1, 2}, backend)
	require.NoError(t, err)

	gram := GramMatrix(features)
	require.Equal(t, tensor.Shape{2, 2}, gram.Shape())

	assert.InDelta(t, 1.25, gram.At(0, 0), 1e-5)
	assert.InDelta(t, 2.75, gram.At(0, 1), 1e-5)
	assert.InDelta(t, 2.75, gram.At(1, 0), 1e-5)
	assert.InDelta(t, 6.25, gram.At(1, 1), 1e-5)
}

func TestGramMatrix_SymmetricNonNegativeDiagonal(t *testing.T) {
	backend := testBackend()
	features := testImage(tensor.Shape{1, 4, 5, 6}, 1.3, backend)

	gram := GramMatrix(features)
	require.Equal(t, tensor.Shape{4, 4}, gram.Shape())

	for i := 0; i < 4; i++ {
		assert.GreaterOrEqual(t, gram.At(i, i), float32(0))
		for j := 0; j < 4; j++ {
			assert.InDelta(t, gram.At(i, j), gram.At(j, i), 1e-5)
		}
	}
}

func TestGramMatrix_RejectsBatchedInput(t *testing.T) {
	backend := testBackend()
	features := tensor.Ones[float32](tensor.Shape{2, 3, 4, 4}, backend)

	assert.Panics(t, func() {
		GramMatrix(features)
	})
}

func TestContentLoss_ZeroAtTarget(t *testing.T) {
	backend := testBackend()
	target := testImage(tensor.Shape{1, 4, 6, 6}, 0.2, backend)

	probe := NewContentLoss(target)
	output := probe.Forward(target.Clone())

	require.NotNil(t, probe.Loss())
	assert.InDelta(t, 0.0, probe.Loss().Item(), 1e-7)
	assert.Equal(t, target.Shape(), output.Shape())
}

func TestContentLoss_KnownValue(t *testing.T) {
	backend := testBackend()
	target := tensor.Zeros[float32](tensor.Shape{1, 1, 2, 2}, backend)
	input := tensor.Full[float32](tensor.Shape{1, 1, 2, 2}, 3.0, backend)

	probe := NewContentLoss(target)
	probe.Forward(input)

	assert.InDelta(t, 9.0, probe.Loss().Item(), 1e-5)
}

func TestContentLoss_PassThrough(t *testing.T) {
	backend := testBackend()
	target := testImage(tensor.Shape{1, 2, 3, 3}, 0.7, backend)
	input := testImage(tensor.Shape{1, 2, 3, 3}, 1.9, backend)

	probe := NewContentLoss(target)
	output := probe.Forward(input)

	// Identity pass-through: downstream layers see the exact input.
	assert.Same(t, input, output)
}

func TestContentLoss_TargetFrozen(t *testing.T) {
	backend := testBackend()
	target := testImage(tensor.Shape{1, 2, 3, 3}, 0.7, backend)

	probe := NewContentLoss(target)
	before := append([]float32(nil), probe.Target().Data()...)

	probe.Forward(testImage(tensor.Shape{1, 2, 3, 3}, 1.1, backend))
	probe.Forward(testImage(tensor.Shape{1, 2, 3, 3}, 2.3, backend))

	assert.Equal(t, before, probe.Target().Data())
}

func TestStyleLoss_ZeroAtTarget(t *testing.T) {
	backend := testBackend()
	target := testImage(tensor.Shape{1, 3, 4, 4}, 0.4, backend)

	probe := NewStyleLoss(target)
	probe.Forward(target.Clone())

	require.NotNil(t, probe.Loss())
	assert.InDelta(t, 0.0, probe.Loss().Item(), 1e-7)
}

func TestStyleLoss_PassThrough(t *testing.T) {
	backend := testBackend()
	target := testImage(tensor.Shape{1, 3, 4, 4}, 0.4, backend)
	input := testImage(tensor.Shape{1, 3, 4, 4}, 2.6, backend)

	probe := NewStyleLoss(target)
	output := probe.Forward(input)

	assert.Same(t, input, output)
}

func TestStyleLoss_TargetIsGramMatrix(t *testing.T) {
	backend := testBackend()
	target := testImage(tensor.Shape{1, 3, 4, 4}, 0.4, backend)

	probe := NewStyleLoss(target)

	require.Equal(t, tensor.Shape{3, 3}, probe.Target().Shape())

	expected := GramMatrix(target)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, expected.At(i, j), probe.Target().At(i, j), 1e-6)
		}
	}
}

func TestStyleLoss_SpatialInvariance(t *testing.T) {
	backend := testBackend()

	// A feature map and a spatially permuted copy share Gram statistics.
	features, err := tensor.FromSlice(
		[]float32{1, 2, 3, 4, 5, 6, 7, 8},
		tensor.Shape{1, 2, 2, 2}, backend)
	require.NoError(t, err)

	permuted, err := tensor.FromSlice(
		[]float32{4, 3, 2, 1, 8, 7, 6, 5},
		tensor.Shape{1, 2, 2, 2}, backend)
	require.NoError(t, err)

	probe := NewStyleLoss(features)
	probe.Forward(permuted)

	assert.InDelta(t, 0.0, probe.Loss().Item(), 1e-6)
}

func TestProbes_NoParameters(t *testing.T) {
	backend := testBackend()
	target := testImage(tensor.Shape{1, 2, 3, 3}, 0.5, backend)

	var content nn.Module[adBackend] = NewContentLoss(target)
	var styleProbe nn.Module[adBackend] = NewStyleLoss(target)

	assert.Empty(t, content.Parameters())
	assert.Empty(t, styleProbe.Parameters())
}

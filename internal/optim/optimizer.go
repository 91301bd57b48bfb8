// Package optim implements optimization algorithms for iterative image
// optimization.
//
// This package provides:
//   - Optimizer interface: closure-driven optimizers
//   - LBFGS: Limited-memory BFGS with strong Wolfe line search
//   - Adam: Adaptive Moment Estimation
//
// Design inspired by PyTorch's torch.optim but adapted for Go with type safety.
//
// Optimizers here are closure-driven: Step receives a function that
// re-evaluates the loss and gradients at the current parameter values.
// L-BFGS needs this because its line search probes trial points, and
// first-order optimizers adopt the same interface so they are
// interchangeable in the optimization loop.
//
// Example usage:
//
//	optimizer := optim.NewLBFGS(params, optim.LBFGSConfig{}, backend)
//
//	for i := 0; i < iterations; i++ {
//	    loss, err := optimizer.Step(func() (float32, map[*tensor.RawTensor]*tensor.RawTensor, error) {
//	        backend.Tape().Clear()
//	        out := model.Forward(img)
//	        loss := computeLoss(out)
//	        grads := autodiff.Backward(loss, backend)
//	        return loss.Item(), grads, nil
//	    })
//	    if err != nil {
//	        return err
//	    }
//	}
package optim

import (
	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// Closure re-evaluates the loss and its gradients at the current
// parameter values. It is invoked at least once per Step, and repeatedly
// during line search at trial points.
//
// The returned map comes from autodiff.Backward: RawTensor -> gradient.
type Closure func() (float32, map[*tensor.RawTensor]*tensor.RawTensor, error)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step performs one optimization step, invoking the closure to obtain
	// loss and gradients. Returns the loss at the pre-step parameter values.
	Step(closure Closure) (float32, error)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()
}

// getGradient safely retrieves gradient for a parameter.
//
// Returns nil if no gradient is found (parameter wasn't part of computation graph).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}

// flatSize returns the total number of elements across all parameters.
func flatSize[B tensor.Backend](params []*nn.Parameter[B]) int {
	n := 0
	for _, p := range params {
		n += p.Tensor().NumElements()
	}
	return n
}

// gatherParams concatenates all parameter values into dst.
func gatherParams[B tensor.Backend](params []*nn.Parameter[B], dst []float32) {
	offset := 0
	for _, p := range params {
		data := p.Tensor().Raw().AsFloat32()
		copy(dst[offset:], data)
		offset += len(data)
	}
}

// scatterParams writes the flat vector src back into the parameters.
func scatterParams[B tensor.Backend](params []*nn.Parameter[B], src []float32) {
	offset := 0
	for _, p := range params {
		data := p.Tensor().Raw().AsFloat32()
		copy(data, src[offset:offset+len(data)])
		offset += len(data)
	}
}

// gatherGrads concatenates gradients for all parameters into dst.
// Parameters without a gradient contribute zeros.
func gatherGrads[B tensor.Backend](params []*nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor, dst []float32) {
	offset := 0
	for _, p := range params {
		n := p.Tensor().NumElements()
		if grad := getGradient(p, grads); grad != nil {
			copy(dst[offset:], grad.AsFloat32())
		} else {
			for i := offset; i < offset+n; i++ {
				dst[i] = 0
			}
		}
		offset += n
	}
}

// dot computes the inner product of two flat vectors.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// l1Norm computes the sum of absolute values.
func l1Norm(a []float32) float32 {
	var sum float32
	for _, v := range a {
		if v < 0 {
			sum -= v
		} else {
			sum += v
		}
	}
	return sum
}

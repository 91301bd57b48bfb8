package optim

import (
	"fmt"
	"math"

	"github.com/gogh-ml/gogh/internal/nn"
	"github.com/gogh-ml/gogh/internal/tensor"
)

// LBFGS implements the Limited-memory BFGS optimizer.
//
// L-BFGS approximates the inverse Hessian from a short history of
// parameter differences s_k = x_{k+1} - x_k and gradient differences
// y_k = g_{k+1} - g_k, stored in a circular buffer. The search direction
// is obtained with the classic two-loop recursion, and the step length
// along it with a strong Wolfe line search that re-invokes the closure
// at trial points.
//
// L-BFGS is the optimizer of choice for pixel optimization: the
// objective is smooth, a full-batch gradient is available every
// iteration, and the curvature information makes it converge in far
// fewer forward passes than first-order methods.
//
// Reference: Nocedal & Wright, "Numerical Optimization", Algorithm 7.4/7.5.
//
// Example:
//
//	optimizer := optim.NewLBFGS(params, optim.LBFGSConfig{}, backend)
//	loss, err := optimizer.Step(closure)
type LBFGS[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	config  LBFGSConfig
	backend B

	// Circular history of (s, y, rho) triples
	sHist [][]float32
	yHist [][]float32
	rho   []float32

	historyCount int // Number of stored pairs
	historyIndex int // Next slot in the circular buffer

	numEvals int // Total closure evaluations
	step     int // Completed optimization steps

	// Scratch vectors, allocated once
	x0    []float32
	grad0 []float32
	dir   []float32
	trial []float32
	gradT []float32
	q     []float32
	alpha []float32
}

// LBFGSConfig holds configuration for the L-BFGS optimizer.
// Zero values select the defaults.
type LBFGSConfig struct {
	HistorySize   int     // Number of correction pairs to store (default: 10)
	MaxLineSearch int     // Maximum line search evaluations per step (default: 20)
	C1            float32 // Armijo (sufficient decrease) parameter (default: 1e-4)
	C2            float32 // Strong Wolfe curvature parameter (default: 0.9)
	InitialStep   float32 // Initial step length for line search (default: 1.0)
	TolGrad       float32 // Gradient infinity-norm convergence threshold (default: 1e-7)
}

// NewLBFGS creates a new L-BFGS optimizer over the given parameters.
func NewLBFGS[B tensor.Backend](params []*nn.Parameter[B], config LBFGSConfig, backend B) *LBFGS[B] {
	if config.HistorySize == 0 {
		config.HistorySize = 10
	}
	if config.MaxLineSearch == 0 {
		config.MaxLineSearch = 20
	}
	if config.C1 == 0 {
		config.C1 = 1e-4
	}
	if config.C2 == 0 {
		config.C2 = 0.9
	}
	if config.InitialStep == 0 {
		config.InitialStep = 1.0
	}
	if config.TolGrad == 0 {
		config.TolGrad = 1e-7
	}
	if config.HistorySize < 0 {
		panic(fmt.Sprintf("lbfgs: invalid history size %d", config.HistorySize))
	}

	n := flatSize(params)

	return &LBFGS[B]{
		params:  params,
		config:  config,
		backend: backend,
		sHist:   make([][]float32, config.HistorySize),
		yHist:   make([][]float32, config.HistorySize),
		rho:     make([]float32, config.HistorySize),
		x0:      make([]float32, n),
		grad0:   make([]float32, n),
		dir:     make([]float32, n),
		trial:   make([]float32, n),
		gradT:   make([]float32, n),
		q:       make([]float32, n),
		alpha:   make([]float32, config.HistorySize),
	}
}

// Step performs one L-BFGS iteration.
//
// The closure is evaluated once at the current point and again at each
// line search trial. On return the parameters hold the accepted point.
// The returned loss is the value at the pre-step parameters, matching
// the convention of closure-based optimizers.
func (o *LBFGS[B]) Step(closure Closure) (float32, error) {
	loss0, grads, err := closure()
	if err != nil {
		return 0, err
	}
	o.numEvals++

	gatherParams(o.params, o.x0)
	gatherGrads(o.params, grads, o.grad0)

	// Already at a stationary point
	if infNorm(o.grad0) <= o.config.TolGrad {
		o.step++
		return loss0, nil
	}

	o.computeDirection()

	gtd0 := dot(o.grad0, o.dir)
	if gtd0 >= 0 {
		// Curvature history produced a non-descent direction; fall back
		// to steepest descent and start the history over
		o.resetHistory()
		for i := range o.dir {
			o.dir[i] = -o.grad0[i]
		}
		gtd0 = -dot(o.grad0, o.grad0)
	}

	t := o.config.InitialStep
	if o.step == 0 {
		// Scale the very first step by the gradient magnitude so large
		// initial gradients do not overshoot
		scale := float32(1.0)
		if norm := l1Norm(o.grad0); norm > 1 {
			scale = 1 / norm
		}
		t *= scale
	}

	finalT, _, err := o.lineSearch(closure, loss0, gtd0, t)
	if err != nil {
		return 0, err
	}

	// s = t*d, y = g_new - g_old; gradT holds the gradient at the
	// accepted point after lineSearch returns
	o.updateHistory(finalT)

	o.step++
	return loss0, nil
}

// computeDirection fills o.dir with -H·g using the two-loop recursion.
func (o *LBFGS[B]) computeDirection() {
	copy(o.q, o.grad0)

	m := o.historyCount

	// First loop: newest to oldest
	for i := 0; i < m; i++ {
		idx := o.histSlot(m - 1 - i)
		o.alpha[idx] = o.rho[idx] * dot(o.sHist[idx], o.q)
		a := o.alpha[idx]
		y := o.yHist[idx]
		for j := range o.q {
			o.q[j] -= a * y[j]
		}
	}

	// Initial Hessian scaling: gamma = s·y / y·y of the newest pair
	if m > 0 {
		idx := o.histSlot(m - 1)
		yy := dot(o.yHist[idx], o.yHist[idx])
		if yy > 0 {
			gamma := 1 / (o.rho[idx] * yy)
			for j := range o.q {
				o.q[j] *= gamma
			}
		}
	}

	// Second loop: oldest to newest
	for i := 0; i < m; i++ {
		idx := o.histSlot(i)
		beta := o.rho[idx] * dot(o.yHist[idx], o.q)
		a := o.alpha[idx]
		s := o.sHist[idx]
		for j := range o.q {
			o.q[j] += (a - beta) * s[j]
		}
	}

	for j := range o.dir {
		o.dir[j] = -o.q[j]
	}
}

// lineSearch finds a step length satisfying the strong Wolfe conditions:
//
//	f(x + t·d) <= f(x) + c1·t·g₀ᵀd      (sufficient decrease)
//	|g(x + t·d)ᵀd| <= c2·|g₀ᵀd|        (strong curvature)
//
// Backtracks on Armijo failure and extends while curvature is weak. On
// return the parameters and o.gradT hold the accepted trial point.
func (o *LBFGS[B]) lineSearch(closure Closure, loss0, gtd0, t float32) (float32, float32, error) {
	var (
		bestT    float32 = -1
		bestLoss float32
	)

	for i := 0; i < o.config.MaxLineSearch; i++ {
		lossT, gtd, err := o.evalTrial(closure, t)
		if err != nil {
			return 0, 0, err
		}

		armijo := lossT <= loss0+o.config.C1*t*gtd0
		if !armijo {
			// Overshot: shrink. If an acceptable point was already found,
			// settle for it
			if bestT > 0 {
				break
			}
			t *= 0.5
			continue
		}

		bestT, bestLoss = t, lossT

		if abs32(gtd) <= o.config.C2*abs32(gtd0) {
			// Both conditions hold
			return o.acceptTrial(closure, t, lossT)
		}

		if gtd < 0 {
			// Still descending steeply: the step is too short
			t *= 2
			continue
		}

		// Positive slope with Armijo satisfied: acceptable point
		break
	}

	if bestT < 0 {
		// No trial satisfied Armijo within budget; take the smallest
		// step probed rather than standing still
		lossT, _, err := o.evalTrial(closure, t)
		if err != nil {
			return 0, 0, err
		}
		return o.acceptTrial(closure, t, lossT)
	}

	return o.acceptTrial(closure, bestT, bestLoss)
}

// evalTrial evaluates the closure at x0 + t·dir and returns the loss and
// directional derivative there. Leaves the parameters at the trial point
// and the trial gradient in o.gradT.
func (o *LBFGS[B]) evalTrial(closure Closure, t float32) (float32, float32, error) {
	for j := range o.trial {
		o.trial[j] = o.x0[j] + t*o.dir[j]
	}
	scatterParams(o.params, o.trial)

	loss, grads, err := closure()
	if err != nil {
		return 0, 0, err
	}
	o.numEvals++

	gatherGrads(o.params, grads, o.gradT)
	return loss, dot(o.gradT, o.dir), nil
}

// acceptTrial makes sure the parameters and o.gradT reflect the step
// length t, re-evaluating only when the last trial used a different t.
func (o *LBFGS[B]) acceptTrial(closure Closure, t, loss float32) (float32, float32, error) {
	for j := range o.trial {
		o.trial[j] = o.x0[j] + t*o.dir[j]
	}

	// The trial vector always matches the last evalTrial call except
	// when backtracking settled on an earlier bestT; detect by comparing
	// against the live parameter values.
	gatherParams(o.params, o.q) // q is free scratch after computeDirection
	same := true
	for j := range o.q {
		if o.q[j] != o.trial[j] {
			same = false
			break
		}
	}
	if !same {
		scatterParams(o.params, o.trial)
		l, grads, err := closure()
		if err != nil {
			return 0, 0, err
		}
		o.numEvals++
		gatherGrads(o.params, grads, o.gradT)
		loss = l
	}

	return t, loss, nil
}

// updateHistory stores the newest (s, y) pair when it carries positive
// curvature. The buffer is circular: the oldest pair is overwritten.
func (o *LBFGS[B]) updateHistory(t float32) {
	if o.config.HistorySize == 0 {
		return
	}

	n := len(o.x0)
	s := make([]float32, n)
	y := make([]float32, n)
	for j := 0; j < n; j++ {
		s[j] = t * o.dir[j]
		y[j] = o.gradT[j] - o.grad0[j]
	}

	ys := dot(y, s)
	if ys <= 1e-10 {
		// Negative or negligible curvature would corrupt the inverse
		// Hessian estimate
		return
	}

	o.sHist[o.historyIndex] = s
	o.yHist[o.historyIndex] = y
	o.rho[o.historyIndex] = 1 / ys

	o.historyIndex = (o.historyIndex + 1) % o.config.HistorySize
	if o.historyCount < o.config.HistorySize {
		o.historyCount++
	}
}

// histSlot maps a logical position (0 = oldest) to a circular buffer index.
func (o *LBFGS[B]) histSlot(logical int) int {
	start := o.historyIndex - o.historyCount
	idx := (start + logical) % o.config.HistorySize
	if idx < 0 {
		idx += o.config.HistorySize
	}
	return idx
}

// resetHistory drops all stored correction pairs.
func (o *LBFGS[B]) resetHistory() {
	o.historyCount = 0
	o.historyIndex = 0
}

// ZeroGrad clears all parameter gradients.
func (o *LBFGS[B]) ZeroGrad() {
	for _, p := range o.params {
		p.ZeroGrad()
	}
}

// NumEvals returns the total number of closure evaluations so far.
func (o *LBFGS[B]) NumEvals() int {
	return o.numEvals
}

// HistorySize returns the number of correction pairs currently stored.
func (o *LBFGS[B]) HistorySize() int {
	return o.historyCount
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

// infNorm computes the maximum absolute value.
func infNorm(a []float32) float32 {
	var max float32
	for _, v := range a {
		if av := abs32(v); av > max {
			max = av
		}
	}
	return max
}

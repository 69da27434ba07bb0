// Package survival folds per-offset hazard logits into a discrete-time
// survival distribution over episode termination.
package survival

import "math"

// MaxHorizon is the hard safety cap on the fold length.
const MaxHorizon = 1200

// Sigmoid is the numerically stable logistic function.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		ez := math.Exp(-z)
		return 1.0 / (1.0 + ez)
	}
	ez := math.Exp(z)
	return ez / (1.0 + ez)
}

// Curve is the result of folding a logit sequence. Offsets are 1-based:
// CDF[i] is the probability the episode has ended by offset i+1.
type Curve struct {
	CDF      []float64
	PMF      []float64
	Expected float64
	Tail     float64 // survival mass past the last folded offset
}

// Fold turns hazard logits into survival/PMF/CDF and the expectation.
// Pure function; safe to call repeatedly with different horizons.
func Fold(logits []float64) Curve {
	n := len(logits)
	if n > MaxHorizon {
		n = MaxHorizon
	}
	c := Curve{
		CDF: make([]float64, 0, n),
		PMF: make([]float64, 0, n),
	}
	s := 1.0
	for t := 1; t <= n; t++ {
		h := Sigmoid(logits[t-1])
		p := h * s
		c.PMF = append(c.PMF, p)
		s *= 1.0 - h
		c.Expected += float64(t) * p
		c.CDF = append(c.CDF, 1.0-s)
	}
	c.Tail = s
	return c
}

// Quantile returns the smallest offset t with CDF_t >= q, or the fold
// length when the mass never reaches q. Offsets are 1-based.
func (c Curve) Quantile(q float64) int {
	if len(c.CDF) == 0 {
		return 1
	}
	for i, f := range c.CDF {
		if f >= q {
			return i + 1
		}
	}
	return len(c.CDF)
}

// ExpectedStep rounds the expectation to a usable tick offset.
func (c Curve) ExpectedStep() int {
	if c.Expected > 0 {
		return int(math.Round(c.Expected))
	}
	if n := len(c.CDF); n > 0 {
		return n
	}
	return 1
}

// ProbWithin returns the probability of termination within the next
// `window` offsets, clamped to the available fold length.
func (c Curve) ProbWithin(window int) float64 {
	if len(c.CDF) == 0 || window <= 0 {
		return 0
	}
	if window > len(c.CDF) {
		window = len(c.CDF)
	}
	return c.CDF[window-1]
}

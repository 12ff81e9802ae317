package calculator

import (
	"errors"
	"math"
)

// SpanAlpha returns the smoothing factor for a span-based EMA.
func SpanAlpha(span int) (float64, error) {
	if span < 1 {
		return 0, errors.New("span must be >= 1")
	}
	return 2.0 / (float64(span) + 1.0), nil
}

// EWMA computes the exponentially weighted moving average of values for the given span.
//
// With adjust set, each output is the weighted mean of all prior observations with weights
// (1-alpha)^k, where k counts positions back from the current row. NaN observations contribute
// nothing but still age the older weights, and the output at a NaN row repeats the previous
// value. Rows before the first observation are NaN.
//
// Without adjust, the seeded recurrence ema[i] = alpha*x[i] + (1-alpha)*ema[i-1] is used,
// seeded by the first observation.
func EWMA(values []float64, span int, adjust bool) ([]float64, error) {
	alpha, err := SpanAlpha(span)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out, nil
	}

	decay := 1 - alpha
	newWeight := 1.0
	if !adjust {
		newWeight = alpha
	}

	weighted := values[0]
	oldWeight := 1.0
	out[0] = weighted

	for i := 1; i < len(values); i++ {
		cur := values[i]
		observed := !math.IsNaN(cur)

		if !math.IsNaN(weighted) {
			oldWeight *= decay
			if observed {
				// exact equality keeps constant input exactly constant
				if weighted != cur {
					weighted = (oldWeight*weighted + newWeight*cur) / (oldWeight + newWeight)
				}
				if adjust {
					oldWeight += newWeight
				} else {
					oldWeight = 1
				}
			}
		} else if observed {
			weighted = cur
		}
		out[i] = weighted
	}
	return out, nil
}

package store

import "strings"

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MinMaxNormalize rescales scores into [0, 1] over the given batch. It is
// the only normalization strategy: the lexical stores call it directly, and
// there is no normalizer interface or option for selecting another one.
func MinMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	min, max := scores[0], scores[0]
	for _, s := range scores {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == min {
		for i := range scores {
			if scores[i] > 0 {
				out[i] = 1
			}
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}

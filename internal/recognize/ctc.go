package recognize

import "strings"

// ctcBlank is the class index reserved for the CTC blank token.
const ctcBlank = 0

// greedyDecode performs greedy CTC decoding of one sequence: per timestep
// argmax over classes, then collapse of repeats and removal of blanks.
func greedyDecode(logits []float32, steps, classes int, charset *Charset) string {
	var sb strings.Builder
	prev := -1
	for t := 0; t < steps; t++ {
		row := logits[t*classes : (t+1)*classes]
		idx := argmax(row)
		if idx != ctcBlank && idx != prev {
			sb.WriteString(charset.Token(idx))
		}
		prev = idx
	}
	return sb.String()
}

func argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

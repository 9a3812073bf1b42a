package engine

import "strconv"

// llamaLogitBias renders b in the "token+bias" form go-llama.cpp parses.
func llamaLogitBias(b LogitBias) string {
	sign := "+"
	if b.Bias < 0 {
		sign = ""
	}
	return strconv.Itoa(b.Token) + sign + strconv.FormatFloat(b.Bias, 'g', -1, 64)
}

// llamaIgnoredOptions names the sampling options the llama.cpp binding has
// no knob for when p sets them away from their defaults. Only the first
// logit bias is forwarded.
func llamaIgnoredOptions(p CompletionParams) []string {
	var out []string
	if p.MinP != 0 && p.MinP != DefaultCompletionParams("").MinP {
		out = append(out, "min_p")
	}
	if p.XTCProbability > 0 {
		out = append(out, "xtc_threshold", "xtc_probability")
	}
	if p.TopProbs > 0 {
		out = append(out, "top_probs")
	}
	if len(p.LogitBias) > 1 {
		out = append(out, "logit_bias[1:]")
	}
	return out
}

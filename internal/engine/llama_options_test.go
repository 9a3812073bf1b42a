package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLlamaLogitBias(t *testing.T) {
	assert.Equal(t, "15043+1", llamaLogitBias(LogitBias{Token: 15043, Bias: 1}))
	assert.Equal(t, "7-0.5", llamaLogitBias(LogitBias{Token: 7, Bias: -0.5}))
}

func TestLlamaIgnoredOptions(t *testing.T) {
	assert.Empty(t, llamaIgnoredOptions(DefaultCompletionParams("x")))

	p := DefaultCompletionParams("x")
	p.MinP = 0
	p.LogitBias = []LogitBias{{Token: 1, Bias: 2}}
	assert.Empty(t, llamaIgnoredOptions(p), "disabled min_p and a single bias are supported")

	p.MinP = 0.2
	p.XTCProbability = 0.5
	p.TopProbs = 3
	p.LogitBias = append(p.LogitBias, LogitBias{Token: 2, Bias: -1})
	assert.Equal(t, []string{"min_p", "xtc_threshold", "xtc_probability", "top_probs", "logit_bias[1:]"}, llamaIgnoredOptions(p))
}

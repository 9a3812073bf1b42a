package engine

// Timings reports prompt evaluation and prediction durations.
type Timings struct {
	PromptN     int     `json:"prompt_n"`
	PromptMS    float64 `json:"prompt_ms"`
	PredictedN  int     `json:"predicted_n"`
	PredictedMS float64 `json:"predicted_ms"`
}

func perToken(ms float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return ms / float64(n)
}

func perSecond(ms float64, n int) float64 {
	if ms <= 0 {
		return 0
	}
	return 1e3 / ms * float64(n)
}

func (t Timings) PromptPerTokenMS() float64    { return perToken(t.PromptMS, t.PromptN) }
func (t Timings) PromptPerSecond() float64     { return perSecond(t.PromptMS, t.PromptN) }
func (t Timings) PredictedPerTokenMS() float64 { return perToken(t.PredictedMS, t.PredictedN) }
func (t Timings) PredictedPerSecond() float64  { return perSecond(t.PredictedMS, t.PredictedN) }

// CompletionResult aggregates a finished or stopped generation. StoppedEarly
// is set when the run ended on an external stop request rather than a natural
// stop condition.
type CompletionResult struct {
	Text            string        `json:"text"`
	TokensPredicted int           `json:"tokens_predicted"`
	TokensEvaluated int           `json:"tokens_evaluated"`
	TokensCached    int           `json:"tokens_cached"`
	Truncated       bool          `json:"truncated"`
	StoppedEOS      bool          `json:"stopped_eos"`
	StoppedWord     bool          `json:"stopped_word"`
	StoppedLimit    bool          `json:"stopped_limit"`
	StoppingWord    string        `json:"stopping_word,omitempty"`
	StoppedEarly    bool          `json:"interrupted"`
	Timings         Timings       `json:"timings"`
	Probabilities   [][]TokenProb `json:"completion_probabilities,omitempty"`
}

// ModelDetails describes a loaded model.
type ModelDetails struct {
	Path         string            `json:"path"`
	Description  string            `json:"desc"`
	SizeBytes    int64             `json:"size"`
	NParams      int64             `json:"n_params"`
	NVocab       int               `json:"n_vocab"`
	NCtxTrain    int               `json:"n_ctx_train"`
	ChatTemplate bool              `json:"is_chat_template_supported"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of d.
func (d ModelDetails) Clone() ModelDetails {
	if d.Metadata != nil {
		md := make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			md[k] = v
		}
		d.Metadata = md
	}
	return d
}

// StateInfo is returned when session state is restored.
type StateInfo struct {
	TokensLoaded int    `json:"tokens_loaded"`
	Prompt       string `json:"prompt"`
}

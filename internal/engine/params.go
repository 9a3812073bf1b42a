package engine

// ContextParams are the options used to open a model context.
type ContextParams struct {
	ModelPath     string  `json:"model_path" yaml:"model_path" toml:"model_path"`
	Embedding     bool    `json:"embedding" yaml:"embedding" toml:"embedding"`
	ContextLength int     `json:"context_length" yaml:"context_length" toml:"context_length"`
	BatchSize     int     `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	Threads       int     `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers     int     `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	UseMlock      bool    `json:"use_mlock" yaml:"use_mlock" toml:"use_mlock"`
	UseMmap       bool    `json:"use_mmap" yaml:"use_mmap" toml:"use_mmap"`
	VocabOnly     bool    `json:"vocab_only" yaml:"vocab_only" toml:"vocab_only"`
	LoraPath      string  `json:"lora_path" yaml:"lora_path" toml:"lora_path"`
	LoraScale     float32 `json:"lora_scale" yaml:"lora_scale" toml:"lora_scale"`
	RopeFreqBase  float32 `json:"rope_freq_base" yaml:"rope_freq_base" toml:"rope_freq_base"`
	RopeFreqScale float32 `json:"rope_freq_scale" yaml:"rope_freq_scale" toml:"rope_freq_scale"`
}

// Defaults for ContextParams.
const (
	DefaultContextLength = 512
	DefaultBatchSize     = 512
)

// DefaultContextParams returns the documented open options for path.
func DefaultContextParams(path string) ContextParams {
	return ContextParams{
		ModelPath:     path,
		ContextLength: DefaultContextLength,
		BatchSize:     DefaultBatchSize,
		UseMlock:      true,
		UseMmap:       true,
		LoraScale:     1.0,
	}
}

// LogitBias adjusts the sampling weight of a single token.
type LogitBias struct {
	Token int     `json:"token" yaml:"token" toml:"token"`
	Bias  float64 `json:"bias" yaml:"bias" toml:"bias"`
}

// CompletionParams is a single completion request. Start from
// DefaultCompletionParams so unset sampling knobs keep their documented values.
type CompletionParams struct {
	Prompt           string      `json:"prompt" yaml:"prompt" toml:"prompt"`
	Grammar          string      `json:"grammar" yaml:"grammar" toml:"grammar"`
	Temperature      float32     `json:"temperature" yaml:"temperature" toml:"temperature"`
	Threads          int         `json:"threads" yaml:"threads" toml:"threads"`
	MaxTokens        int         `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	TopProbs         int         `json:"top_probs" yaml:"top_probs" toml:"top_probs"`
	RepeatLastN      int         `json:"repeat_last_n" yaml:"repeat_last_n" toml:"repeat_last_n"`
	RepeatPenalty    float32     `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
	FrequencyPenalty float32     `json:"frequency_penalty" yaml:"frequency_penalty" toml:"frequency_penalty"`
	PresencePenalty  float32     `json:"presence_penalty" yaml:"presence_penalty" toml:"presence_penalty"`
	Mirostat         float32     `json:"mirostat" yaml:"mirostat" toml:"mirostat"`
	MirostatTau      float32     `json:"mirostat_tau" yaml:"mirostat_tau" toml:"mirostat_tau"`
	MirostatEta      float32     `json:"mirostat_eta" yaml:"mirostat_eta" toml:"mirostat_eta"`
	PenalizeNewline  bool        `json:"penalize_nl" yaml:"penalize_nl" toml:"penalize_nl"`
	TopK             int         `json:"top_k" yaml:"top_k" toml:"top_k"`
	TopP             float32     `json:"top_p" yaml:"top_p" toml:"top_p"`
	MinP             float32     `json:"min_p" yaml:"min_p" toml:"min_p"`
	XTCThreshold     float32     `json:"xtc_threshold" yaml:"xtc_threshold" toml:"xtc_threshold"`
	XTCProbability   float32     `json:"xtc_probability" yaml:"xtc_probability" toml:"xtc_probability"`
	TFSZ             float32     `json:"tfs_z" yaml:"tfs_z" toml:"tfs_z"`
	TypicalP         float32     `json:"typical_p" yaml:"typical_p" toml:"typical_p"`
	Seed             int         `json:"seed" yaml:"seed" toml:"seed"`
	Stop             []string    `json:"stop" yaml:"stop" toml:"stop"`
	IgnoreEOS        bool        `json:"ignore_eos" yaml:"ignore_eos" toml:"ignore_eos"`
	LogitBias        []LogitBias `json:"logit_bias" yaml:"logit_bias" toml:"logit_bias"`
	Stream           bool        `json:"stream" yaml:"stream" toml:"stream"`
}

// DefaultCompletionParams returns a request for prompt with every optional
// field at its default.
func DefaultCompletionParams(prompt string) CompletionParams {
	return CompletionParams{
		Prompt:        prompt,
		Temperature:   0.70,
		MaxTokens:     -1,
		RepeatLastN:   64,
		RepeatPenalty: 1.00,
		MirostatTau:   5.00,
		MirostatEta:   0.10,
		TopK:          40,
		TopP:          0.95,
		MinP:          0.05,
		TFSZ:          1.00,
		TypicalP:      1.00,
		Seed:          -1,
	}
}

// WithPrompt returns a copy of p with the prompt replaced. Slices are copied so
// the result can be mutated independently.
func (p CompletionParams) WithPrompt(prompt string) CompletionParams {
	p.Prompt = prompt
	p.Stop = append([]string(nil), p.Stop...)
	p.LogitBias = append([]LogitBias(nil), p.LogitBias...)
	return p
}

// Normalize fills zero-valued sizes with their defaults.
func (p ContextParams) Normalize() ContextParams {
	if p.ContextLength <= 0 {
		p.ContextLength = DefaultContextLength
	}
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.LoraScale == 0 {
		p.LoraScale = 1.0
	}
	return p
}

package engine

import "strconv"

func atLeast(field string, v, min float64) error {
	if !(v >= min) {
		return ErrInvalidParameter(field, "must be >= "+strconv.FormatFloat(min, 'g', -1, 64))
	}
	return nil
}

func unitRange(field string, v float32) error {
	if !(v >= 0 && v <= 1) {
		return ErrInvalidParameter(field, "must be within [0, 1]")
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the open options. Zero sizes are accepted and replaced by
// Normalize.
func (p ContextParams) Validate() error {
	return firstErr(
		atLeast("context_length", float64(p.ContextLength), 0),
		atLeast("batch_size", float64(p.BatchSize), 0),
		atLeast("threads", float64(p.Threads), 0),
		atLeast("gpu_layers", float64(p.GPULayers), 0),
		atLeast("lora_scale", float64(p.LoraScale), 0),
		atLeast("rope_freq_base", float64(p.RopeFreqBase), 0),
		atLeast("rope_freq_scale", float64(p.RopeFreqScale), 0),
	)
}

// Validate checks the sampling options. The prompt is checked by the caller.
func (p CompletionParams) Validate() error {
	err := firstErr(
		atLeast("temperature", float64(p.Temperature), 0),
		atLeast("threads", float64(p.Threads), 0),
		atLeast("max_tokens", float64(p.MaxTokens), -1),
		atLeast("top_probs", float64(p.TopProbs), 0),
		atLeast("repeat_last_n", float64(p.RepeatLastN), -1),
		atLeast("repeat_penalty", float64(p.RepeatPenalty), 0),
		atLeast("mirostat_tau", float64(p.MirostatTau), 0),
		atLeast("mirostat_eta", float64(p.MirostatEta), 0),
		atLeast("top_k", float64(p.TopK), 0),
		unitRange("top_p", p.TopP),
		unitRange("min_p", p.MinP),
		unitRange("xtc_threshold", p.XTCThreshold),
		unitRange("xtc_probability", p.XTCProbability),
		unitRange("tfs_z", p.TFSZ),
		unitRange("typical_p", p.TypicalP),
	)
	if err != nil {
		return err
	}
	switch p.Mirostat {
	case 0, 1, 2:
	default:
		return ErrInvalidParameter("mirostat", "must be 0, 1 or 2")
	}
	for _, b := range p.LogitBias {
		if b.Token < 0 {
			return ErrInvalidParameter("logit_bias", "token "+strconv.Itoa(b.Token)+" is negative")
		}
	}
	return nil
}

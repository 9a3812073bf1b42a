// Package types holds the JSON shapes shared by the CLI and the admin endpoint.
package types

// Model is a GGUF model file found on disk.
type Model struct {
	// File name, used as the stable identifier.
	ID string `json:"id"`
	// Name without extension.
	Name string `json:"name"`
	// Absolute path.
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	// Quantization tag parsed from the file name (e.g. Q4_K_M), if any.
	Quant string `json:"quant,omitempty"`
	// False when the file does not carry the GGUF signature.
	Valid bool `json:"valid"`
}

// ModelsResponse wraps the list returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ErrorResponse is the JSON error payload of the admin endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// ContextStatus summarises one live context.
type ContextStatus struct {
	ID            int    `json:"id"`
	Model         string `json:"model"`
	State         string `json:"state"`
	ContextLength int    `json:"context_length"`
	Embedding     bool   `json:"embedding"`
	Listener      bool   `json:"listener_attached"`
	OpenedUnix    int64  `json:"opened_unix"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Contexts          []ContextStatus `json:"contexts"`
	Capacity          int             `json:"capacity"`
	Workers           int             `json:"workers"`
	UptimeSeconds     int64           `json:"uptime_seconds"`
	ServerTimeUnix    int64           `json:"server_time_unix"`
	OpensTotal        uint64          `json:"opens_total"`
	GenerationsTotal  uint64          `json:"generations_total"`
	BusyRejections    uint64          `json:"busy_rejections_total"`
	GenerationsActive int             `json:"generations_active"`
	LastError         string          `json:"last_error,omitempty"`
}

// HistoryEntry is one recorded generation.
type HistoryEntry struct {
	RequestID       string `json:"request_id"`
	ContextID       int    `json:"context_id"`
	Model           string `json:"model"`
	PromptHash      string `json:"prompt_hash"`
	TokensPredicted int    `json:"tokens_predicted"`
	TokensEvaluated int    `json:"tokens_evaluated"`
	StoppedEarly    bool   `json:"stopped_early"`
	Error           string `json:"error,omitempty"`
	DurationMS      int64  `json:"duration_ms"`
	CreatedUnix     int64  `json:"created_unix"`
}

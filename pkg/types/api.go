package types

// InferRequest represents an inference request payload.
type InferRequest struct {
	// Optional model identifier. If set and different from the current
	// selection, the model is selected first.
	// example: phi-1.5-q4
	Model string `json:"model,omitempty" example:"phi-1.5-q4"`
	// Required user input.
	// example: Summarize the clipboard.
	Prompt string `json:"prompt" example:"Summarize the clipboard."`
	// Name of the application the user is working in.
	// example: Terminal
	FrontmostApp string `json:"frontmost_app,omitempty" example:"Terminal"`
	// Clipboard text; only the first 200 characters reach the prompt.
	Clipboard string `json:"clipboard,omitempty"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random). 0 selects greedy
	// decoding; omit to use the configured default.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability in [0, 1]; omit to use the configured
	// default.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
}

// InferChunk is one NDJSON line of a POST /infer response.
type InferChunk struct {
	Delta   string `json:"delta,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SelectRequest is the body of POST /select.
type SelectRequest struct {
	// example: tinyllama-1.1b-q4
	Model string `json:"model" example:"tinyllama-1.1b-q4"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of catalog models.
	Models []Model `json:"models"`
	// Currently selected model id.
	Selected string `json:"selected"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ServerStatus describes the persistent llama-server, when one is tracked.
type ServerStatus struct {
	Running bool `json:"running"`
	Ready   bool `json:"ready"`
	// example: 50951
	Port int `json:"port,omitempty" example:"50951"`
	// example: 12345
	PID         int    `json:"pid,omitempty" example:"12345"`
	ModelPath   string `json:"model_path,omitempty"`
	ContextSize int    `json:"ctx_size,omitempty"`
	GPULayers   int    `json:"gpu_layers,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// example: phi-1.5-q4
	Selected string `json:"selected" example:"phi-1.5-q4"`
	// Model with a live inference session, if any.
	Active string `json:"active,omitempty"`
	// Inference strategy: cli, server or inprocess.
	// example: server
	Strategy string        `json:"strategy" example:"server"`
	Server   *ServerStatus `json:"server,omitempty"`
	// Per-model lifecycle state.
	Models []Model `json:"models"`
	// Streams currently being produced.
	Inflight int `json:"inflight"`
	// Seconds of inactivity before the session is released.
	// example: 90
	IdleTimeoutSeconds int `json:"idle_timeout_seconds" example:"90"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of session evictions.
	EvictionsTotal uint64 `json:"evictions_total"`
	// Total number of finished downloads, successful or not.
	DownloadsTotal uint64 `json:"downloads_total"`
}

// BinaryCheck reports discovery of one llama.cpp tool.
type BinaryCheck struct {
	// example: llama-server
	Role  string `json:"role" example:"llama-server"`
	Found bool   `json:"found"`
	Path  string `json:"path,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	Strategy string `json:"strategy"`
	// True when the strategy's required binary was found.
	OK                 bool          `json:"ok"`
	InProcessAvailable bool          `json:"inprocess_available"`
	ModelsDir          string        `json:"models_dir"`
	Binaries           []BinaryCheck `json:"binaries"`
}

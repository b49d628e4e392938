package types

// Model describes one catalog entry together with its lifecycle state.
type Model struct {
	// Stable identifier for the model.
	// example: phi-1.5-q4
	ID string `json:"id" example:"phi-1.5-q4"`
	// Human-friendly name.
	// example: Phi-1.5 (Q4_K_M)
	Name string `json:"name" example:"Phi-1.5 (Q4_K_M)"`
	// Hugging Face repository the files are fetched from. Empty for local files.
	// example: TheBloke/phi-1_5-GGUF
	Repo string `json:"repo,omitempty" example:"TheBloke/phi-1_5-GGUF"`
	// native or convertible.
	// example: native
	Format string `json:"format" example:"native"`
	// Absolute path of the runnable GGUF artifact.
	// example: /home/user/models/llm/phi-1_5.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/llm/phi-1_5.Q4_K_M.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// Approximate download size in bytes.
	// example: 918000000
	SizeBytes int64 `json:"size_bytes,omitempty" example:"918000000"`
	// Human readable size.
	// example: 918 MB
	Size string `json:"size,omitempty" example:"918 MB"`
	License string `json:"license,omitempty"`
	// Lifecycle state: not_downloaded, downloading, converting, ready, error.
	// example: ready
	State string `json:"state" example:"ready"`
	// Progress or status line for the current state.
	// example: Ready
	Status string `json:"status,omitempty" example:"Ready"`
	// Last failure message, verbatim.
	Error string `json:"error,omitempty"`
	// Metadata read from the GGUF header; present only when requested.
	Artifact *ArtifactInfo `json:"artifact,omitempty"`
}

// ArtifactInfo is GGUF header metadata of a downloaded model.
type ArtifactInfo struct {
	Name         string `json:"name,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	Parameters   string `json:"parameters,omitempty"`
	FileType     string `json:"file_type,omitempty"`
}

package catalog

// DefaultModelID is selected when no model has been chosen.
const DefaultModelID = "phi-1.5-q4"

var phiAuxiliaryFiles = []string{
	"config.json",
	"tokenizer.json",
	"tokenizer_config.json",
	"special_tokens_map.json",
	"vocab.json",
	"merges.txt",
	"generation_config.json",
	"added_tokens.json",
}

// BuiltinDescriptors returns the models shipped with promptd.
func BuiltinDescriptors() []Descriptor {
	return []Descriptor{
		{
			ID:           "phi-1.5-q4",
			Name:         "Phi-1.5 (Q4_K_M)",
			Backend:      BackendLlamaCpp,
			Format:       FormatNative,
			Repo:         "TheBloke/phi-1_5-GGUF",
			PrimaryFile:  "phi-1_5.Q4_K_M.gguf",
			SizeBytes:    852_000_000,
			MinimumBytes: 600_000_000,
			// Unused for native models; kept for parity with convertible entries.
			SourceMinimumBytes: 600_000_000,
			Quantization:       "Q4_K_M",
			License:            "MIT",
		},
		{
			ID:                 "tinyllama-1.1b-q4",
			Name:               "TinyLlama 1.1B Chat (Q4_K_M)",
			Backend:            BackendLlamaCpp,
			Format:             FormatNative,
			Repo:               "TheBloke/TinyLlama-1.1B-Chat-v1.0-GGUF",
			PrimaryFile:        "tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf",
			SizeBytes:          700_000_000,
			MinimumBytes:       400_000_000,
			SourceMinimumBytes: 400_000_000,
			Quantization:       "Q4_K_M",
			License:            "Apache-2.0",
		},
		{
			ID:                 "phi-1.5-hf",
			Name:               "Phi-1.5 (safetensors, converted locally)",
			Backend:            BackendLlamaCpp,
			Format:             FormatConvertible,
			Repo:               "microsoft/phi-1_5",
			PrimaryFile:        "model.safetensors",
			OutputFile:         "phi-1_5-converted.Q4_K_M.gguf",
			AuxiliaryFiles:     append([]string(nil), phiAuxiliaryFiles...),
			SizeBytes:          2_800_000_000,
			MinimumBytes:       600_000_000,
			SourceMinimumBytes: 2_000_000_000,
			Quantization:       "Q4_K_M",
			License:            "MIT",
		},
	}
}

// Builtin returns a catalog of the built-in descriptors.
func Builtin() *Catalog {
	c, err := New(BuiltinDescriptors()...)
	if err != nil {
		panic("catalog: invalid builtin table: " + err.Error())
	}
	return c
}

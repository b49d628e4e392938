package runner

import "fmt"

// Strategy selects how completions are produced.
type Strategy string

const (
	// StrategyCLI spawns llama-cli once per request.
	StrategyCLI Strategy = "cli"
	// StrategyServer keeps one llama-server alive across requests.
	StrategyServer Strategy = "server"
	// StrategyInProcess loads the model through go-llama.cpp; needs -tags llama.
	StrategyInProcess Strategy = "inprocess"
)

// ParseStrategy validates s. Empty means StrategyServer.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyServer, nil
	case StrategyCLI, StrategyServer, StrategyInProcess:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown inference strategy %q (want cli, server or inprocess)", s)
}

// Params are generation settings for one request.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
	ContextSize int
	GPULayers   int
}

// DefaultParams mirrors the settings a fresh install starts with.
func DefaultParams() Params {
	return Params{MaxTokens: 256, Temperature: 0.7, TopP: 0.9, ContextSize: 2048, GPULayers: 24}
}

// ServerConfig is the launch configuration of a persistent server. A running
// server is reused only for an identical value.
type ServerConfig struct {
	ModelPath   string
	ContextSize int
	GPULayers   int
}

// Request is one completion request as seen by the runner.
type Request struct {
	// Binary is llama-cli for StrategyCLI and llama-server for StrategyServer.
	Binary    string
	ModelPath string
	Prompt    string
	Params    Params
}

// ServerConfig derives the launch configuration for r.
func (r Request) ServerConfig() ServerConfig {
	return ServerConfig{ModelPath: r.ModelPath, ContextSize: r.Params.ContextSize, GPULayers: r.Params.GPULayers}
}

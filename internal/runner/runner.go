// Package runner drives llama.cpp to produce streamed completions, either
// by spawning llama-cli per request, by keeping one llama-server alive, or
// in-process through go-llama.cpp.
package runner

import (
	"context"
	"fmt"
)

// Runner dispatches requests to the configured strategy.
type Runner struct {
	Strategy Strategy
	Server   *Server
	inproc   *inProcess
}

// New returns a runner for strategy with a default server.
func New(strategy Strategy, server *Server) *Runner {
	if server == nil {
		server = NewServer(DefaultHost, 0)
	}
	return &Runner{Strategy: strategy, Server: server, inproc: &inProcess{}}
}

// Stream starts a completion for req.
func (r *Runner) Stream(ctx context.Context, req Request) *Stream {
	switch r.Strategy {
	case StrategyCLI:
		return StreamCLI(ctx, req)
	case StrategyServer, "":
		return NewStream(ctx, func(ctx context.Context, emit Emit) {
			base, err := r.Server.EnsureRunning(ctx, req.Binary, req.ServerConfig())
			if err != nil {
				if ctx.Err() == nil {
					emit(ErrorChunk(err))
				}
				return
			}
			r.Server.complete(ctx, base, req, emit)
		})
	case StrategyInProcess:
		if r.inproc == nil {
			r.inproc = &inProcess{}
		}
		return r.inproc.stream(ctx, req)
	}
	return Failure(ctx, fmt.Errorf("unknown inference strategy %q", r.Strategy))
}

// StopServer releases whatever the active strategy keeps loaded between
// requests. It is idempotent.
func (r *Runner) StopServer() error {
	if r.inproc != nil {
		r.inproc.stop()
	}
	if r.Server != nil {
		return r.Server.Stop()
	}
	return nil
}

// Info reports the persistent server, if any.
func (r *Runner) Info() ServerInfo {
	if r.Server == nil {
		return ServerInfo{}
	}
	return r.Server.Info()
}

// NeedsBinary reports which external binary the strategy spawns, if any.
func (s Strategy) NeedsBinary() bool { return s != StrategyInProcess }

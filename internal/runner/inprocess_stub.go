//go:build !llama

package runner

import (
	"context"
	"errors"
)

// InProcessAvailable reports whether this binary was built with go-llama.cpp.
const InProcessAvailable = false

// ErrInProcessUnavailable is returned by the in-process strategy in builds
// without the llama tag.
var ErrInProcessUnavailable = errors.New("in-process inference requires a build with -tags llama")

type inProcess struct{}

func (p *inProcess) stream(ctx context.Context, _ Request) *Stream {
	return Failure(ctx, ErrInProcessUnavailable)
}

func (p *inProcess) stop() {}

package runner

import (
	"context"
	"os/exec"
	"strconv"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// stopGrace is how long a process gets between SIGTERM and SIGKILL.
const stopGrace = 2 * time.Second

// CLIArgs builds the llama-cli argument list for req.
func CLIArgs(req Request) []string {
	p := req.Params
	args := []string{
		"--model", req.ModelPath,
		"--prompt", req.Prompt,
		"--n-predict", strconv.Itoa(p.MaxTokens),
		"--temp", strconv.FormatFloat(p.Temperature, 'f', -1, 64),
		"--top-p", strconv.FormatFloat(p.TopP, 'f', -1, 64),
		"--ctx-size", strconv.Itoa(p.ContextSize),
		"--no-display-prompt",
	}
	if p.GPULayers > 0 {
		args = append(args, "--n-gpu-layers", strconv.Itoa(p.GPULayers))
	}
	return args
}

// StreamCLI spawns req.Binary once and streams its stdout. Closing the
// stream terminates the process.
func StreamCLI(ctx context.Context, req Request) *Stream {
	return NewStream(ctx, func(ctx context.Context, emit Emit) {
		cmd := exec.CommandContext(ctx, req.Binary, CLIArgs(req)...)
		cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
		cmd.WaitDelay = stopGrace
		stderr := newTailWriter(stderrTailBytes)
		cmd.Stderr = stderr
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			emit(ErrorChunk(StartError{Err: err}))
			return
		}
		if err := cmd.Start(); err != nil {
			emit(ErrorChunk(StartError{Err: err}))
			return
		}
		log.Debug().Int("pid", cmd.Process.Pid).Str("model", req.ModelPath).Msg("runner: cli started")

		buf := make([]byte, 4096)
		var pending []byte
		for {
			n, rerr := stdout.Read(buf)
			if n > 0 {
				data := append(pending, buf[:n]...)
				cut := completeUTF8(data)
				text := string(data[:cut])
				pending = append([]byte(nil), data[cut:]...)
				if text != "" && !emit(Chunk{Text: text}) {
					break
				}
			}
			if rerr != nil {
				break
			}
		}
		if len(pending) > 0 {
			emit(Chunk{Text: string(pending)})
		}
		werr := cmd.Wait()
		if ctx.Err() != nil {
			log.Debug().Int("pid", cmd.Process.Pid).Msg("runner: cli canceled")
			return
		}
		if werr != nil {
			emit(ErrorChunk(ExitError{Err: werr, Stderr: stderr.String()}))
		}
	})
}

// completeUTF8 returns the length of the longest prefix of b that does not
// end inside a multi-byte rune.
func completeUTF8(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

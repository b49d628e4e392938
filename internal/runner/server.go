package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHost          = "127.0.0.1"
	DefaultReadyAttempts = 50
	DefaultReadyInterval = 200 * time.Millisecond
	healthCheckTimeout   = time.Second
)

// serverProc is one launched llama-server.
type serverProc struct {
	cmd     *exec.Cmd
	cfg     ServerConfig
	baseURL string
	port    int
	ready   bool
	stderr  *tailWriter
	exited  chan struct{}
	exitErr error
}

func (p *serverProc) alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Server owns at most one persistent llama-server process.
type Server struct {
	Host string
	// Port 0 picks a free port per launch.
	Port          int
	Client        *http.Client
	ReadyAttempts int
	ReadyInterval time.Duration
	// OnEvent, when set, is told about process lifecycle changes
	// ("spawn_start", "spawn_ready", "spawn_exit", "spawn_timeout", "spawn_stop").
	OnEvent func(name string, fields map[string]any)

	mu   sync.Mutex
	proc *serverProc
}

// NewServer returns a Server with default polling settings.
func NewServer(host string, port int) *Server {
	if strings.TrimSpace(host) == "" {
		host = DefaultHost
	}
	return &Server{
		Host:          host,
		Port:          port,
		Client:        &http.Client{Timeout: 0},
		ReadyAttempts: DefaultReadyAttempts,
		ReadyInterval: DefaultReadyInterval,
	}
}

func (s *Server) publish(name string, fields map[string]any) {
	if s.OnEvent != nil {
		s.OnEvent(name, fields)
	}
}

func (s *Server) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

// ServerArgs builds the llama-server argument list.
func ServerArgs(cfg ServerConfig, host string, port int) []string {
	args := []string{
		"--model", cfg.ModelPath,
		"--host", host,
		"--port", strconv.Itoa(port),
		"--ctx-size", strconv.Itoa(cfg.ContextSize),
	}
	if cfg.GPULayers > 0 {
		args = append(args, "--n-gpu-layers", strconv.Itoa(cfg.GPULayers))
	}
	return args
}

// EnsureRunning returns the base URL of a ready server launched with exactly
// cfg. A live server with the same config is reused; a live one that never
// became ready is polled again without restarting; anything else is stopped
// and replaced.
func (s *Server) EnsureRunning(ctx context.Context, bin string, cfg ServerConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.proc; p != nil && p.alive() && p.cfg == cfg {
		if p.ready {
			return p.baseURL, nil
		}
		if err := s.waitReadyLocked(ctx, p); err != nil {
			return "", err
		}
		return p.baseURL, nil
	}
	s.stopLocked()

	host := s.Host
	if host == "" {
		host = DefaultHost
	}
	port := s.Port
	if port == 0 {
		var err error
		if port, err = pickFreePort(host); err != nil {
			return "", StartError{Err: err}
		}
	}
	cmd := exec.Command(bin, ServerArgs(cfg, host, port)...)
	stderr := newTailWriter(stderrTailBytes)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return "", StartError{Err: err}
	}
	p := &serverProc{
		cmd:     cmd,
		cfg:     cfg,
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		port:    port,
		stderr:  stderr,
		exited:  make(chan struct{}),
	}
	go func() {
		p.exitErr = cmd.Wait()
		close(p.exited)
	}()
	s.proc = p
	log.Info().Int("pid", cmd.Process.Pid).Str("model", cfg.ModelPath).Int("port", port).Msg("runner: llama-server started")
	s.publish("spawn_start", map[string]any{"pid": cmd.Process.Pid, "port": port, "model": cfg.ModelPath})

	if err := s.waitReadyLocked(ctx, p); err != nil {
		return "", err
	}
	return p.baseURL, nil
}

// waitReadyLocked polls /health. An early exit clears tracking; a timeout
// leaves the process running for the next attempt.
func (s *Server) waitReadyLocked(ctx context.Context, p *serverProc) error {
	attempts := s.ReadyAttempts
	if attempts <= 0 {
		attempts = DefaultReadyAttempts
	}
	interval := s.ReadyInterval
	if interval <= 0 {
		interval = DefaultReadyInterval
	}
	err := retry.Do(
		func() error {
			if !p.alive() {
				return retry.Unrecoverable(ServerExitedError{Err: p.exitErr, Stderr: p.stderr.String()})
			}
			return s.checkHealth(ctx, p.baseURL)
		},
		retry.Attempts(uint(attempts)),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		p.ready = true
		log.Info().Int("pid", p.cmd.Process.Pid).Str("url", p.baseURL).Msg("runner: llama-server ready")
		s.publish("spawn_ready", map[string]any{"pid": p.cmd.Process.Pid, "url": p.baseURL})
		return nil
	}
	var exited ServerExitedError
	if errors.As(err, &exited) {
		s.proc = nil
		log.Warn().Int("pid", p.cmd.Process.Pid).Err(err).Msg("runner: llama-server exited early")
		s.publish("spawn_exit", map[string]any{"pid": p.cmd.Process.Pid, "error": err.Error()})
		return exited
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	log.Warn().Int("pid", p.cmd.Process.Pid).Int("attempts", attempts).Msg("runner: llama-server not ready")
	s.publish("spawn_timeout", map[string]any{"pid": p.cmd.Process.Pid})
	return ServerNotReadyError{Attempts: attempts}
}

func (s *Server) checkHealth(ctx context.Context, baseURL string) error {
	pctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(pctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}

// Stop terminates the tracked server. It is a no-op when nothing is tracked
// or the process already exited.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *Server) stopLocked() {
	p := s.proc
	s.proc = nil
	if p == nil || !p.alive() {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.exited:
	case <-time.After(stopGrace):
		_ = p.cmd.Process.Kill()
		<-p.exited
	}
	log.Info().Int("pid", p.cmd.Process.Pid).Msg("runner: llama-server stopped")
	s.publish("spawn_stop", map[string]any{"pid": p.cmd.Process.Pid})
}

// ServerInfo describes the tracked server process.
type ServerInfo struct {
	Running bool
	Ready   bool
	PID     int
	Port    int
	URL     string
	Config  ServerConfig
}

// Info returns a snapshot of the tracked process.
func (s *Server) Info() ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.proc
	if p == nil || !p.alive() {
		return ServerInfo{}
	}
	return ServerInfo{Running: true, Ready: p.ready, PID: p.cmd.Process.Pid, Port: p.port, URL: p.baseURL, Config: p.cfg}
}

// completionRequest is the body of POST /completion.
type completionRequest struct {
	Prompt      string  `json:"prompt"`
	NPredict    int     `json:"n_predict"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Stream      bool    `json:"stream"`
}

// completionEvent accepts both the native llama.cpp record and the
// OpenAI-style choices list.
type completionEvent struct {
	Content *string `json:"content"`
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

func (e completionEvent) text() string {
	if e.Content != nil {
		return *e.Content
	}
	if len(e.Choices) > 0 {
		return e.Choices[0].Text
	}
	return ""
}

// Complete streams a completion from a ready server at baseURL.
func (s *Server) Complete(ctx context.Context, baseURL string, req Request) *Stream {
	return NewStream(ctx, func(ctx context.Context, emit Emit) {
		s.complete(ctx, baseURL, req, emit)
	})
}

func (s *Server) complete(ctx context.Context, baseURL string, req Request, emit Emit) {
	body, err := json.Marshal(completionRequest{
		Prompt:      req.Prompt,
		NPredict:    req.Params.MaxTokens,
		Temperature: req.Params.Temperature,
		TopP:        req.Params.TopP,
		Stream:      true,
	})
	if err != nil {
		emit(ErrorChunk(ServerError{Err: err}))
		return
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		emit(ErrorChunk(ServerError{Err: err}))
		return
	}
	hreq.Header.Set("Content-Type", "application/json")
	resp, err := s.client().Do(hreq)
	if err != nil {
		if ctx.Err() == nil {
			emit(ErrorChunk(ServerError{Err: err}))
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		emit(ErrorChunk(ServerError{Err: ServerHTTPError{Code: resp.StatusCode}}))
		return
	}
	decodeEvents(ctx, resp.Body, emit)
}

// decodeEvents reads `data:` lines until [DONE] or EOF.
func decodeEvents(ctx context.Context, body io.Reader, emit Emit) {
	r := bufio.NewReader(body)
	for {
		line, err := r.ReadString('\n')
		if l := strings.TrimSpace(line); strings.HasPrefix(l, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(l, "data:"))
			if data == "[DONE]" {
				return
			}
			var ev completionEvent
			if derr := json.Unmarshal([]byte(data), &ev); derr != nil {
				emit(ErrorChunk(ServerError{Err: derr}))
				return
			}
			if t := ev.text(); t != "" && !emit(Chunk{Text: t}) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				emit(ErrorChunk(ServerError{Err: err}))
			}
			return
		}
	}
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

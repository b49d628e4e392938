package main

// fake_llama_server mimics the parts of llama-server that the runner talks
// to. Behaviour is steered through environment variables:
//
//	FAKE_LAUNCH_LOG   append one line per launch ("<pid> <args>")
//	FAKE_EXIT         exit with status 3 before listening
//	FAKE_NEVER_READY  answer /health with 503 forever
//	FAKE_READY_AFTER  number of /health calls answered 503 before 200
import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

func main() {
	var model, host, port string
	var ctxSize, ngl int
	flag.StringVar(&model, "model", "", "model path")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.IntVar(&ctxSize, "ctx-size", 0, "context size")
	flag.IntVar(&ngl, "n-gpu-layers", 0, "gpu layers")
	flag.Parse()

	if p := os.Getenv("FAKE_LAUNCH_LOG"); p != "" {
		f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), strings.Join(os.Args[1:], " "))
			f.Close()
		}
	}
	if os.Getenv("FAKE_EXIT") == "1" {
		fmt.Fprintln(os.Stderr, "error: failed to load model")
		os.Exit(3)
	}
	readyAfter, _ := strconv.Atoi(os.Getenv("FAKE_READY_AFTER"))
	neverReady := os.Getenv("FAKE_NEVER_READY") == "1"
	var healthCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		n := healthCalls.Add(1)
		if neverReady || n <= int64(readyAfter) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading model"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Stream {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fl, _ := w.(http.Flusher)
		lines := []string{
			": keep-alive",
			`data: {"content":"Hello"}`,
			`data: {"choices":[{"text":" World"}]}`,
			`data: {"content":"","stop":true}`,
			"data: [DONE]",
		}
		for _, l := range lines {
			fmt.Fprintf(w, "%s\n\n", l)
			if fl != nil {
				fl.Flush()
			}
		}
	})

	srv := &http.Server{Addr: host + ":" + port, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// Package fetch downloads model files into the artifact store.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"promptd/internal/catalog"
	"promptd/internal/common/fsutil"
	"promptd/internal/store"
)

// DefaultBaseURL is the Hugging Face hub.
const DefaultBaseURL = "https://huggingface.co"

const partialSuffix = ".partial"

// tokenEnvVars are read in order for a bearer token.
var tokenEnvVars = []string{"HF_TOKEN", "HUGGINGFACE_TOKEN"}

// FileStarted is called before each file download with a 1-based index.
type FileStarted func(name string, index, total int)

// Fetcher downloads descriptor files into a Store. Retries are the caller's
// job: every Fetch starts from what the store considers trustworthy.
type Fetcher struct {
	Store   *store.Store
	Client  *http.Client
	BaseURL string
	// Getenv defaults to os.Getenv; used only for the auth token.
	Getenv func(string) string
	// OnProgress, when set, receives byte progress for the current file.
	// total is -1 when the server sent no length.
	OnProgress func(name string, written, total int64)
}

// New returns a Fetcher for st using the default hub and http client.
func New(st *store.Store) *Fetcher {
	return &Fetcher{Store: st, Client: http.DefaultClient, BaseURL: DefaultBaseURL}
}

// Fetch downloads every file of d. A native model whose artifact is
// already complete is left alone, even when it has no remote source.
func (f *Fetcher) Fetch(ctx context.Context, d catalog.Descriptor, onFileStarted FileStarted) error {
	if !d.RequiresConversion() && f.Store.IsComplete(d) {
		log.Debug().Str("model", d.ID).Msg("fetch: artifact already complete")
		return nil
	}
	if d.Repo == "" {
		return NoSourceError{ID: d.ID}
	}
	if onFileStarted == nil {
		onFileStarted = func(string, int, int) {}
	}
	if err := f.Store.EnsureRoot(); err != nil {
		return fmt.Errorf("create models root: %w", err)
	}
	if d.RequiresConversion() {
		return f.fetchConvertible(ctx, d, onFileStarted)
	}
	return f.fetchNative(ctx, d, onFileStarted)
}

func (f *Fetcher) fetchNative(ctx context.Context, d catalog.Descriptor, onFileStarted FileStarted) error {
	if err := f.Store.RemoveIncompleteOutput(d); err != nil {
		return fmt.Errorf("remove incomplete output: %w", err)
	}
	onFileStarted(d.PrimaryFile, 1, 1)
	dest := f.Store.Locate(d).Output
	if err := f.download(ctx, d.Repo, d.PrimaryFile, dest); err != nil {
		return err
	}
	if !f.Store.IsComplete(d) {
		return IncompleteFileError{Name: d.PrimaryFile}
	}
	return nil
}

func (f *Fetcher) fetchConvertible(ctx context.Context, d catalog.Descriptor, onFileStarted FileStarted) error {
	before, err := f.Store.ResetWorkDir(d)
	if err != nil {
		return err
	}
	log.Debug().Str("model", d.ID).Stringer("workdir", before).Msg("fetch: working directory prepared")
	dir := f.Store.Locate(d).WorkDir
	files := d.Files()
	for i, name := range files {
		onFileStarted(name, i+1, len(files))
		if err := f.download(ctx, d.Repo, name, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	// Auxiliary files are not size-checked; the converter's pre-flight
	// catches missing ones.
	if size := fsutil.FileSize(filepath.Join(dir, d.PrimaryFile)); size <= 0 || size < d.SourceMinimumBytes {
		return IncompleteFileError{Name: d.PrimaryFile}
	}
	return nil
}

// FileURL builds the resolve URL for one repository file.
func (f *Fetcher) FileURL(repo, name string) string {
	base := strings.TrimRight(f.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/" + repo + "/resolve/main/" + url.PathEscape(name)
}

func (f *Fetcher) token() string {
	getenv := f.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, k := range tokenEnvVars {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// download streams one file to dest+".partial" and renames it into place.
func (f *Fetcher) download(ctx context.Context, repo, name, dest string) error {
	u := f.FileURL(repo, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if tok := f.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	log.Debug().Str("url", u).Str("file", dest).Msg("fetch: downloading")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return HTTPStatusError{Code: resp.StatusCode, File: name}
	}

	tmp := dest + partialSuffix
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	var w io.Writer = out
	if f.OnProgress != nil {
		w = &progressWriter{w: out, name: name, total: resp.ContentLength, report: f.OnProgress}
	}
	_, copyErr := io.Copy(w, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if copyErr == nil {
			copyErr = closeErr
		}
		return fmt.Errorf("download %s: %w", name, copyErr)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move %s into place: %w", name, err)
	}
	return nil
}

type progressWriter struct {
	w       io.Writer
	name    string
	written int64
	total   int64
	report  func(string, int64, int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	p.report(p.name, p.written, p.total)
	return n, err
}

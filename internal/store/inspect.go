package store

import (
	"fmt"

	gguf "github.com/gpustack/gguf-parser-go"

	"promptd/internal/catalog"
)

// ArtifactInfo is header metadata read from a GGUF artifact.
type ArtifactInfo struct {
	Name         string `json:"name,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	Parameters   string `json:"parameters,omitempty"`
	FileType     string `json:"file_type,omitempty"`
}

// Inspect parses the GGUF header of d's final artifact.
func (s *Store) Inspect(d catalog.Descriptor) (ArtifactInfo, error) {
	if !s.IsComplete(d) {
		return ArtifactInfo{}, fmt.Errorf("%s is not downloaded", d.ID)
	}
	f, err := gguf.ParseGGUFFile(s.Locate(d).Output)
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("parse gguf: %w", err)
	}
	md := f.Metadata()
	return ArtifactInfo{
		Name:         md.Name,
		Architecture: f.Architecture().Architecture,
		Parameters:   fmt.Sprint(md.Parameters),
		FileType:     fmt.Sprint(md.FileType),
	}, nil
}

// Package artifact persists generated binaries to addressable file locations.
package artifact

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	imagesDir = "images"
	modelsDir = "models"
	videosDir = "videos"
)

// Store writes generated artifacts under an output directory, one
// subdirectory per artifact kind. Filenames are random unique tokens, so
// concurrent writers never collide.
type Store struct {
	fs        afero.Fs
	outputDir string
}

// NewStore creates the output directory tree on the given filesystem.
func NewStore(fs afero.Fs, outputDir string) (*Store, error) {
	for _, dir := range []string{imagesDir, modelsDir, videosDir} {
		if err := fs.MkdirAll(filepath.Join(outputDir, dir), 0755); err != nil {
			return nil, fmt.Errorf("error creating artifact directory %s: %w", dir, err)
		}
	}
	return &Store{fs: fs, outputDir: outputDir}, nil
}

// NewOsStore creates a Store backed by the real filesystem.
func NewOsStore(outputDir string) (*Store, error) {
	return NewStore(afero.NewOsFs(), outputDir)
}

// SaveImage writes image bytes to a new unique path and returns it.
func (s *Store) SaveImage(data []byte) (string, error) {
	return s.save(imagesDir, NewArtifactID(), ".png", data)
}

// SaveModel writes 3D model bytes under the given id.
func (s *Store) SaveModel(id string, data []byte) (string, error) {
	return s.save(modelsDir, id, ".glb", data)
}

// SaveVideo writes video bytes under the given id. Model and video from the
// same generation share an id stem.
func (s *Store) SaveVideo(id string, data []byte) (string, error) {
	return s.save(videosDir, id, ".mp4", data)
}

func (s *Store) save(dir, id, ext string, data []byte) (string, error) {
	path := filepath.Join(s.outputDir, dir, id+ext)
	if err := afero.WriteFile(s.fs, path, data, 0644); err != nil {
		return "", fmt.Errorf("error writing artifact %s: %w", path, err)
	}
	return path, nil
}

// NewArtifactID returns a collision-resistant filename token.
func NewArtifactID() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}

package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/fitgen/internal/grid"
)

// manifestFile is the slot manifest filename.
const manifestFile = "session.json"

// Manifest describes the session a build slot belongs to. It is written next
// to the compiled module so slots can be listed without loading anything.
type Manifest struct {
	ID         string     `json:"id"`
	Backend    string     `json:"backend"`
	NX         int        `json:"nx"`
	NY         int        `json:"ny"`
	NZ         int        `json:"nz"`
	Source     grid.Index `json:"source"`
	Dest       grid.Index `json:"dest"`
	Length     int        `json:"length"`
	FeedOffset int        `json:"feed_offset"`
	FeedAxis   int        `json:"feed_axis"`
	Dt         float32    `json:"dt"`
	SourceHash string     `json:"source_hash,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ManifestOf captures the identifying facts of s.
func ManifestOf(s *Session, sourceHash string) Manifest {
	return Manifest{
		ID:         s.ID,
		Backend:    s.Backend(),
		NX:         s.Grid.NX(),
		NY:         s.Grid.NY(),
		NZ:         s.Grid.NZ(),
		Source:     s.Port.Source,
		Dest:       s.Port.Dest,
		Length:     s.Port.Length(),
		FeedOffset: s.Port.FeedOffset(s.Grid),
		FeedAxis:   s.Port.FeedAxis(),
		Dt:         s.Dt,
		SourceHash: sourceHash,
		CreatedAt:  time.Now().UTC(),
	}
}

// SaveManifest writes m into dir. The directory must already exist.
func SaveManifest(m Manifest, dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session manifest: %w", err)
	}

	path := ManifestPath(dir)

	// Write atomically via temp file + rename.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing session manifest temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming session manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the manifest in dir. A slot without one returns an
// error satisfying os.IsNotExist.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("reading session manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshaling session manifest: %w", err)
	}
	return &m, nil
}

// ManifestPath returns the manifest location for a slot directory.
func ManifestPath(dir string) string {
	return filepath.Join(dir, manifestFile)
}

package results

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ArchiveVersion is the current archive format.
const ArchiveVersion = 1

// ArchiveExt is the conventional archive file extension.
const ArchiveExt = ".fitrun"

// MaxArchiveSize is the maximum allowed size of a decompressed archive payload (512MB).
const MaxArchiveSize = 512 * 1024 * 1024

// ArchiveHeader is the plain-text first line of an archive file.
type ArchiveHeader struct {
	Version    int               `json:"version"`
	CreatedAt  time.Time         `json:"created_at"`
	Checksum   string            `json:"checksum"`
	Samples    int               `json:"samples"`
	Compressed bool              `json:"compressed"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Run is the archived record of one simulation.
type Run struct {
	Scenario   string    `json:"scenario"`
	SessionID  string    `json:"session_id"`
	Backend    string    `json:"backend"`
	CreatedAt  time.Time `json:"created_at"`
	Dt         float64   `json:"dt"`
	Dims       [3]int    `json:"dims"`
	PortPath   [][3]int  `json:"port_path"`
	FeedOffset int       `json:"feed_offset"`
	FeedAxis   int       `json:"feed_axis"`
	SourceHash string    `json:"source_hash,omitempty"`
	Source     []float32 `json:"source"`
	Output     []float32 `json:"output"`
	Summary    Summary   `json:"summary"`
}

// WriteArchive writes r as a header line followed by a gzip-compressed JSON
// payload. The header checksum covers the compressed bytes.
func WriteArchive(path string, r *Run, metadata map[string]string) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("closing gzip writer: %w", err)
	}

	hash := sha256.Sum256(compressed.Bytes())
	header := ArchiveHeader{
		Version:    ArchiveVersion,
		CreatedAt:  r.CreatedAt,
		Checksum:   "sha256:" + hex.EncodeToString(hash[:]),
		Samples:    len(r.Output),
		Compressed: true,
		Metadata:   metadata,
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return fmt.Errorf("writing compressed payload: %w", err)
	}
	return f.Close()
}

// ReadArchiveHeader reads only the header line of an archive.
func ReadArchiveHeader(path string) (*ArchiveHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	header, _, err := readHeader(bufio.NewReader(f))
	return header, err
}

// ReadArchive reads an archive, verifies the checksum and decompresses the
// payload.
func ReadArchive(path string) (*ArchiveHeader, *Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	header, reader, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, nil, err
	}

	compressedData, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}

	hash := sha256.Sum256(compressedData)
	actual := "sha256:" + hex.EncodeToString(hash[:])
	if actual != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxArchiveSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxArchiveSize {
		return nil, nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxArchiveSize)
	}

	var r Run
	if err := json.Unmarshal(decompressed, &r); err != nil {
		return nil, nil, fmt.Errorf("parsing run data: %w", err)
	}
	return header, &r, nil
}

func readHeader(reader *bufio.Reader) (*ArchiveHeader, *bufio.Reader, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header line: %w", err)
	}

	var header ArchiveHeader
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != ArchiveVersion {
		return nil, nil, fmt.Errorf("unsupported archive version %d", header.Version)
	}
	return &header, reader, nil
}

// Package manifest exports a batch's catalog rows as a self-verifying file
// that can travel with the dataset it describes.
//
// A manifest file is a plain-text JSON header line followed by a
// gzip-compressed JSON payload. The header carries a SHA-256 checksum of the
// compressed bytes so integrity can be checked without decompressing.
package manifest

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/predman/projsim/internal/store"
)

// FormatVersion is the current manifest file format.
const FormatVersion = 1

// MaxDecompressedSize is the maximum allowed size of a decompressed payload (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// Header is the plain-text first line of a manifest file.
type Header struct {
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Checksum   string    `json:"checksum"`
	BatchID    string    `json:"batch_id"`
	Split      string    `json:"split"`
	RunCount   int       `json:"run_count"`
	Failed     int       `json:"failed"`
	Compressed bool      `json:"compressed"`
}

// Manifest is the payload: one batch and every recorded run.
type Manifest struct {
	CreatedAt time.Time   `json:"created_at"`
	Batch     store.Batch `json:"batch"`
	Runs      []store.Run `json:"runs"`
}

// Build reads batchID and its runs from catalog.
func Build(ctx context.Context, catalog store.RunCatalog, batchID string) (*Manifest, error) {
	b, err := catalog.Batch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	runs, err := catalog.Runs(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		CreatedAt: time.Now().UTC(),
		Batch:     *b,
		Runs:      runs,
	}, nil
}

// Failed counts runs whose status is not ok.
func (m *Manifest) Failed() int {
	n := 0
	for _, r := range m.Runs {
		if r.Status != store.StatusOK {
			n++
		}
	}
	return n
}

// Write stores m at path: header line + gzip-compressed payload.
func Write(path string, m *Manifest) (*Header, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	header := &Header{
		Version:    FormatVersion,
		CreatedAt:  m.CreatedAt,
		Checksum:   checksum(compressed.Bytes()),
		BatchID:    m.Batch.ID,
		Split:      m.Batch.Split.String(),
		RunCount:   len(m.Runs),
		Failed:     m.Failed(),
		Compressed: true,
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return nil, fmt.Errorf("writing compressed payload: %w", err)
	}
	return header, f.Close()
}

// Read loads a manifest, verifying its checksum first.
func Read(path string) (*Manifest, error) {
	_, compressed, err := readVerified(path)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var m Manifest
	if err := json.Unmarshal(decompressed, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// Verify checks the checksum of a manifest file without decompressing it
// and returns its header.
func Verify(path string) (*Header, error) {
	header, _, err := readVerified(path)
	return header, err
}

func readVerified(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		return nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, nil, fmt.Errorf("unsupported manifest version %d", header.Version)
	}

	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if actual := checksum(compressed); actual != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return &header, compressed, nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

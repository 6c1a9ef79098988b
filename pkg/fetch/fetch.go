// Package fetch downloads remote payloads for provisioning tasks, with
// optional SHA-256 verification.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single fetch. Provisioning payloads are
	// small; anything slower indicates a broken mirror.
	DefaultTimeout = 30 * time.Second
	// MaxInlineSize caps payloads fetched into memory.
	MaxInlineSize = 1 << 20
)

// Fetcher performs HTTP downloads.
type Fetcher struct {
	client *http.Client
}

// New creates a Fetcher with the default timeout.
func New() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: DefaultTimeout},
	}
}

// NewWithClient creates a Fetcher using a caller-supplied client.
func NewWithClient(client *http.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Bytes fetches url into memory. Responses larger than MaxInlineSize are
// rejected.
func (f *Fetcher) Bytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxInlineSize+1))
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if len(data) > MaxInlineSize {
		return nil, fmt.Errorf("response exceeds %d bytes", MaxInlineSize)
	}
	return data, nil
}

// BytesVerified fetches url and checks the payload against an expected
// SHA-256 hex digest. An empty digest skips verification.
func (f *Fetcher) BytesVerified(ctx context.Context, url, sha256hex string) ([]byte, error) {
	data, err := f.Bytes(ctx, url)
	if err != nil {
		return nil, err
	}
	if sha256hex != "" {
		hash := SHA256Hex(data)
		if !strings.EqualFold(hash, sha256hex) {
			return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", sha256hex, hash)
		}
	}
	return data, nil
}

// FileOptions configures a file download.
type FileOptions struct {
	URL      string
	DestPath string
	SHA256   string      // expected checksum (optional)
	Mode     os.FileMode // 0644 when zero
}

// File downloads a file to its destination. The payload lands in a temp
// file and is renamed into place only after the checksum passes, so a
// failed download never replaces an existing file.
func (f *Fetcher) File(ctx context.Context, opts FileOptions) error {
	if err := os.MkdirAll(filepath.Dir(opts.DestPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	mode := opts.Mode
	if mode == 0 {
		mode = 0644
	}

	tmpPath := opts.DestPath + ".downloading"
	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	renamed := false
	defer func() {
		out.Close()
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	// Close before checksumming and renaming.
	out.Close()

	if opts.SHA256 != "" {
		hash, err := FileSHA256(tmpPath)
		if err != nil {
			return fmt.Errorf("failed to calculate checksum: %w", err)
		}
		if !strings.EqualFold(hash, opts.SHA256) {
			return fmt.Errorf("checksum mismatch: expected %s, got %s", opts.SHA256, hash)
		}
	}

	if err := os.Rename(tmpPath, opts.DestPath); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	renamed = true

	return nil
}

// SHA256Hex returns the hex digest of data.
func SHA256Hex(data []byte) string {
	h := sha256.New()
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// FileSHA256 returns the hex digest of a file's contents.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Package profile provides a ProfileStore that writes consolidated patches as
// JSON documents, one file per client, in a directory.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/Veraticus/dossier/internal/common"
	"github.com/Veraticus/dossier/internal/model"
	"github.com/Veraticus/dossier/internal/service"
)

var _ service.ProfileStore = (*DirStore)(nil)

// Record is the stored document of one client: the profile built from every
// patch applied so far plus the audit history of those patches.
type Record struct {
	Profile           model.Patch          `json:"profile"`
	ClientKey         string               `json:"client_key"`
	ExtractionHistory []model.HistoryEntry `json:"extraction_history"`
}

// DirStore writes one JSON file per client under dir. Applying a patch merges
// it into the stored profile and appends its history entries.
type DirStore struct {
	dir string
	mu  sync.Mutex
}

// NewDirStore creates dir when needed and returns a store rooted there.
func NewDirStore(dir string) (*DirStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: profile directory is required", common.ErrMissingConfig)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// ApplyPatch merges patch into the client's record.
func (s *DirStore) ApplyPatch(ctx context.Context, clientKey string, patch model.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if clientKey == "" {
		return fmt.Errorf("%w: empty client key", common.ErrInvalidConfig)
	}
	name := fileName(clientKey)
	path := filepath.Join(s.dir, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := readRecord(path)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	record.ClientKey = clientKey
	record.Profile = mergePatch(record.Profile, patch)
	record.ExtractionHistory = append(record.ExtractionHistory, patch.ExtractionHistory...)

	if err := writeRecord(path, record); err != nil {
		return err
	}

	slog.Debug("Applied profile patch",
		"client", clientKey,
		"path", path,
		"documents", patch.DocumentsCount)
	return nil
}

// Get reads the stored record of a client.
func (s *DirStore) Get(clientKey string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readRecord(filepath.Join(s.dir, fileName(clientKey)))
}

func readRecord(path string) (Record, error) {
	var record Record
	data, err := os.ReadFile(path) //nolint:gosec // path is built from a sanitized client key
	if errors.Is(err, os.ErrNotExist) {
		return record, fmt.Errorf("profile %s: %w", filepath.Base(path), common.ErrNotFound)
	}
	if err != nil {
		return record, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("failed to decode profile %s: %w", filepath.Base(path), err)
	}
	return record, nil
}

// writeRecord writes through a temp file and a rename so readers never see a
// partial document.
func writeRecord(path string, record Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".profile-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close profile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move profile into place: %w", err)
	}
	return nil
}

// fileName escapes a client key into a file name. Lowercase letters and digits
// are kept and every other byte becomes _XX, so distinct keys never share a
// file, even on case-insensitive file systems.
func fileName(clientKey string) string {
	var b strings.Builder
	for _, r := range clientKey {
		if unicode.IsLower(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], r)
		for _, c := range buf[:n] {
			fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String() + ".json"
}

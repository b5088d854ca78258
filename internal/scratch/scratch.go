// Package scratch keeps a transient local copy of each chat attachment for
// the duration of one detection.
package scratch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/vbonduro/lootbot/internal/domain"
)

// ErrDownload is returned when the attachment could not be fetched.
var ErrDownload = errors.New("failed to download attachment")

const downloadTimeout = 30 * time.Second

type Store struct {
	basePath string
	client   *resty.Client
	logger   *slog.Logger
}

// NewStore returns a store rooted at basePath. The directory is created on
// first use.
func NewStore(basePath string, logger *slog.Logger) *Store {
	return &Store{
		basePath: basePath,
		client:   resty.New().SetTimeout(downloadTimeout),
		logger:   logger,
	}
}

// Save downloads att into a uniquely named file and returns its path.
func (s *Store) Save(ctx context.Context, att domain.Attachment) (string, error) {
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	filePath, err := s.safeJoin(uuid.NewString() + "_" + baseName(att.Filename))
	if err != nil {
		return "", err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetOutput(filePath).
		Get(att.URL)
	if err != nil {
		s.Remove(filePath)
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if resp.IsError() {
		s.Remove(filePath)
		return "", fmt.Errorf("%w: %s returned %s", ErrDownload, att.Filename, resp.Status())
	}

	s.logger.Debug("attachment saved", "filename", att.Filename, "path", filePath, "size", att.Size)
	return filePath, nil
}

// Remove deletes a scratch file. A file that is already gone is not an error.
func (s *Store) Remove(filePath string) {
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("failed to remove scratch file", "path", filePath, "error", err)
	}
}

// safeJoin resolves name relative to basePath and rejects directory traversal.
func (s *Store) safeJoin(name string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, name))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}

func baseName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "attachment"
	}
	return name
}

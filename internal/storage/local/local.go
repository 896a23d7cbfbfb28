// Package local stores media on the filesystem and serves them under a base URL.
package local

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/holograma/internal/media/models"
	"github.com/romariotrain/holograma/internal/metrics"
	"github.com/romariotrain/holograma/internal/storage/probe"
)

const backendName = "local"

var errDisabled = errors.New("local storage is not configured; set LOCAL_STORAGE_PATH to enable")

type Config struct {
	Path    string
	BaseURL string
}

type Storage struct {
	basePath string
	baseURL  string
	log      zerolog.Logger
	disabled bool

	clock  func() time.Time
	keyGen func() string
}

func New(cfg Config, log zerolog.Logger) (*Storage, error) {
	logger := log.With().Str("component", "local-storage").Logger()

	basePath := strings.TrimSpace(cfg.Path)
	if basePath == "" {
		logger.Warn().Msg("LOCAL_STORAGE_PATH is not set; uploads will be rejected")
		return &Storage{log: logger, disabled: true}, nil
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage directory: %w", err)
	}

	s := &Storage{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		log:      logger,
		clock:    time.Now,
		keyGen:   uuid.NewString,
	}
	logger.Info().Str("path", basePath).Str("base_url", s.baseURL).Msg("local storage initialized")
	return s, nil
}

// Upload writes data under a dated key and returns its public URL.
func (s *Storage) Upload(ctx context.Context, data []byte, mimeType string) (res models.UploadResult, err error) {
	if s.disabled {
		return models.UploadResult{}, errDisabled
	}
	if err := ctx.Err(); err != nil {
		return models.UploadResult{}, err
	}

	start := time.Now()
	desc := probe.Describe(data, mimeType)
	defer func() {
		metrics.RecordUpload(backendName, string(desc.Kind), err, len(data), time.Since(start).Seconds())
	}()

	key := s.clock().UTC().Format("2006/01/02") + "/" + s.keyGen() + desc.Ext
	if err := s.write(key, data); err != nil {
		return models.UploadResult{}, err
	}

	s.log.Debug().Str("key", key).Int("bytes", len(data)).Str("mime", desc.MIME).Msg("file stored")
	return models.UploadResult{
		URL:      s.url(key),
		Kind:     desc.Kind,
		Provider: backendName,
		PublicID: key,
		Width:    desc.Width,
		Height:   desc.Height,
	}, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if s.disabled {
		return errDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.basePath, fullPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("invalid key %q", key)
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	s.log.Debug().Str("key", key).Msg("file deleted")
	return nil
}

func (s *Storage) write(key string, data []byte) error {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

func (s *Storage) url(key string) string {
	if s.baseURL == "" {
		return "file://" + filepath.Join(s.basePath, filepath.FromSlash(key))
	}
	return s.baseURL + "/" + key
}

// Handler serves stored files. Mount it under the path of BaseURL.
func (s *Storage) Handler(prefix string) http.Handler {
	if s.disabled {
		return http.NotFoundHandler()
	}
	return http.StripPrefix(prefix, http.FileServer(http.Dir(s.basePath)))
}

// Health checks that the storage directory is writable.
func (s *Storage) Health(ctx context.Context) error {
	if s.disabled {
		return nil
	}
	probePath := filepath.Join(s.basePath, ".health_check")
	if err := os.WriteFile(probePath, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	_ = os.Remove(probePath)
	return nil
}

package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/holograma/internal/media/mediaset"
	"github.com/romariotrain/holograma/internal/media/models"
	"github.com/romariotrain/holograma/internal/metrics"
)

// Session is one admin editing the media of one article.
type Session struct {
	ID        uuid.UUID
	ArticleID int64
	OwnerUID  string
	CreatedAt time.Time

	ctrl     *mediaset.Controller
	store    mediaset.Store
	maxBytes int64
	clock    func() time.Time
	lastUsed atomic.Int64
}

func (s *Session) touch() {
	s.lastUsed.Store(s.clock().UnixNano())
}

func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) Snapshot() mediaset.Snapshot {
	return s.ctrl.Snapshot()
}

// AddFiles validates sizes and hands the files to the controller.
func (s *Session) AddFiles(files []models.File) ([]string, error) {
	for _, f := range files {
		if len(f.Data) == 0 {
			return nil, fmt.Errorf("%w: file %q is empty", models.ErrInvalidArgument, f.Name)
		}
		if s.maxBytes > 0 && int64(len(f.Data)) > s.maxBytes {
			return nil, fmt.Errorf("%w: file %q exceeds %d bytes", models.ErrInvalidArgument, f.Name, s.maxBytes)
		}
	}
	return s.ctrl.AddFiles(files)
}

func (s *Session) Remove(id string) error {
	return s.ctrl.Remove(id)
}

func (s *Session) Retry(id string) error {
	return s.ctrl.Retry(id)
}

func (s *Session) Reorder(ids []string) error {
	return s.ctrl.Reorder(ids)
}

func (s *Session) Payload() (models.CommitPayload, error) {
	return s.ctrl.DeriveCommitPayload()
}

// Commit persists the session state. The session stays open and continues
// from the refreshed media.
func (s *Session) Commit(ctx context.Context) (models.CommitPayload, error) {
	payload, err := s.ctrl.Commit(ctx, s.ArticleID, s.store)
	metrics.RecordCommit(err)
	if err != nil {
		return models.CommitPayload{}, err
	}
	return payload, nil
}

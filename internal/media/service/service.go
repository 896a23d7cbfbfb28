package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/holograma/internal/media/mediaset"
	"github.com/romariotrain/holograma/internal/media/models"
	"github.com/romariotrain/holograma/internal/media/repository"
	"github.com/romariotrain/holograma/internal/metrics"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Config struct {
	UploadConcurrency int64
	MaxUploadBytes    int64
	IdleTimeout       time.Duration
}

type Service struct {
	repo     repository.ArticleRepository
	uploader mediaset.Uploader
	cfg      Config
	logger   zerolog.Logger

	mu        sync.RWMutex
	sessions  map[uuid.UUID]*Session
	byArticle map[int64]uuid.UUID

	clock func() time.Time
	idGen func() uuid.UUID
}

func New(repo repository.ArticleRepository, uploader mediaset.Uploader, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		uploader:  uploader,
		cfg:       cfg,
		logger:    logger.With().Str("component", "article-service").Logger(),
		sessions:  make(map[uuid.UUID]*Session),
		byArticle: make(map[int64]uuid.UUID),
		clock:     time.Now,
		idGen:     uuid.New,
	}
}

// ListArticles returns a page of articles, newest first. A zero limit means
// DefaultPageSize.
func (s *Service) ListArticles(ctx context.Context, limit, offset int) ([]models.Article, error) {
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit < 0 || limit > MaxPageSize || offset < 0 {
		return nil, models.ErrInvalidArgument
	}
	return s.repo.ListArticles(ctx, limit, offset)
}

func (s *Service) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	if id <= 0 {
		return nil, models.ErrInvalidArgument
	}
	return s.repo.GetArticle(ctx, id)
}

// CreateArticle stores a new article authored by the principal.
func (s *Service) CreateArticle(ctx context.Context, p models.Principal, title, artist, content string) (*models.Article, error) {
	if !p.IsAdmin() {
		return nil, models.ErrForbidden
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrInvalidArgument)
	}

	a := &models.Article{
		Title:     title,
		Artist:    strings.TrimSpace(artist),
		Content:   content,
		AuthorUID: p.UID,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repo.CreateArticle(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("article_id", a.ID).Str("author", p.UID).Msg("article created")
	return a, nil
}

func (s *Service) UpdateArticle(ctx context.Context, p models.Principal, id int64, upd models.ArticleUpdate) (*models.Article, error) {
	if !p.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if id <= 0 {
		return nil, models.ErrInvalidArgument
	}
	if upd.Title != nil {
		t := strings.TrimSpace(*upd.Title)
		if t == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", models.ErrInvalidArgument)
		}
		upd.Title = &t
	}
	return s.repo.UpdateArticle(ctx, id, upd)
}

// OpenSession starts editing the media of an article. Only one session per
// article may be open at a time.
func (s *Service) OpenSession(ctx context.Context, p models.Principal, articleID int64) (*Session, error) {
	if !p.IsAdmin() {
		return nil, models.ErrForbidden
	}
	if articleID <= 0 {
		return nil, models.ErrInvalidArgument
	}

	s.mu.RLock()
	_, busy := s.byArticle[articleID]
	s.mu.RUnlock()
	if busy {
		return nil, fmt.Errorf("%w: article %d is already being edited", models.ErrConflict, articleID)
	}

	seed, err := s.repo.ListArticleMedia(ctx, articleID)
	if err != nil {
		return nil, err
	}
	ctrl, err := mediaset.New(mediaset.Config{
		Uploader:    s.uploader,
		Concurrency: s.cfg.UploadConcurrency,
		Logger:      s.logger,
	}, seed)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	sess := &Session{
		ID:        s.idGen(),
		ArticleID: articleID,
		OwnerUID:  p.UID,
		CreatedAt: now,
		ctrl:      ctrl,
		store:     s.repo,
		maxBytes:  s.cfg.MaxUploadBytes,
		clock:     s.clock,
	}
	sess.touch()

	s.mu.Lock()
	// the article may have been claimed while we were loading media
	if _, busy := s.byArticle[articleID]; busy {
		s.mu.Unlock()
		ctrl.Discard()
		return nil, fmt.Errorf("%w: article %d is already being edited", models.ErrConflict, articleID)
	}
	s.sessions[sess.ID] = sess
	s.byArticle[articleID] = sess.ID
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	s.logger.Info().
		Str("session_id", sess.ID.String()).
		Int64("article_id", articleID).
		Int("media", len(seed)).
		Msg("edit session opened")
	return sess, nil
}

// Session returns an open session owned by the principal.
func (s *Service) Session(p models.Principal, id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %s", models.ErrNotFound, id)
	}
	if sess.OwnerUID != p.UID {
		return nil, models.ErrForbidden
	}
	sess.touch()
	return sess, nil
}

// CloseSession discards the session and everything not committed.
func (s *Service) CloseSession(p models.Principal, id uuid.UUID) error {
	sess, err := s.Session(p, id)
	if err != nil {
		return err
	}
	s.drop(sess, "closed")
	return nil
}

func (s *Service) drop(sess *Session, reason string) {
	s.mu.Lock()
	if _, ok := s.sessions[sess.ID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, sess.ID)
	if s.byArticle[sess.ArticleID] == sess.ID {
		delete(s.byArticle, sess.ArticleID)
	}
	s.mu.Unlock()

	sess.ctrl.Discard()
	metrics.ActiveSessions.Dec()
	s.logger.Info().
		Str("session_id", sess.ID.String()).
		Int64("article_id", sess.ArticleID).
		Str("reason", reason).
		Msg("edit session discarded")
}

// ReapIdle discards sessions unused for longer than the idle timeout and
// returns how many were dropped.
func (s *Service) ReapIdle() int {
	if s.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := s.clock().Add(-s.cfg.IdleTimeout)

	s.mu.RLock()
	var idle []*Session
	for _, sess := range s.sessions {
		if sess.LastUsed().Before(cutoff) {
			idle = append(idle, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range idle {
		s.drop(sess, "idle")
	}
	return len(idle)
}

// RunSweeper reaps idle sessions every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Dur("idle_timeout", s.cfg.IdleTimeout).Msg("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("session sweeper stopped")
			return
		case <-ticker.C:
			if n := s.ReapIdle(); n > 0 {
				s.logger.Info().Int("reaped", n).Msg("idle sessions discarded")
			}
		}
	}
}

// Shutdown discards every open session and waits for their uploads to stop.
func (s *Service) Shutdown() {
	s.mu.RLock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.RUnlock()

	for _, sess := range all {
		s.drop(sess, "shutdown")
		sess.ctrl.Wait()
	}
}

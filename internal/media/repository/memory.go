package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/holograma/internal/media/models"
)

// MemoryRepository keeps articles and their media in process. It follows the
// same commit rules as the postgres repository and backs local runs and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	nextID   int64
	articles map[int64]*models.Article
	media    map[string]models.StoredMedia
	// order holds the media ids of each article, index is the position.
	order map[int64][]string

	clock func() time.Time
	idGen func() string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		articles: make(map[int64]*models.Article),
		media:    make(map[string]models.StoredMedia),
		order:    make(map[int64][]string),
		clock:    time.Now,
		idGen:    uuid.NewString,
	}
}

func (r *MemoryRepository) ListArticles(ctx context.Context, limit, offset int) ([]models.Article, error) {
	if limit <= 0 || offset < 0 {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]models.Article, 0, len(r.articles))
	for _, a := range r.articles {
		all = append(all, r.withMediaLocked(a))
	}
	slices.SortFunc(all, func(a, b models.Article) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if offset >= len(all) {
		return []models.Article{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *MemoryRepository) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	if id <= 0 {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.articles[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := r.withMediaLocked(a)
	return &cp, nil
}

func (r *MemoryRepository) CreateArticle(ctx context.Context, a *models.Article) error {
	if a == nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	a.ID = r.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.clock().UTC()
	}
	a.Media = []models.StoredMedia{}

	// Защитная копия, чтобы внешняя сторона не могла мутировать хранимый объект
	cp := *a
	cp.Media = nil
	r.articles[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) UpdateArticle(ctx context.Context, id int64, upd models.ArticleUpdate) (*models.Article, error) {
	if id <= 0 {
		return nil, models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.articles[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if upd.Title != nil {
		a.Title = *upd.Title
	}
	if upd.Artist != nil {
		a.Artist = *upd.Artist
	}
	if upd.Content != nil {
		a.Content = *upd.Content
	}
	cp := r.withMediaLocked(a)
	return &cp, nil
}

func (r *MemoryRepository) ListArticleMedia(ctx context.Context, articleID int64) ([]models.StoredMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.articles[articleID]; !ok {
		return nil, models.ErrNotFound
	}
	return r.mediaLocked(articleID), nil
}

func (r *MemoryRepository) ApplyMediaCommit(ctx context.Context, articleID int64, payload models.CommitPayload) ([]models.StoredMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.articles[articleID]; !ok {
		return nil, models.ErrNotFound
	}

	toDelete, err := payload.Reconcile(articleID, r.order[articleID])
	if err != nil {
		return nil, err
	}

	next := make([]string, 0, len(payload.OrderedExistingIDs)+len(payload.NewlyUploaded))
	inserted := make([]models.StoredMedia, 0, len(payload.NewlyUploaded))
	for _, slot := range payload.Layout() {
		if slot.New == nil {
			next = append(next, slot.ExistingID)
			continue
		}
		m := models.StoredMedia{
			ID:       r.idGen(),
			URL:      slot.New.URL,
			Kind:     slot.New.Kind,
			Provider: slot.New.Provider,
			PublicID: slot.New.PublicID,
			Width:    slot.New.Width,
			Height:   slot.New.Height,
			Duration: slot.New.Duration,
		}
		inserted = append(inserted, m)
		next = append(next, m.ID)
	}

	for _, id := range toDelete {
		delete(r.media, id)
	}
	for _, m := range inserted {
		r.media[m.ID] = m
	}
	r.order[articleID] = next

	return r.mediaLocked(articleID), nil
}

func (r *MemoryRepository) mediaLocked(articleID int64) []models.StoredMedia {
	ids := r.order[articleID]
	out := make([]models.StoredMedia, 0, len(ids))
	for pos, id := range ids {
		m := r.media[id]
		m.Position = pos
		out = append(out, m)
	}
	return out
}

func (r *MemoryRepository) withMediaLocked(a *models.Article) models.Article {
	cp := *a
	cp.Media = r.mediaLocked(a.ID)
	return cp
}

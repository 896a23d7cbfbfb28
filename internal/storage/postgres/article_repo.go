package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/holograma/internal/media/models"
)

const mediaColumns = `m.id::text AS id, m.url, m.kind, m.provider, m.public_id, am.position, m.width, m.height, m.duration`

type ArticleRepo struct {
	db     *sqlx.DB
	outbox *OutboxRepo
	idGen  func() uuid.UUID
}

func NewArticleRepo(db *sqlx.DB, outbox *OutboxRepo) *ArticleRepo {
	return &ArticleRepo{db: db, outbox: outbox, idGen: uuid.New}
}

type articleMediaRow struct {
	ArticleID int64 `db:"article_id"`
	models.StoredMedia
}

func (r *ArticleRepo) ListArticles(ctx context.Context, limit, offset int) ([]models.Article, error) {
	const q = `
		SELECT id, title, artist, content, author_uid, created_at
		FROM article
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	articles := []models.Article{}
	if err := r.db.SelectContext(ctx, &articles, q, limit, offset); err != nil {
		return nil, fmt.Errorf("article list: %w", err)
	}
	if len(articles) == 0 {
		return articles, nil
	}

	ids := make([]int64, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	query, args, err := sqlx.In(`
		SELECT am.article_id, `+mediaColumns+`
		FROM article_media am
		JOIN media m ON m.id = am.media_id
		WHERE am.article_id IN (?)
		ORDER BY am.article_id, am.position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("article list media: %w", err)
	}

	var rows []articleMediaRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("article list media: %w", err)
	}

	byArticle := make(map[int64][]models.StoredMedia, len(articles))
	for _, row := range rows {
		byArticle[row.ArticleID] = append(byArticle[row.ArticleID], row.StoredMedia)
	}
	for i := range articles {
		if media, ok := byArticle[articles[i].ID]; ok {
			articles[i].Media = media
		} else {
			articles[i].Media = []models.StoredMedia{}
		}
	}
	return articles, nil
}

func (r *ArticleRepo) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	const q = `
		SELECT id, title, artist, content, author_uid, created_at
		FROM article
		WHERE id = $1
	`

	var a models.Article
	if err := r.db.GetContext(ctx, &a, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("article get: %w", err)
	}

	media, err := selectMedia(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	a.Media = media
	return &a, nil
}

func (r *ArticleRepo) CreateArticle(ctx context.Context, a *models.Article) error {
	const q = `
		INSERT INTO article (title, artist, content, author_uid)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	row := r.db.QueryRowxContext(ctx, q, a.Title, a.Artist, a.Content, a.AuthorUID)
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("article create: %w", err)
	}
	a.Media = []models.StoredMedia{}
	return nil
}

func (r *ArticleRepo) UpdateArticle(ctx context.Context, id int64, upd models.ArticleUpdate) (*models.Article, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	add := func(col string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("title", upd.Title)
	add("artist", upd.Artist)
	add("content", upd.Content)

	if len(sets) == 0 {
		return r.GetArticle(ctx, id)
	}
	args = append(args, id)
	q := fmt.Sprintf(`
		UPDATE article
		SET %s
		WHERE id = $%d
		RETURNING id, title, artist, content, author_uid, created_at
	`, strings.Join(sets, ", "), len(args))

	var a models.Article
	if err := r.db.GetContext(ctx, &a, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("article update: %w", err)
	}

	media, err := selectMedia(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	a.Media = media
	return &a, nil
}

func selectMedia(ctx context.Context, q sqlx.QueryerContext, articleID int64) ([]models.StoredMedia, error) {
	query := `
		SELECT ` + mediaColumns + `
		FROM article_media am
		JOIN media m ON m.id = am.media_id
		WHERE am.article_id = $1
		ORDER BY am.position
	`

	media := []models.StoredMedia{}
	if err := sqlx.SelectContext(ctx, q, &media, query, articleID); err != nil {
		return nil, fmt.Errorf("select article media: %w", err)
	}
	return media, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/holograma/internal/media/models"
)

func (r *ArticleRepo) ListArticleMedia(ctx context.Context, articleID int64) ([]models.StoredMedia, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM article WHERE id = $1)`, articleID); err != nil {
		return nil, fmt.Errorf("article exists: %w", err)
	}
	if !exists {
		return nil, models.ErrNotFound
	}
	return selectMedia(ctx, r.db, articleID)
}

// ApplyMediaCommit writes a commit payload in one transaction: deleted media
// go away, surviving media get their new positions, uploaded media get rows,
// and a MediaSetCommitted event lands in the outbox. The refreshed media are
// read back inside the same transaction.
func (r *ArticleRepo) ApplyMediaCommit(ctx context.Context, articleID int64, payload models.CommitPayload) ([]models.StoredMedia, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // откатится если не сделаем Commit

	// 1. Лочим статью, чтобы два коммита не перемешали позиции
	var locked int64
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM article WHERE id = $1 FOR UPDATE`, articleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("lock article: %w", err)
	}

	// 2. Сверяем, что сессия видела ровно те медиа, что лежат в базе
	var linked []string
	if err := tx.SelectContext(ctx, &linked,
		`SELECT media_id::text FROM article_media WHERE article_id = $1`, articleID); err != nil {
		return nil, fmt.Errorf("select linked media: %w", err)
	}
	toDelete, err := payload.Reconcile(articleID, linked)
	if err != nil {
		return nil, err
	}

	// 3. Удаляем
	if len(toDelete) > 0 {
		if err := deleteMedia(ctx, tx, articleID, toDelete); err != nil {
			return nil, err
		}
	}

	// 4. Переставляем и вставляем новые
	if _, err := tx.ExecContext(ctx, `SET CONSTRAINTS article_media_position_uniq DEFERRED`); err != nil {
		return nil, fmt.Errorf("defer position constraint: %w", err)
	}
	order := make([]string, 0, len(payload.OrderedExistingIDs)+len(payload.NewlyUploaded))
	inserted := make([]string, 0, len(payload.NewlyUploaded))
	for _, slot := range payload.Layout() {
		if slot.New == nil {
			if err := r.moveMedia(ctx, tx, articleID, slot.ExistingID, slot.Position); err != nil {
				return nil, err
			}
			order = append(order, slot.ExistingID)
			continue
		}
		id, err := r.insertMedia(ctx, tx, articleID, *slot.New, slot.Position)
		if err != nil {
			return nil, err
		}
		order = append(order, id)
		inserted = append(inserted, id)
	}

	// 5. Событие в outbox (В ТОЙ ЖЕ ТРАНЗАКЦИИ)
	event := models.NewMediaSetCommitted(articleID, order, toDelete, inserted)
	if err := r.outbox.Add(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("add outbox: %w", err)
	}

	media, err := selectMedia(ctx, tx, articleID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return media, nil
}

func deleteMedia(ctx context.Context, tx *sqlx.Tx, articleID int64, ids []string) error {
	query, args, err := sqlx.In(`DELETE FROM article_media WHERE article_id = ? AND media_id::text IN (?)`, articleID, ids)
	if err != nil {
		return fmt.Errorf("build unlink query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("unlink media: %w", err)
	}

	query, args, err = sqlx.In(`
		DELETE FROM media
		WHERE id::text IN (?)
		  AND NOT EXISTS (SELECT 1 FROM article_media am WHERE am.media_id = media.id)
	`, ids)
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}

func (r *ArticleRepo) moveMedia(ctx context.Context, tx *sqlx.Tx, articleID int64, mediaID string, position int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE article_media SET position = $3 WHERE article_id = $1 AND media_id::text = $2`,
		articleID, mediaID, position)
	if err != nil {
		return fmt.Errorf("move media %s: %w", mediaID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("move media %s: %w", mediaID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: media %s is not linked to article %d", models.ErrConflict, mediaID, articleID)
	}
	return nil
}

func (r *ArticleRepo) insertMedia(ctx context.Context, tx *sqlx.Tx, articleID int64, m models.NewMedia, position int) (string, error) {
	id := r.idGen()

	const insertMedia = `
		INSERT INTO media (id, url, kind, provider, public_id, width, height, duration)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := tx.ExecContext(ctx, insertMedia, id, m.URL, m.Kind, m.Provider, m.PublicID, m.Width, m.Height, m.Duration); err != nil {
		return "", fmt.Errorf("insert media: %w", err)
	}

	const link = `
		INSERT INTO article_media (article_id, media_id, position)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.ExecContext(ctx, link, articleID, id, position); err != nil {
		return "", fmt.Errorf("link media: %w", err)
	}
	return id.String(), nil
}

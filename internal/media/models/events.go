package models

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
}

// MediaSetCommitted is recorded in the outbox when an edit session commit
// changes the media of an article.
type MediaSetCommitted struct {
	eventID    uuid.UUID
	articleID  int64
	ordered    []string
	deleted    []string
	inserted   []string
	occurredAt time.Time
}

func NewMediaSetCommitted(articleID int64, ordered, deleted, inserted []string) *MediaSetCommitted {
	return &MediaSetCommitted{
		eventID:    uuid.New(),
		articleID:  articleID,
		ordered:    ordered,
		deleted:    deleted,
		inserted:   inserted,
		occurredAt: time.Now().UTC(),
	}
}

func (e *MediaSetCommitted) EventID() uuid.UUID    { return e.eventID }
func (e *MediaSetCommitted) EventType() string     { return "MediaSetCommitted" }
func (e *MediaSetCommitted) AggregateID() string   { return strconv.FormatInt(e.articleID, 10) }
func (e *MediaSetCommitted) OccurredAt() time.Time { return e.occurredAt }

func (e *MediaSetCommitted) ArticleID() int64   { return e.articleID }
func (e *MediaSetCommitted) Deleted() []string  { return e.deleted }
func (e *MediaSetCommitted) Inserted() []string { return e.inserted }

func (e *MediaSetCommitted) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID    uuid.UUID `json:"event_id"`
		ArticleID  int64     `json:"article_id"`
		MediaOrder []string  `json:"media_order"`
		Deleted    []string  `json:"deleted"`
		Inserted   []string  `json:"inserted"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		EventID:    e.eventID,
		ArticleID:  e.articleID,
		MediaOrder: e.ordered,
		Deleted:    e.deleted,
		Inserted:   e.inserted,
		OccurredAt: e.occurredAt,
	})
}

package models

import "time"

type Article struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Artist    string    `db:"artist" json:"artist"`
	Content   string    `db:"content" json:"content"`
	AuthorUID string    `db:"author_uid" json:"author_uid"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Media []StoredMedia `db:"-" json:"media"`
}

// ArticleUpdate carries the text fields to change. Nil fields are left alone.
type ArticleUpdate struct {
	Title   *string `json:"title"`
	Artist  *string `json:"artist"`
	Content *string `json:"content"`
}

// URLsOf returns the URLs of the article media of one kind, in display order.
func (a *Article) URLsOf(kind MediaKind) []string {
	urls := []string{}
	for _, m := range a.Media {
		if m.Kind == kind {
			urls = append(urls, m.URL)
		}
	}
	return urls
}

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleReader Role = "reader"
)

// Principal is the authenticated caller, resolved once per request.
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

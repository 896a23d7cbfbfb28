package models

type MediaKind string

const (
	Image MediaKind = "image"
	Video MediaKind = "video"
	Audio MediaKind = "audio"
)

func (k MediaKind) Valid() bool {
	switch k {
	case Image, Video, Audio:
		return true
	}
	return false
}

type UploadState string

const (
	LocalState     UploadState = "local"
	UploadingState UploadState = "uploading"
	UploadedState  UploadState = "uploaded"
	FailedState    UploadState = "failed"
)

// Origin tells whether an item was persisted when the edit session started
// or was added during it.
type Origin string

const (
	OriginExisting Origin = "existing"
	OriginAdded    Origin = "added"
)

// MediaItem is one entry of an article's media set as seen by an edit session.
type MediaItem struct {
	ID          string      `json:"id"`
	Kind        MediaKind   `json:"kind"`
	Origin      Origin      `json:"origin"`
	SourceRef   string      `json:"source_ref"`
	// Provider and PublicID locate the hosted object once the item is uploaded.
	Provider    string      `json:"provider,omitempty"`
	PublicID    string      `json:"public_id,omitempty"`
	UploadState UploadState `json:"upload_state"`
	Position    int         `json:"position"`
	Width       *int        `json:"width,omitempty"`
	Height      *int        `json:"height,omitempty"`
	Duration    *float64    `json:"duration,omitempty"`
	FailReason  string      `json:"fail_reason,omitempty"`
}

// StoredMedia is a media row attached to an article through article_media.
type StoredMedia struct {
	ID       string    `db:"id" json:"id"`
	URL      string    `db:"url" json:"url"`
	Kind     MediaKind `db:"kind" json:"kind"`
	Provider string    `db:"provider" json:"provider"`
	PublicID string    `db:"public_id" json:"public_id"`
	Position int       `db:"position" json:"position"`
	Width    *int      `db:"width" json:"width,omitempty"`
	Height   *int      `db:"height" json:"height,omitempty"`
	Duration *float64  `db:"duration" json:"duration,omitempty"`
}

// File is a raw file handed to an edit session. MIMEType is the declared type.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// UploadResult is what a media host returns for an uploaded file. PublicID
// is the key of the object within the Provider.
type UploadResult struct {
	URL      string
	Kind     MediaKind
	Provider string
	PublicID string
	Width    *int
	Height   *int
	Duration *float64
}

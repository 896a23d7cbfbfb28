// Package mediaset keeps the media of one article consistent while it is being
// edited: which items exist, in which order, and what still has to be uploaded
// or deleted before the edit can be committed.
package mediaset

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/romariotrain/holograma/internal/media/domain"
	"github.com/romariotrain/holograma/internal/media/mediaid"
	"github.com/romariotrain/holograma/internal/media/models"
)

// DefaultConcurrency is the number of uploads a controller runs at once
// unless Config says otherwise.
const DefaultConcurrency = 3

const releaseTimeout = 30 * time.Second

// Uploader turns raw bytes into a hosted URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, mimeType string) (models.UploadResult, error)
}

// Deleter is implemented by uploaders that can remove a hosted object. When
// the uploader has it, objects uploaded for items that never get committed
// are deleted again, and so are the objects of stored media once a commit
// removed their rows.
type Deleter interface {
	Delete(ctx context.Context, publicID string) error
}

// Store applies a commit payload as one unit of work and returns the
// refreshed media of the article.
type Store interface {
	ApplyMediaCommit(ctx context.Context, articleID int64, payload models.CommitPayload) ([]models.StoredMedia, error)
}

type Config struct {
	Uploader Uploader
	// Concurrency bounds the uploads running at once. Zero means DefaultConcurrency.
	Concurrency int64
	Logger      zerolog.Logger
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Items              []models.MediaItem `json:"items"`
	PendingDeletionIDs []string           `json:"pending_deletion_ids"`
	Pending            int                `json:"pending"`
	Failed             int                `json:"failed"`
	Closed             bool               `json:"closed"`
}

type entry struct {
	item models.MediaItem
	// file holds the bytes of an added item until its upload succeeds.
	file *models.File
}

// Controller owns the media set of one edit session.
//
// Every mutation runs under mu and leaves positions dense (0..N-1) and ids
// unique before it returns. Upload completions are matched by item id and
// applied only if the item is still active and still uploading.
type Controller struct {
	mu         sync.Mutex
	items      []*entry
	// deleted maps ids removed from storage to their hosted object keys.
	deleted    map[string]string
	closed     bool
	committing bool

	uploader Uploader
	deleter  Deleter
	sem      *semaphore.Weighted
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   zerolog.Logger

	newID    func() string
	dispatch func(func())
}

// New creates a controller seeded with the stored media of an article.
func New(cfg Config, seed []models.StoredMedia) (*Controller, error) {
	if cfg.Uploader == nil {
		return nil, fmt.Errorf("%w: uploader is required", models.ErrInvalidArgument)
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("%w: concurrency cannot be negative", models.ErrInvalidArgument)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		uploader: cfg.Uploader,
		sem:      semaphore.NewWeighted(cfg.Concurrency),
		ctx:      ctx,
		cancel:   cancel,
		logger:   cfg.Logger.With().Str("component", "mediaset").Logger(),
		newID:    mediaid.NewTemp,
		dispatch: func(f func()) { go f() },
	}
	c.deleter, _ = cfg.Uploader.(Deleter)
	if err := c.seedLocked(seed); err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

func (c *Controller) seedLocked(stored []models.StoredMedia) error {
	sorted := slices.Clone(stored)
	slices.SortStableFunc(sorted, func(a, b models.StoredMedia) int {
		return cmp.Compare(a.Position, b.Position)
	})

	items := make([]*entry, 0, len(sorted))
	seen := make(map[string]struct{}, len(sorted))
	for _, m := range sorted {
		if m.ID == "" {
			return fmt.Errorf("%w: stored media without id", models.ErrInvalidArgument)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("%w: duplicate media id %s", models.ErrInvalidArgument, m.ID)
		}
		seen[m.ID] = struct{}{}
		items = append(items, &entry{item: models.MediaItem{
			ID:          m.ID,
			Kind:        m.Kind,
			Origin:      models.OriginExisting,
			SourceRef:   m.URL,
			Provider:    m.Provider,
			PublicID:    m.PublicID,
			UploadState: models.UploadedState,
			Width:       m.Width,
			Height:      m.Height,
			Duration:    m.Duration,
		}})
	}

	c.items = items
	c.deleted = make(map[string]string)
	c.densify()
	return nil
}

func (c *Controller) densify() {
	for i, e := range c.items {
		e.item.Position = i
	}
}

func (c *Controller) find(id string) (int, *entry) {
	for i, e := range c.items {
		if e.item.ID == id {
			return i, e
		}
	}
	return -1, nil
}

func (c *Controller) removeAt(i int) {
	c.items = slices.Delete(c.items, i, i+1)
	c.densify()
}

func (c *Controller) mutableLocked() error {
	if c.closed {
		return models.ErrSessionClosed
	}
	if c.committing {
		return fmt.Errorf("%w: commit in progress", models.ErrConflict)
	}
	return nil
}

// AddFiles appends one local item per file and starts their uploads.
// It returns the temporary ids in file order.
func (c *Controller) AddFiles(files []models.File) ([]string, error) {
	c.mu.Lock()
	if err := c.mutableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if len(files) == 0 {
		c.mu.Unlock()
		return nil, nil
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		file := f
		id := c.newID()
		c.items = append(c.items, &entry{
			item: models.MediaItem{
				ID:          id,
				Kind:        domain.KindFromMIME(f.MIMEType),
				Origin:      models.OriginAdded,
				SourceRef:   "local://" + f.Name,
				UploadState: models.LocalState,
				Position:    len(c.items),
			},
			file: &file,
		})
		ids = append(ids, id)
	}
	c.wg.Add(len(ids))
	c.mu.Unlock()

	for _, id := range ids {
		c.dispatch(func() { c.upload(id) })
	}
	return ids, nil
}

func (c *Controller) upload(id string) {
	defer c.wg.Done()

	if err := c.sem.Acquire(c.ctx, 1); err != nil {
		// discarded while queued
		return
	}
	defer c.sem.Release(1)

	file, ok := c.beginUpload(id)
	if !ok {
		return
	}
	res, err := c.uploader.Upload(c.ctx, file.Data, file.MIMEType)
	c.completeUpload(id, res, err)
}

func (c *Controller) beginUpload(id string) (*models.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false
	}
	_, e := c.find(id)
	if e == nil || e.file == nil {
		return nil, false
	}
	switch e.item.UploadState {
	case models.LocalState:
		if err := domain.ValidateTransition(e.item.UploadState, models.UploadingState); err != nil {
			return nil, false
		}
		e.item.UploadState = models.UploadingState
	case models.UploadingState:
		// retry already moved it
	default:
		return nil, false
	}
	return e.file, true
}

func (c *Controller) completeUpload(id string, res models.UploadResult, uploadErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug().Str("item_id", id).Msg("ignoring upload result after discard")
		if uploadErr == nil {
			c.releaseLocked(res.PublicID)
		}
		return
	}
	_, e := c.find(id)
	if e == nil || e.item.UploadState != models.UploadingState {
		c.logger.Debug().Str("item_id", id).Msg("dropping stale upload result")
		if uploadErr == nil {
			c.releaseLocked(res.PublicID)
		}
		return
	}

	if uploadErr != nil {
		e.item.UploadState = models.FailedState
		e.item.FailReason = fmt.Errorf("%w: %w", models.ErrUpload, uploadErr).Error()
		c.logger.Warn().Err(uploadErr).Str("item_id", id).Msg("upload failed")
		return
	}

	e.item.UploadState = models.UploadedState
	e.item.SourceRef = res.URL
	e.item.Provider = res.Provider
	e.item.PublicID = res.PublicID
	e.item.FailReason = ""
	e.item.Width = res.Width
	e.item.Height = res.Height
	e.item.Duration = res.Duration
	e.file = nil
	if res.Kind != "" && res.Kind != e.item.Kind {
		c.logger.Debug().
			Str("item_id", id).
			Str("declared", string(e.item.Kind)).
			Str("detected", string(res.Kind)).
			Msg("host detected a different kind, keeping declared")
	}
}

// releaseLocked deletes a hosted object nothing refers to anymore.
func (c *Controller) releaseLocked(publicID string) {
	if c.deleter == nil || publicID == "" {
		return
	}
	c.wg.Add(1)
	c.dispatch(func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := c.deleter.Delete(ctx, publicID); err != nil {
			c.logger.Warn().Err(err).Str("public_id", publicID).Msg("failed to delete orphaned object")
		}
	})
}

// Retry re-runs the upload of a failed item.
func (c *Controller) Retry(id string) error {
	c.mu.Lock()
	if err := c.mutableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	_, e := c.find(id)
	if e == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: item %s", models.ErrNotFound, id)
	}
	if e.item.Origin != models.OriginAdded || e.file == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: item %s has nothing to upload", models.ErrInvalidArgument, id)
	}
	if e.item.UploadState != models.FailedState {
		c.mu.Unlock()
		return fmt.Errorf("%w: item %s is %s", domain.ErrInvalidTransition, id, e.item.UploadState)
	}
	e.item.UploadState = models.UploadingState
	e.item.FailReason = ""
	c.wg.Add(1)
	c.mu.Unlock()

	c.dispatch(func() { c.upload(id) })
	return nil
}

// RemoveExisting drops a stored item from the ordering and records it for
// deletion. Unknown or already removed ids are a no-op.
func (c *Controller) RemoveExisting(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.mutableLocked(); err != nil {
		return err
	}
	if _, ok := c.deleted[id]; ok {
		return nil
	}
	i, e := c.find(id)
	if e == nil {
		return nil
	}
	if e.item.Origin != models.OriginExisting {
		return fmt.Errorf("%w: item %s was added in this session", models.ErrInvalidArgument, id)
	}
	c.removeAt(i)
	c.deleted[id] = e.item.PublicID
	return nil
}

// RemoveAdded drops an item added in this session, whatever its upload state.
// A late upload completion for it is ignored.
func (c *Controller) RemoveAdded(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.mutableLocked(); err != nil {
		return err
	}
	i, e := c.find(id)
	if e == nil {
		return nil
	}
	if e.item.Origin != models.OriginAdded {
		return fmt.Errorf("%w: item %s is stored", models.ErrInvalidArgument, id)
	}
	e.file = nil
	if e.item.UploadState == models.UploadedState {
		c.releaseLocked(e.item.PublicID)
	}
	c.removeAt(i)
	return nil
}

// Remove dispatches to RemoveExisting or RemoveAdded by the item origin.
func (c *Controller) Remove(id string) error {
	item, ok := c.Item(id)
	if !ok {
		return c.RemoveExisting(id)
	}
	if item.Origin == models.OriginExisting {
		return c.RemoveExisting(id)
	}
	return c.RemoveAdded(id)
}

// Reorder replaces the whole ordering. ids must be a permutation of the
// active ids, otherwise ErrInvalidReorder is returned and nothing changes.
func (c *Controller) Reorder(ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.mutableLocked(); err != nil {
		return err
	}
	if len(ids) != len(c.items) {
		return fmt.Errorf("%w: got %d ids, %d active", models.ErrInvalidReorder, len(ids), len(c.items))
	}

	byID := make(map[string]*entry, len(c.items))
	for _, e := range c.items {
		byID[e.item.ID] = e
	}
	next := make([]*entry, 0, len(ids))
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: unknown or repeated id %q", models.ErrInvalidReorder, id)
		}
		delete(byID, id)
		next = append(next, e)
	}

	c.items = next
	c.densify()
	return nil
}

// DeriveCommitPayload computes the change set without touching the state.
func (c *Controller) DeriveCommitPayload() (models.CommitPayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return models.CommitPayload{}, models.ErrSessionClosed
	}
	return c.deriveLocked()
}

func (c *Controller) deriveLocked() (models.CommitPayload, error) {
	if n := c.countLocked(domain.Pending); n > 0 {
		return models.CommitPayload{}, fmt.Errorf("%w: %d item(s) not uploaded yet", models.ErrUploadsPending, n)
	}

	p := models.CommitPayload{
		OrderedExistingIDs: []string{},
		DeletedIDs:         make([]string, 0, len(c.deleted)),
		NewlyUploaded:      []models.NewMedia{},
	}
	rank := 0
	for _, e := range c.items {
		switch {
		case e.item.Origin == models.OriginExisting:
			p.OrderedExistingIDs = append(p.OrderedExistingIDs, e.item.ID)
		case e.item.UploadState == models.UploadedState:
			p.NewlyUploaded = append(p.NewlyUploaded, models.NewMedia{
				URL:      e.item.SourceRef,
				Kind:     e.item.Kind,
				Provider: e.item.Provider,
				PublicID: e.item.PublicID,
				Position: rank,
				Width:    e.item.Width,
				Height:   e.item.Height,
				Duration: e.item.Duration,
			})
		default:
			continue
		}
		rank++
	}
	for id := range c.deleted {
		p.DeletedIDs = append(p.DeletedIDs, id)
	}
	slices.Sort(p.DeletedIDs)
	return p, nil
}

func (c *Controller) countLocked(match func(models.UploadState) bool) int {
	n := 0
	for _, e := range c.items {
		if e.item.Origin == models.OriginAdded && match(e.item.UploadState) {
			n++
		}
	}
	return n
}

// Commit hands the payload to the store. On failure the state is left as it
// was so the same commit can be retried. On success the controller is
// re-seeded from the media the store returns and the hosted objects of
// removed media are deleted.
func (c *Controller) Commit(ctx context.Context, articleID int64, store Store) (models.CommitPayload, error) {
	c.mu.Lock()
	if err := c.mutableLocked(); err != nil {
		c.mu.Unlock()
		return models.CommitPayload{}, err
	}
	payload, err := c.deriveLocked()
	if err != nil {
		c.mu.Unlock()
		return models.CommitPayload{}, err
	}
	if n := c.countLocked(func(s models.UploadState) bool { return s == models.FailedState }); n > 0 {
		c.mu.Unlock()
		return models.CommitPayload{}, fmt.Errorf("%w: %d item(s) must be retried or removed", models.ErrUploadsFailed, n)
	}
	c.committing = true
	c.mu.Unlock()

	stored, err := store.ApplyMediaCommit(ctx, articleID, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.committing = false

	if err != nil {
		return models.CommitPayload{}, fmt.Errorf("%w: %w", models.ErrPersistence, err)
	}
	// the rows are gone, so are their objects
	for _, publicID := range c.deleted {
		c.releaseLocked(publicID)
	}
	if c.closed {
		return payload, nil
	}
	if err := c.seedLocked(stored); err != nil {
		return payload, fmt.Errorf("reseed after commit: %w", err)
	}
	return payload, nil
}

// Discard makes the controller inert. In-flight uploads are cancelled, local
// buffers are dropped and later completions are ignored. Objects uploaded for
// added items are deleted when the uploader supports it.
func (c *Controller) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	for _, e := range c.items {
		e.file = nil
		// a commit in flight may still persist them
		if !c.committing && e.item.Origin == models.OriginAdded && e.item.UploadState == models.UploadedState {
			c.releaseLocked(e.item.PublicID)
		}
	}
}

// Wait blocks until every dispatched upload and object deletion has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Item returns a copy of the active item with the given id.
func (c *Controller) Item(id string) (models.MediaItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, e := c.find(id)
	if e == nil {
		return models.MediaItem{}, false
	}
	return e.item, true
}

// Snapshot copies the active items in position order and the pending deletions.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Items:              make([]models.MediaItem, 0, len(c.items)),
		PendingDeletionIDs: make([]string, 0, len(c.deleted)),
		Pending:            c.countLocked(domain.Pending),
		Failed:             c.countLocked(func(s models.UploadState) bool { return s == models.FailedState }),
		Closed:             c.closed,
	}
	for _, e := range c.items {
		s.Items = append(s.Items, e.item)
	}
	for id := range c.deleted {
		s.PendingDeletionIDs = append(s.PendingDeletionIDs, id)
	}
	slices.Sort(s.PendingDeletionIDs)
	return s
}

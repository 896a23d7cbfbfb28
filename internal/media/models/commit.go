package models

import "fmt"

// NewMedia is an uploaded item that has no row yet.
type NewMedia struct {
	URL      string    `json:"url"`
	Kind     MediaKind `json:"kind"`
	Provider string    `json:"provider,omitempty"`
	PublicID string    `json:"public_id,omitempty"`
	Position int       `json:"position"`
	Width    *int      `json:"width,omitempty"`
	Height   *int      `json:"height,omitempty"`
	Duration *float64  `json:"duration,omitempty"`
}

// CommitPayload is the minimal change set that turns the stored media of an
// article into the state of an edit session.
//
// Positions of NewlyUploaded are ranks in the committed ordering, that is the
// active items that are either existing or uploaded. The slots not taken by
// new items belong to OrderedExistingIDs, in order.
type CommitPayload struct {
	OrderedExistingIDs []string   `json:"ordered_existing_ids"`
	DeletedIDs         []string   `json:"deleted_ids"`
	NewlyUploaded      []NewMedia `json:"newly_uploaded"`
}

func (p CommitPayload) Empty() bool {
	return len(p.OrderedExistingIDs) == 0 && len(p.DeletedIDs) == 0 && len(p.NewlyUploaded) == 0
}

// Slot is one position of the committed ordering. Exactly one of ExistingID
// and New is set.
type Slot struct {
	Position   int
	ExistingID string
	New        *NewMedia
}

// Layout merges existing and new items into the final dense ordering.
func (p CommitPayload) Layout() []Slot {
	total := len(p.OrderedExistingIDs) + len(p.NewlyUploaded)
	slots := make([]Slot, 0, total)

	ei, ni := 0, 0
	for pos := 0; pos < total; pos++ {
		takeNew := ni < len(p.NewlyUploaded) &&
			(ei == len(p.OrderedExistingIDs) || p.NewlyUploaded[ni].Position <= pos)
		if takeNew {
			nm := p.NewlyUploaded[ni]
			slots = append(slots, Slot{Position: pos, New: &nm})
			ni++
			continue
		}
		slots = append(slots, Slot{Position: pos, ExistingID: p.OrderedExistingIDs[ei]})
		ei++
	}
	return slots
}

// Reconcile checks the payload against the media currently linked to the
// article and returns the deleted ids that are still linked. It fails with
// ErrConflict when the linked media minus the deletions are not exactly
// OrderedExistingIDs, each listed once.
func (p CommitPayload) Reconcile(articleID int64, linked []string) ([]string, error) {
	deleted := make(map[string]struct{}, len(p.DeletedIDs))
	for _, id := range p.DeletedIDs {
		deleted[id] = struct{}{}
	}

	toDelete := make([]string, 0, len(p.DeletedIDs))
	remaining := make(map[string]struct{}, len(linked))
	for _, id := range linked {
		if _, gone := deleted[id]; gone {
			toDelete = append(toDelete, id)
			continue
		}
		remaining[id] = struct{}{}
	}

	if len(remaining) != len(p.OrderedExistingIDs) {
		return nil, fmt.Errorf("%w: article %d media changed since the session opened", ErrConflict, articleID)
	}
	for _, id := range p.OrderedExistingIDs {
		if _, ok := remaining[id]; !ok {
			return nil, fmt.Errorf("%w: media %s is not linked to article %d or listed twice", ErrConflict, id, articleID)
		}
		delete(remaining, id)
	}
	return toDelete, nil
}

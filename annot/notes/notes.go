// Package notes is the index panel over the annotation store: search,
// type filtering, jump-to-position, inline editing, and export.
package notes

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marginapp/margin/annot/store"
	"github.com/marginapp/margin/models"
)

// TypeAll disables type filtering.
const TypeAll = "all"

// scrollOffset keeps the jump target clear of the fixed header.
const scrollOffset = 100

// Panel is the read-side view. It holds only view state (query, filter,
// in-flight edit, pending delete); the annotations themselves stay in the
// store.
type Panel struct {
	store *store.Store

	query      string
	typeFilter string

	editingId       string
	pendingDeleteId string

	// OnSelect highlights the annotation in the overlay (same callback the
	// decoration click path uses).
	OnSelect func(id string)

	// ScrollTo smooth-scrolls the viewport to an absolute document offset.
	ScrollTo func(y float64)
}

func NewPanel(s *store.Store) *Panel {
	return &Panel{store: s, typeFilter: TypeAll}
}

func (p *Panel) SetQuery(q string)      { p.query = q }
func (p *Panel) SetTypeFilter(t string) { p.typeFilter = t }
func (p *Panel) Query() string          { return p.query }
func (p *Panel) TypeFilter() string     { return p.typeFilter }

// Items returns the annotations matching the current query and type filter,
// in store insertion order.
func (p *Panel) Items() []models.Annotation {
	q := strings.ToLower(strings.TrimSpace(p.query))
	return p.store.List(func(a models.Annotation) bool {
		if p.typeFilter != TypeAll && string(a.Type) != p.typeFilter {
			return false
		}
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(a.Content), q)
	})
}

// JumpTo selects the annotation and scrolls the viewport to where it was
// captured. Drawings have no anchor rectangle, so they only get selected.
func (p *Panel) JumpTo(id string) bool {
	a, ok := p.store.Get(id)
	if !ok {
		return false
	}
	if p.OnSelect != nil {
		p.OnSelect(a.Id)
	}
	if pos, ok := a.Rect(); ok && p.ScrollTo != nil {
		p.ScrollTo(pos.ScrollY + pos.Y - scrollOffset)
	}
	return true
}

// CanEdit reports whether inline editing is offered for the annotation.
// Only authored note text and captured highlight text are editable.
func CanEdit(a models.Annotation) bool {
	return a.Type == models.TypeNote || a.Type == models.TypeHighlight
}

// BeginEdit opens the inline editor for an editable annotation.
func (p *Panel) BeginEdit(id string) bool {
	a, ok := p.store.Get(id)
	if !ok || !CanEdit(a) {
		return false
	}
	p.editingId = id
	return true
}

// SaveEdit persists the edited text via the store and closes the editor.
// Blank text is rejected rather than saved.
func (p *Panel) SaveEdit(content string) bool {
	if p.editingId == "" {
		return false
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return false
	}
	id := p.editingId
	p.editingId = ""
	return p.store.Update(id, store.Patch{Content: &content})
}

func (p *Panel) CancelEdit() { p.editingId = "" }

func (p *Panel) EditingId() string { return p.editingId }

// RequestDelete arms the confirmation step; nothing is removed until
// ConfirmDelete.
func (p *Panel) RequestDelete(id string) {
	p.pendingDeleteId = id
}

// ConfirmDelete performs the armed delete.
func (p *Panel) ConfirmDelete() bool {
	if p.pendingDeleteId == "" {
		return false
	}
	id := p.pendingDeleteId
	p.pendingDeleteId = ""
	return p.store.Delete(id)
}

func (p *Panel) CancelDelete() { p.pendingDeleteId = "" }

func (p *Panel) PendingDeleteId() string { return p.pendingDeleteId }

// Export serializes the document's full annotation set, ignoring the active
// query and filter, as human-readable JSON.
func (p *Panel) Export() (filename string, data []byte, err error) {
	all := p.store.List(nil)
	data, err = json.MarshalIndent(all, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("export annotations: %w", err)
	}
	return fmt.Sprintf("annotations-%s.json", p.store.DocumentId()), data, nil
}

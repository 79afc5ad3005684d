// Package prefs holds per-user UI state that outlives a session: the theme
// choice and floating sticky notes. It replaces ambient browser storage with
// an explicit object that hydrates once at startup and flushes on every
// mutation.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/uuid/v5"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Palette for new sticky notes, same order the reading UI offers.
var noteColors = []string{
	"#f9bc60",
	"#e16162",
	"#abd1c6",
	"#004643",
	"#c4b5fd",
	"#fdba74",
}

type StickyNote struct {
	Id      string  `json:"id"`
	Content string  `json:"content"`
	Color   string  `json:"color"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Storage persists the serialized state. Load returns fs.ErrNotExist when
// nothing has been saved yet.
type Storage interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

type state struct {
	Theme       Theme        `json:"theme"`
	StickyNotes []StickyNote `json:"stickyNotes"`
}

// Prefs is safe for concurrent use. Every mutation flushes synchronously;
// a failed flush is logged and the in-memory state stays authoritative.
type Prefs struct {
	mu      sync.Mutex
	storage Storage
	state   state
}

func New(storage Storage) *Prefs {
	return &Prefs{
		storage: storage,
		state:   state{Theme: ThemeLight},
	}
}

// Hydrate loads persisted state. A missing file is a clean first run; a
// corrupt file is logged and replaced by defaults on the next flush.
func (p *Prefs) Hydrate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.storage.Load()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Failed to load preferences: %v", err)
		}
		return
	}
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		log.Printf("Failed to parse preferences, using defaults: %v", err)
		return
	}
	if s.Theme == "" {
		s.Theme = ThemeLight
	}
	p.state = s
}

func (p *Prefs) Theme() Theme {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Theme
}

func (p *Prefs) SetTheme(t Theme) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Theme = t
	p.flush()
}

func (p *Prefs) ToggleTheme() Theme {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Theme == ThemeDark {
		p.state.Theme = ThemeLight
	} else {
		p.state.Theme = ThemeDark
	}
	p.flush()
	return p.state.Theme
}

func (p *Prefs) StickyNotes() []StickyNote {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StickyNote, len(p.state.StickyNotes))
	copy(out, p.state.StickyNotes)
	return out
}

// AddStickyNote creates an empty note at a loosely random spot so stacked
// notes do not fully overlap.
func (p *Prefs) AddStickyNote() StickyNote {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.Must(uuid.NewV4())
	}
	n := StickyNote{
		Id:     id.String(),
		Color:  noteColors[rand.Intn(len(noteColors))],
		X:      50 + rand.Float64()*200,
		Y:      100 + rand.Float64()*200,
		Width:  250,
		Height: 200,
	}
	p.state.StickyNotes = append(p.state.StickyNotes, n)
	p.flush()
	return n
}

// UpdateStickyNote replaces the stored note's content and geometry.
func (p *Prefs) UpdateStickyNote(n StickyNote) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.state.StickyNotes {
		if p.state.StickyNotes[i].Id == n.Id {
			p.state.StickyNotes[i] = n
			p.flush()
			return true
		}
	}
	return false
}

func (p *Prefs) DeleteStickyNote(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.state.StickyNotes {
		if p.state.StickyNotes[i].Id == id {
			p.state.StickyNotes = append(p.state.StickyNotes[:i], p.state.StickyNotes[i+1:]...)
			p.flush()
			return true
		}
	}
	return false
}

// CycleStickyNoteColor advances the note to the next palette entry.
func (p *Prefs) CycleStickyNoteColor(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.state.StickyNotes {
		if p.state.StickyNotes[i].Id != id {
			continue
		}
		next := 0
		for j, c := range noteColors {
			if c == p.state.StickyNotes[i].Color {
				next = (j + 1) % len(noteColors)
				break
			}
		}
		p.state.StickyNotes[i].Color = noteColors[next]
		p.flush()
		return true
	}
	return false
}

func (p *Prefs) flush() {
	data, err := json.MarshalIndent(p.state, "", "  ")
	if err != nil {
		log.Printf("Failed to encode preferences: %v", err)
		return
	}
	if err := p.storage.Save(data); err != nil {
		log.Printf("Failed to save preferences: %v", err)
	}
}

// FileStorage keeps the state in a single JSON file.
type FileStorage struct {
	Path string
}

func (f FileStorage) Load() ([]byte, error) {
	return os.ReadFile(f.Path)
}

func (f FileStorage) Save(data []byte) error {
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preferences dir: %w", err)
		}
	}
	return os.WriteFile(f.Path, data, 0o644)
}

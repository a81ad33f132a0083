package views

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for an unknown or malformed view ID.
	ErrNotFound    = errors.New("view not found")
	ErrNameMissing = errors.New("view name is required")
)

// View is a named bookmark of a dashboard location.
type View struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	Notes     string    `json:"notes,omitempty"`
}

// Store keeps one JSON file per view.
type Store struct {
	dir string
	mu  sync.RWMutex
	now func() time.Time
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("view store: mkdir %s: %w", dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) path(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return filepath.Join(s.dir, parsed.String()+".json"), nil
}

// Save stores a new view. The leading '?' of location is dropped.
func (s *Store) Save(name, location, notes string) (View, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return View{}, ErrNameMissing
	}
	v := View{
		ID:        uuid.NewString(),
		Name:      name,
		Location:  strings.TrimPrefix(strings.TrimSpace(location), "?"),
		CreatedAt: s.now().UTC(),
		Notes:     notes,
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return View{}, fmt.Errorf("view store: marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(filepath.Join(s.dir, v.ID+".json"), data, 0o644); err != nil {
		return View{}, fmt.Errorf("view store: write: %w", err)
	}
	return v, nil
}

func (s *Store) Get(id string) (View, error) {
	p, err := s.path(id)
	if err != nil {
		return View{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return View{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return View{}, fmt.Errorf("view store: read: %w", err)
	}
	var v View
	if err := json.Unmarshal(data, &v); err != nil {
		return View{}, fmt.Errorf("view store: unmarshal: %w", err)
	}
	return v, nil
}

// List returns all views, newest first. Unreadable files are skipped.
func (s *Store) List() ([]View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("view store: glob: %w", err)
	}

	out := make([]View, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var v View
		if err := json.Unmarshal(data, &v); err != nil {
			continue
		}
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Delete(id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("view store: delete: %w", err)
	}
	return nil
}

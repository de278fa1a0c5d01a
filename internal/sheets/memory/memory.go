package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ports "ricevute/internal/sheets"
)

// Store is an in-memory spreadsheet used for local development and tests.
// Each tab keeps its rows in append order; row 1 is reserved for the header.
type Store struct {
	mu   sync.Mutex
	tabs map[string]*tab
}

type tab struct {
	header []string
	rows   [][]string
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{tabs: make(map[string]*tab)}
}

func (s *Store) SheetTitles(_ context.Context, _ string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	titles := make([]string, 0, len(s.tabs))
	for name := range s.tabs {
		titles = append(titles, name)
	}
	return titles, nil
}

func (s *Store) CreateSheet(_ context.Context, _ string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[name]; ok {
		return fmt.Errorf("sheet %s already exists", name)
	}
	s.tabs[name] = &tab{}
	return nil
}

func (s *Store) WriteHeader(_ context.Context, _ string, name string, headers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[name]
	if !ok {
		return fmt.Errorf("sheet %s not found", name)
	}
	t.header = append([]string(nil), headers...)
	return nil
}

// AppendRows stores the rows and returns the 1-based starting row number,
// counting the header as row 1 like the real backend does.
func (s *Store) AppendRows(_ context.Context, _ string, name string, rows [][]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[name]
	if !ok {
		return 0, fmt.Errorf("sheet %s not found", name)
	}
	start := int64(len(t.rows) + 2)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = strings.TrimSpace(fmt.Sprint(v))
		}
		t.rows = append(t.rows, cells)
	}
	return start, nil
}

// ReadRows returns up to maxRows data rows of a tab. A tab that does not
// exist yet reads as empty, matching the real backend's lenient history path.
func (s *Store) ReadRows(_ context.Context, _ string, name string, maxRows int) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[name]
	if !ok || maxRows <= 0 {
		return nil, nil
	}
	n := len(t.rows)
	if n > maxRows {
		n = maxRows
	}
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		out[i] = append([]string(nil), t.rows[i]...)
	}
	return out, nil
}

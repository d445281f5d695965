// Package rows owns the ordered, append-only collection of grid rows.
//
// Cells live in fixed-size chunks that are allocated once and never moved,
// so a Row handed out earlier keeps pointing at live storage after later
// appends. The store knows nothing about the option hierarchy; it keeps
// opaque cell values and leaves hierarchy-aware writes to the cascade
// controller.
package rows

import (
	"context"
	"sync"

	"github.com/vanderheijden86/cascadegrid/pkg/debug"
	"github.com/vanderheijden86/cascadegrid/pkg/metrics"
	"github.com/vanderheijden86/cascadegrid/pkg/model"
)

// chunkRows is the number of rows per storage chunk.
const chunkRows = 4096

// Store holds rows addressed by stable id and by position.
type Store struct {
	mu     sync.RWMutex
	width  int
	chunks [][]*model.OptionNode
	ids    []int64       // position -> id
	index  map[int64]int // id -> position
	lastID int64
}

// New creates an empty store whose rows have width columns (ID column
// included).
func New(width int) *Store {
	if width < 1 {
		width = 1
	}
	return &Store{
		width: width,
		index: make(map[int64]int),
	}
}

// Width returns the number of columns per row.
func (s *Store) Width() int {
	return s.width
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// LastID returns the highest id assigned so far (0 for an empty store).
func (s *Store) LastID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID
}

// Append creates count empty rows and returns their ids, which continue
// from the highest id assigned so far.
func (s *Store) Append(count int) ([]int64, error) {
	if count <= 0 {
		return nil, &model.OpError{Op: "append", Err: model.ErrInvalidCount}
	}
	defer metrics.Timer(metrics.AppendRows)()

	s.mu.Lock()
	defer s.mu.Unlock()

	need := len(s.ids) + count
	for len(s.chunks)*chunkRows < need {
		s.chunks = append(s.chunks, make([]*model.OptionNode, chunkRows*s.width))
	}

	newIDs := make([]int64, count)
	if cap(s.ids) < need {
		grown := make([]int64, len(s.ids), need+need/4)
		copy(grown, s.ids)
		s.ids = grown
	}
	for i := range newIDs {
		s.lastID++
		newIDs[i] = s.lastID
		s.index[s.lastID] = len(s.ids)
		s.ids = append(s.ids, s.lastID)
	}

	debug.Log("rows: appended %d rows, ids %d..%d, total %d", count, newIDs[0], s.lastID, len(s.ids))
	return newIDs, nil
}

// Get returns the row with the given id.
func (s *Store) Get(id int64) (model.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return model.Row{}, &model.OpError{Op: "get", RowID: id, Err: model.ErrRowNotFound}
	}
	return model.Row{ID: id, Cells: s.cellsAt(pos)}, nil
}

// Position returns the store position of id.
func (s *Store) Position(id int64) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	return pos, ok
}

// SetCell writes node (nil clears) at level and returns the affected row ids.
func (s *Store) SetCell(id int64, level int, node *model.OptionNode) ([]int64, error) {
	if level < 1 || level >= s.width {
		return nil, &model.OpError{Op: "set cell", RowID: id, Level: level, Err: model.ErrInvalidLevel}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return nil, &model.OpError{Op: "set cell", RowID: id, Level: level, Err: model.ErrRowNotFound}
	}
	s.cellsAt(pos)[level] = node
	return []int64{id}, nil
}

// Window returns up to count rows starting at position start. A window
// running past the end is truncated, never an error. A negative count is
// ErrInvalidCount rather than an empty window, since it only comes from a
// caller bug.
func (s *Store) Window(start, count int) ([]model.Row, error) {
	if count < 0 {
		return nil, &model.OpError{Op: "window", Err: model.ErrInvalidCount}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if start < 0 || start > len(s.ids) {
		return nil, &model.OpError{Op: "window", Err: model.ErrOutOfRange}
	}
	end := start + min(count, len(s.ids)-start)
	out := make([]model.Row, 0, end-start)
	for pos := start; pos < end; pos++ {
		out = append(out, model.Row{ID: s.ids[pos], Cells: s.cellsAt(pos)})
	}
	return out, nil
}

// FetchWindow is Window behind a context, so the store can serve as a
// view.RowSource.
func (s *Store) FetchWindow(ctx context.Context, start, count int) ([]model.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Window(start, count)
}

// cellsAt returns the cell slice for pos; the caller holds the lock.
func (s *Store) cellsAt(pos int) []*model.OptionNode {
	chunk := s.chunks[pos/chunkRows]
	off := (pos % chunkRows) * s.width
	return chunk[off : off+s.width : off+s.width]
}

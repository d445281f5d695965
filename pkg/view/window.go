// Package view bounds how much of the grid is materialized at once.
//
// A View caches fixed-size blocks of rows fetched from a RowSource, evicts
// the least recently used block when the cache is full, and turns row
// mutations into a minimal set of dirty row ids for redraw.
package view

import (
	"context"
	"errors"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/cascadegrid/pkg/debug"
	"github.com/vanderheijden86/cascadegrid/pkg/metrics"
	"github.com/vanderheijden86/cascadegrid/pkg/model"
)

const (
	DefaultBlockSize        = 100
	DefaultMaxCachedBlocks  = 10
	defaultFetchConcurrency = 4
)

// ErrSuperseded is returned when a newer RequestWindow started while this
// one was fetching. Its rows are discarded.
var ErrSuperseded = errors.New("window request superseded")

// RowSource serves rows by position. Implementations may be remote.
type RowSource interface {
	FetchWindow(ctx context.Context, start, count int) ([]model.Row, error)
}

// SourceFunc adapts a function to RowSource.
type SourceFunc func(ctx context.Context, start, count int) ([]model.Row, error)

// FetchWindow calls f.
func (f SourceFunc) FetchWindow(ctx context.Context, start, count int) ([]model.Row, error) {
	return f(ctx, start, count)
}

type block struct {
	index    int
	rows     []model.Row
	ids      map[int64]struct{}
	lastUsed uint64
}

// Option configures a View.
type Option func(*View)

// WithBlockSize sets the number of rows per block.
func WithBlockSize(n int) Option {
	return func(v *View) {
		if n > 0 {
			v.blockSize = n
		}
	}
}

// WithMaxCachedBlocks sets the cache capacity in blocks.
func WithMaxCachedBlocks(n int) Option {
	return func(v *View) {
		if n > 0 {
			v.maxBlocks = n
		}
	}
}

// WithRedraw sets the hook invoked with newly dirty row ids.
func WithRedraw(fn func(ids []int64)) Option {
	return func(v *View) {
		v.redraw = fn
	}
}

// WithTotal sets the initial row count.
func WithTotal(n int) Option {
	return func(v *View) {
		if n >= 0 {
			v.total = n
		}
	}
}

// WithFetchConcurrency limits parallel block fetches per request.
func WithFetchConcurrency(n int) Option {
	return func(v *View) {
		if n > 0 {
			v.fetchLimit = n
		}
	}
}

// View is a bounded LRU cache of row blocks over a RowSource.
type View struct {
	mu         sync.Mutex
	source     RowSource
	blockSize  int
	maxBlocks  int
	fetchLimit int
	total      int
	cache      map[int]*block
	clock      uint64
	generation uint64
	dirty      map[int64]struct{}
	redraw     func(ids []int64)
}

// New creates a view over source.
func New(source RowSource, opts ...Option) *View {
	v := &View{
		source:     source,
		blockSize:  DefaultBlockSize,
		maxBlocks:  DefaultMaxCachedBlocks,
		fetchLimit: defaultFetchConcurrency,
		cache:      make(map[int]*block),
		dirty:      make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// RequestWindow returns the rows at positions [start, start+count), clipped
// to the current total; a negative count is ErrInvalidCount. Missing
// blocks are fetched without holding the lock; if another request starts
// meanwhile, this one returns ErrSuperseded and its fetched blocks are
// dropped.
func (v *View) RequestWindow(ctx context.Context, start, count int) ([]model.Row, error) {
	if count < 0 {
		return nil, &model.OpError{Op: "request window", Err: model.ErrInvalidCount}
	}

	v.mu.Lock()
	if start < 0 || start > v.total {
		v.mu.Unlock()
		return nil, &model.OpError{Op: "request window", Err: model.ErrOutOfRange}
	}
	v.generation++
	gen := v.generation
	end := start + min(count, v.total-start)
	if end <= start {
		v.mu.Unlock()
		return []model.Row{}, nil
	}
	first, last := start/v.blockSize, (end-1)/v.blockSize
	var missing []int
	for b := first; b <= last; b++ {
		if blk, ok := v.cache[b]; !ok || v.partial(blk) {
			missing = append(missing, b)
		}
	}
	bs := v.blockSize
	v.mu.Unlock()

	fetched, err := v.fetch(ctx, missing, bs)

	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.generation {
		for _, blk := range fetched {
			putBlock(blk)
		}
		debug.Log("view: window [%d,%d) superseded by generation %d", start, end, v.generation)
		return nil, ErrSuperseded
	}
	if err != nil {
		for _, blk := range fetched {
			putBlock(blk)
		}
		return nil, err
	}

	for _, blk := range fetched {
		if old, ok := v.cache[blk.index]; ok {
			putBlock(old)
		}
		v.cache[blk.index] = blk
		metrics.BlockCache.Miss()
	}
	for range last - first + 1 - len(fetched) {
		metrics.BlockCache.Hit()
	}

	v.clock++
	out := make([]model.Row, 0, end-start)
	for b := first; b <= last; b++ {
		blk, ok := v.cache[b]
		if !ok {
			continue
		}
		blk.lastUsed = v.clock
		base := b * v.blockSize
		for i, r := range blk.rows {
			if pos := base + i; pos >= start && pos < end {
				out = append(out, r)
			}
		}
	}
	v.evict()
	return out, nil
}

// fetch loads the given blocks concurrently.
func (v *View) fetch(ctx context.Context, indices []int, bs int) ([]*block, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	defer metrics.Timer(metrics.WindowFetch)()

	results := make([]*block, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.fetchLimit)
	for i, idx := range indices {
		g.Go(func() error {
			rows, err := v.source.FetchWindow(gctx, idx*bs, bs)
			if err != nil {
				return err
			}
			results[i] = getBlock(idx, rows)
			return nil
		})
	}
	err := g.Wait()

	fetched := results[:0]
	for _, blk := range results {
		if blk != nil {
			fetched = append(fetched, blk)
		}
	}
	return fetched, err
}

// partial reports whether blk was fetched short and the total has since
// grown into its range. The caller holds the lock.
func (v *View) partial(blk *block) bool {
	return len(blk.rows) < v.blockSize && blk.index*v.blockSize+len(blk.rows) < v.total
}

// evict drops least recently used blocks until the cache fits, breaking
// ties by lowest block index. The caller holds the lock.
func (v *View) evict() {
	for len(v.cache) > v.maxBlocks {
		var victim *block
		for _, blk := range v.cache {
			if victim == nil || blk.lastUsed < victim.lastUsed ||
				(blk.lastUsed == victim.lastUsed && blk.index < victim.index) {
				victim = blk
			}
		}
		delete(v.cache, victim.index)
		debug.Log("view: evicted block %d", victim.index)
		metrics.BlockCache.Evict()
		putBlock(victim)
	}
}

// Invalidate marks the given rows dirty when they are materialized in a
// cached block and returns those ids in ascending order. Rows outside the
// cache are ignored; they are fetched fresh when next requested.
func (v *View) Invalidate(ids []int64) []int64 {
	v.mu.Lock()
	var marked []int64
	for _, id := range ids {
		for _, blk := range v.cache {
			if _, ok := blk.ids[id]; ok {
				if !slices.Contains(marked, id) {
					marked = append(marked, id)
				}
				v.dirty[id] = struct{}{}
				break
			}
		}
	}
	redraw := v.redraw
	v.mu.Unlock()

	slices.Sort(marked)
	if redraw != nil && len(marked) > 0 {
		redraw(marked)
	}
	return marked
}

// TakeDirty returns the dirty row ids in ascending order and clears them.
func (v *View) TakeDirty() []int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]int64, 0, len(v.dirty))
	for id := range v.dirty {
		out = append(out, id)
	}
	clear(v.dirty)
	slices.Sort(out)
	return out
}

// OnRowCountChanged records a new total. Cached blocks are kept.
func (v *View) OnRowCountChanged(total int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if total >= 0 {
		v.total = total
	}
}

// RowsChanged implements cascade.Listener.
func (v *View) RowsChanged(ids []int64) {
	v.Invalidate(ids)
}

// RowCountChanged implements cascade.Listener.
func (v *View) RowCountChanged(total int) {
	v.OnRowCountChanged(total)
}

// CachedBlocks returns the cached block indices in ascending order.
func (v *View) CachedBlocks() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]int, 0, len(v.cache))
	for idx := range v.cache {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

// Total returns the known row count.
func (v *View) Total() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.total
}

// BlockSize returns the rows per block.
func (v *View) BlockSize() int {
	return v.blockSize
}

// MaxCachedBlocks returns the cache capacity.
func (v *View) MaxCachedBlocks() int {
	return v.maxBlocks
}

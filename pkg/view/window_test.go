package view

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/vanderheijden86/cascadegrid/pkg/model"
	"github.com/vanderheijden86/cascadegrid/pkg/rows"
	"pgregory.net/rapid"
)

// countingSource wraps a store and records each fetch start.
type countingSource struct {
	store *rows.Store
	mu    sync.Mutex
	calls []int
}

func (c *countingSource) FetchWindow(ctx context.Context, start, count int) ([]model.Row, error) {
	c.mu.Lock()
	c.calls = append(c.calls, start)
	c.mu.Unlock()
	return c.store.FetchWindow(ctx, start, count)
}

func (c *countingSource) fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newStore(t *testing.T, n int) *rows.Store {
	t.Helper()
	s := rows.New(model.DefaultSchema().Width())
	if n > 0 {
		if _, err := s.Append(n); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return s
}

func TestRequestWindow_ReturnsRowsInOrder(t *testing.T) {
	store := newStore(t, 250)
	v := New(store, WithBlockSize(100), WithTotal(store.Len()))

	got, err := v.RequestWindow(context.Background(), 95, 10)
	if err != nil {
		t.Fatalf("RequestWindow: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(got))
	}
	for i, r := range got {
		if want := int64(96 + i); r.ID != want {
			t.Errorf("row %d id = %d, want %d", i, r.ID, want)
		}
	}
	if blocks := v.CachedBlocks(); !slices.Equal(blocks, []int{0, 1}) {
		t.Errorf("cached blocks = %v, want [0 1]", blocks)
	}
}

func TestRequestWindow_HitsDoNotRefetch(t *testing.T) {
	src := &countingSource{store: newStore(t, 300)}
	v := New(src, WithBlockSize(100), WithTotal(300))
	ctx := context.Background()

	if _, err := v.RequestWindow(ctx, 0, 150); err != nil {
		t.Fatal(err)
	}
	if _, err := v.RequestWindow(ctx, 10, 20); err != nil {
		t.Fatal(err)
	}
	if n := src.fetches(); n != 2 {
		t.Errorf("expected 2 fetches, got %d", n)
	}
}

func TestRequestWindow_Bounds(t *testing.T) {
	v := New(newStore(t, 10), WithTotal(10))
	ctx := context.Background()

	if _, err := v.RequestWindow(ctx, -1, 5); !errors.Is(err, model.ErrOutOfRange) {
		t.Errorf("negative start: expected ErrOutOfRange, got %v", err)
	}
	if _, err := v.RequestWindow(ctx, 11, 5); !errors.Is(err, model.ErrOutOfRange) {
		t.Errorf("start past end: expected ErrOutOfRange, got %v", err)
	}
	if _, err := v.RequestWindow(ctx, 0, -1); !errors.Is(err, model.ErrInvalidCount) {
		t.Errorf("negative count: expected ErrInvalidCount, got %v", err)
	}
	got, err := v.RequestWindow(ctx, 10, 5)
	if err != nil || len(got) != 0 {
		t.Errorf("start at end: expected empty window, got %d rows err=%v", len(got), err)
	}
	got, err = v.RequestWindow(ctx, 1, math.MaxInt)
	if err != nil || len(got) != 9 || got[0].ID != 2 {
		t.Errorf("huge count: expected rows 2..10, got %d rows err=%v", len(got), err)
	}
	got, err = v.RequestWindow(ctx, 5, 100)
	if err != nil || len(got) != 5 {
		t.Errorf("window past end: expected 5 rows, got %d err=%v", len(got), err)
	}
}

func TestEviction_LeastRecentlyUsed(t *testing.T) {
	v := New(newStore(t, 500), WithBlockSize(100), WithMaxCachedBlocks(2), WithTotal(500))
	ctx := context.Background()

	for _, start := range []int{0, 100, 0, 200} {
		if _, err := v.RequestWindow(ctx, start, 10); err != nil {
			t.Fatal(err)
		}
	}
	if blocks := v.CachedBlocks(); !slices.Equal(blocks, []int{0, 2}) {
		t.Errorf("cached blocks = %v, want [0 2] (block 1 was least recently used)", blocks)
	}
}

func TestEviction_TiesBreakOnLowestIndex(t *testing.T) {
	v := New(newStore(t, 500), WithBlockSize(100), WithMaxCachedBlocks(2), WithTotal(500))

	// One request touches blocks 0..2 with the same tick.
	if _, err := v.RequestWindow(context.Background(), 50, 200); err != nil {
		t.Fatal(err)
	}
	if blocks := v.CachedBlocks(); !slices.Equal(blocks, []int{1, 2}) {
		t.Errorf("cached blocks = %v, want [1 2]", blocks)
	}
}

func TestInvalidate_OnlyCachedRows(t *testing.T) {
	var redrawn [][]int64
	v := New(newStore(t, 300), WithBlockSize(100), WithTotal(300),
		WithRedraw(func(ids []int64) { redrawn = append(redrawn, ids) }))

	if _, err := v.RequestWindow(context.Background(), 0, 10); err != nil {
		t.Fatal(err)
	}

	marked := v.Invalidate([]int64{250, 7, 3, 7})
	if !slices.Equal(marked, []int64{3, 7}) {
		t.Errorf("Invalidate = %v, want [3 7]", marked)
	}
	if len(redrawn) != 1 || !slices.Equal(redrawn[0], []int64{3, 7}) {
		t.Errorf("redraw calls = %v", redrawn)
	}

	if got := v.Invalidate([]int64{299}); len(got) != 0 {
		t.Errorf("uncached row should not be marked, got %v", got)
	}
	if len(redrawn) != 1 {
		t.Errorf("redraw must not fire for an empty set, calls=%d", len(redrawn))
	}

	if dirty := v.TakeDirty(); !slices.Equal(dirty, []int64{3, 7}) {
		t.Errorf("TakeDirty = %v, want [3 7]", dirty)
	}
	if dirty := v.TakeDirty(); len(dirty) != 0 {
		t.Errorf("TakeDirty after drain = %v, want empty", dirty)
	}
}

func TestRowCountChanged_RefetchesPartialBlock(t *testing.T) {
	store := newStore(t, 150)
	src := &countingSource{store: store}
	v := New(src, WithBlockSize(100), WithTotal(150))
	ctx := context.Background()

	if _, err := v.RequestWindow(ctx, 100, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append(30); err != nil {
		t.Fatal(err)
	}
	v.RowCountChanged(store.Len())

	got, err := v.RequestWindow(ctx, 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 80 {
		t.Fatalf("expected 80 rows after growth, got %d", len(got))
	}
	if got[79].ID != 180 {
		t.Errorf("last row id = %d, want 180", got[79].ID)
	}
	if n := src.fetches(); n != 2 {
		t.Errorf("expected partial block to be refetched once, fetches=%d", n)
	}
	if v.Total() != 180 {
		t.Errorf("Total = %d, want 180", v.Total())
	}
}

func TestRequestWindow_Superseded(t *testing.T) {
	store := newStore(t, 1000)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	src := SourceFunc(func(ctx context.Context, start, count int) ([]model.Row, error) {
		if start == 0 {
			once.Do(func() { close(started) })
			<-release
		}
		return store.FetchWindow(ctx, start, count)
	})
	v := New(src, WithBlockSize(100), WithTotal(1000))
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := v.RequestWindow(ctx, 0, 10)
		errc <- err
	}()
	<-started

	latest, err := v.RequestWindow(ctx, 500, 10)
	if err != nil {
		t.Fatalf("latest request: %v", err)
	}
	if latest[0].ID != 501 {
		t.Errorf("latest first id = %d, want 501", latest[0].ID)
	}

	close(release)
	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale request: expected ErrSuperseded, got %v", err)
	}
	if blocks := v.CachedBlocks(); !slices.Equal(blocks, []int{5}) {
		t.Errorf("stale block must not be cached, got %v", blocks)
	}
}

func TestRequestWindow_SourceError(t *testing.T) {
	boom := errors.New("backend down")
	v := New(SourceFunc(func(ctx context.Context, start, count int) ([]model.Row, error) {
		return nil, boom
	}), WithTotal(50))

	if _, err := v.RequestWindow(context.Background(), 0, 10); !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}
	if len(v.CachedBlocks()) != 0 {
		t.Error("failed fetch must not populate the cache")
	}
}

func TestListener_Adapters(t *testing.T) {
	v := New(newStore(t, 20), WithBlockSize(10), WithTotal(20))
	if _, err := v.RequestWindow(context.Background(), 0, 5); err != nil {
		t.Fatal(err)
	}
	v.RowsChanged([]int64{2})
	if dirty := v.TakeDirty(); !slices.Equal(dirty, []int64{2}) {
		t.Errorf("RowsChanged should mark row 2 dirty, got %v", dirty)
	}
	v.RowCountChanged(40)
	if v.Total() != 40 {
		t.Errorf("Total = %d, want 40", v.Total())
	}
}

// lruModel mirrors the eviction policy for the property test.
type lruModel struct {
	used  map[int]int
	clock int
	max   int
}

func (m *lruModel) touch(first, last int) {
	m.clock++
	for b := first; b <= last; b++ {
		m.used[b] = m.clock
	}
	for len(m.used) > m.max {
		victim, vt := -1, 0
		for b, tick := range m.used {
			if victim == -1 || tick < vt || (tick == vt && b < victim) {
				victim, vt = b, tick
			}
		}
		delete(m.used, victim)
	}
}

func (m *lruModel) blocks() []int {
	out := make([]int, 0, len(m.used))
	for b := range m.used {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}

func TestProperty_CacheBoundedAndLRU(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		total := rapid.IntRange(1, 400).Draw(rt, "total")
		bs := rapid.IntRange(1, 30).Draw(rt, "blockSize")
		maxBlocks := rapid.IntRange(1, 6).Draw(rt, "maxBlocks")

		store := rows.New(3)
		if _, err := store.Append(total); err != nil {
			rt.Fatalf("append: %v", err)
		}
		v := New(store, WithBlockSize(bs), WithMaxCachedBlocks(maxBlocks), WithTotal(total))
		lru := &lruModel{used: map[int]int{}, max: maxBlocks}

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			start := rapid.IntRange(0, total-1).Draw(rt, "start")
			count := rapid.IntRange(1, 3*bs).Draw(rt, "count")

			got, err := v.RequestWindow(context.Background(), start, count)
			if err != nil {
				rt.Fatalf("RequestWindow(%d,%d): %v", start, count, err)
			}
			end := min(start+count, total)
			if len(got) != end-start {
				rt.Fatalf("window len = %d, want %d", len(got), end-start)
			}
			for j, r := range got {
				if r.ID != int64(start+j+1) {
					rt.Fatalf("row %d id = %d, want %d", j, r.ID, start+j+1)
				}
			}

			lru.touch(start/bs, (end-1)/bs)
			cached := v.CachedBlocks()
			if len(cached) > maxBlocks {
				rt.Fatalf("cache holds %d blocks, max %d", len(cached), maxBlocks)
			}
			if !slices.Equal(cached, lru.blocks()) {
				rt.Fatalf("cached %v, LRU model %v", cached, lru.blocks())
			}
		}
	})
}

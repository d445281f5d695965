package view

import (
	"sync"
	"sync/atomic"

	"github.com/vanderheijden86/cascadegrid/pkg/model"
)

const defaultBlockCap = 100

// blockPool recycles evicted and superseded blocks. A block must only be
// returned once the cache no longer references it.
var blockPool = sync.Pool{
	New: func() any {
		blockPoolNews.Add(1)
		return &block{
			rows: make([]model.Row, 0, defaultBlockCap),
			ids:  make(map[int64]struct{}, defaultBlockCap),
		}
	},
}

var blockPoolGets atomic.Uint64
var blockPoolNews atomic.Uint64

// getBlock retrieves a block from the pool and fills it with rows.
func getBlock(index int, rows []model.Row) *block {
	blockPoolGets.Add(1)
	b := blockPool.Get().(*block)
	b.index = index
	b.lastUsed = 0
	b.rows = append(b.rows[:0], rows...)
	for _, r := range rows {
		b.ids[r.ID] = struct{}{}
	}
	return b
}

// putBlock clears a block's references and returns it to the pool.
func putBlock(b *block) {
	if b == nil {
		return
	}
	for i := range b.rows {
		b.rows[i] = model.Row{}
	}
	b.rows = b.rows[:0]
	clear(b.ids)
	blockPool.Put(b)
}

// BlockPoolStats returns the total pool hits and misses since process start.
func BlockPoolStats() (hits uint64, misses uint64) {
	gets := blockPoolGets.Load()
	news := blockPoolNews.Load()
	if gets >= news {
		return gets - news, news
	}
	return 0, news
}

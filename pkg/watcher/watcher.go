// Package watcher reports changes to the seed file so the grid can merge
// newly added options without a restart.
//
// Events arrive on a single channel: edits are debounced and coalesced
// into one SeedChanged, while a removed or unreadable seed is reported
// once until the file is readable again.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/cascadegrid/pkg/debug"
)

// DefaultPollInterval is how often the polling fallback stats the seed.
const DefaultPollInterval = 2 * time.Second

var (
	ErrSeedRemoved    = errors.New("seed file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// EventKind says what happened to the seed file.
type EventKind int

const (
	SeedChanged EventKind = iota
	SeedRemoved
	SeedError
)

func (k EventKind) String() string {
	switch k {
	case SeedChanged:
		return "changed"
	case SeedRemoved:
		return "removed"
	default:
		return "error"
	}
}

// Event is one notification about the seed. Err is set for SeedRemoved
// and SeedError.
type Event struct {
	Kind EventKind
	Path string
	Err  error
}

func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("seed %s: %v", filepath.Base(e.Path), e.Err)
	}
	return fmt.Sprintf("seed %s %s", filepath.Base(e.Path), e.Kind)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is reported;
// d <= 0 keeps DefaultDebounceDuration.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithPollInterval sets the polling fallback interval; d <= 0 keeps
// DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithForcePoll skips fsnotify and always polls.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// seedState is what polling compares between ticks.
type seedState struct {
	mtime   time.Time
	size    int64
	present bool
}

// Watcher follows one seed file with fsnotify, falling back to polling
// when fsnotify is unavailable or CASCADE_FORCE_POLL is set.
type Watcher struct {
	path         string
	debounce     time.Duration
	pollInterval time.Duration
	forcePoll    bool

	mu        sync.Mutex
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	polling   bool
	running   bool
	cancel    context.CancelFunc
	state     seedState
	failing   bool // a removal or error was reported and not yet cleared

	events chan Event
}

// New creates a watcher for the seed at path. Nothing is watched until
// Start.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:         abs,
		debounce:     DefaultDebounceDuration,
		pollInterval: DefaultPollInterval,
		events:       make(chan Event, 4),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounce)
	return w, nil
}

// Events delivers seed notifications. The channel is never closed.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start watches until ctx is done or Stop is called. A seed that does not
// exist yet is not an error; its creation is reported as a change.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrAlreadyStarted
	}
	st, err := statSeed(w.path)
	if err != nil {
		return err
	}
	w.state = st

	ctx, w.cancel = context.WithCancel(ctx)
	w.polling = w.forcePoll || envBool("CASCADE_FORCE_POLL")
	if !w.polling {
		if fsw, err := fsnotify.NewWatcher(); err != nil {
			w.polling = true
		} else if err := fsw.Add(filepath.Dir(w.path)); err != nil {
			// The directory is watched so editors that save by rename are seen.
			fsw.Close()
			w.polling = true
		} else {
			w.fsw = fsw
			go w.runFsnotify(ctx, fsw)
		}
	}
	if w.polling {
		go w.runPolling(ctx)
	}

	w.running = true
	debug.Log("watcher: watching %s (polling=%v)", w.path, w.polling)
	return nil
}

// Stop ends watching and drops a pending debounced change.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.cancel()
	if w.fsw != nil {
		w.fsw.Close()
		w.fsw = nil
	}
	w.debouncer.Cancel()
	w.running = false
}

func (w *Watcher) runFsnotify(ctx context.Context, fsw *fsnotify.Watcher) {
	target := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Remove):
				w.fail(SeedRemoved, ErrSeedRemoved)
			case ev.Op.Has(fsnotify.Write), ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Rename):
				w.debouncer.Trigger(w.changed)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.fail(SeedError, err)
		}
	}
}

func (w *Watcher) runPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll compares the seed against the last seen state.
func (w *Watcher) poll() {
	st, err := statSeed(w.path)
	w.mu.Lock()
	prev := w.state
	w.state = st
	w.mu.Unlock()

	switch {
	case err != nil:
		w.fail(SeedError, err)
	case prev.present && !st.present:
		w.fail(SeedRemoved, ErrSeedRemoved)
	case st.present && (!prev.present || st.mtime.After(prev.mtime) || st.size != prev.size):
		w.debouncer.Trigger(w.changed)
	}
}

// statSeed reads the seed's mtime and size. A missing file is a state,
// not an error.
func statSeed(path string) (seedState, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return seedState{mtime: info.ModTime(), size: info.Size(), present: true}, nil
	case os.IsNotExist(err):
		return seedState{}, nil
	case os.IsPermission(err):
		return seedState{}, fmt.Errorf("%w: %s", ErrPermission, path)
	default:
		return seedState{}, err
	}
}

// changed runs after the debounce period and clears any failure state.
func (w *Watcher) changed() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.failing = false
	w.mu.Unlock()

	debug.Log("watcher: %s changed", w.path)
	w.send(Event{Kind: SeedChanged, Path: w.path})
}

// fail reports a removal or error once per failure streak.
func (w *Watcher) fail(kind EventKind, err error) {
	w.mu.Lock()
	if !w.running || w.failing {
		w.mu.Unlock()
		return
	}
	w.failing = true
	w.mu.Unlock()

	w.debouncer.Cancel()
	debug.Log("watcher: %s %s: %v", w.path, kind, err)
	w.send(Event{Kind: kind, Path: w.path, Err: err})
}

// send never blocks; a full buffer already holds an event that makes the
// consumer reload or report.
func (w *Watcher) send(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// Package registry holds the advisory in-memory sets the syncer uses to keep
// operations on the same item from racing each other. Nothing here is
// coordinated across processes.
package registry

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
)

const (
	// DefaultRecentWindow is how long a finished download blocks a re-upload
	// of the same file name.
	DefaultRecentWindow = 30 * time.Second

	// DefaultRecentSize bounds how many recent downloads are remembered.
	DefaultRecentSize = 1024
)

// InFlight tracks keys with an upload in progress.
type InFlight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewInFlight returns an empty registry.
func NewInFlight() *InFlight {
	return &InFlight{keys: make(map[string]struct{})}
}

// Acquire claims key for the caller. It fails with ErrUploadInProgress when
// another caller holds it. release must be called exactly once; extra calls
// are ignored.
func (r *InFlight) Acquire(key string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.keys[key]; busy {
		return nil, errors.NewError("upload", errors.ErrUploadInProgress).WithKey(key)
	}
	r.keys[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.keys, key)
			r.mu.Unlock()
		})
	}, nil
}

// Active reports whether key has an upload in progress.
func (r *InFlight) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.keys[key]
	return ok
}

// Len returns the number of uploads in progress.
func (r *InFlight) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// Downloads tracks file names being written by downloads and remembers
// recently finished ones for a fixed window.
type Downloads struct {
	mu     sync.Mutex
	active map[string]int
	recent *expirable.LRU[string, time.Time]
	now    func() time.Time
}

// NewDownloads returns a registry remembering finished downloads for window.
// A window of zero or less disables the recent set.
func NewDownloads(window time.Duration) *Downloads {
	d := &Downloads{
		active: make(map[string]int),
		now:    time.Now,
	}
	if window > 0 {
		d.recent = expirable.NewLRU[string, time.Time](DefaultRecentSize, nil, window)
	}
	return d
}

// Start marks name as downloading. done ends the download; when succeeded
// is true name enters the recent window. Concurrent downloads of the same
// name are counted.
func (d *Downloads) Start(name string) (done func(succeeded bool)) {
	d.mu.Lock()
	d.active[name]++
	d.mu.Unlock()

	var once sync.Once
	return func(succeeded bool) {
		once.Do(func() {
			d.mu.Lock()
			if d.active[name] <= 1 {
				delete(d.active, name)
			} else {
				d.active[name]--
			}
			d.mu.Unlock()

			if succeeded && d.recent != nil {
				d.recent.Add(name, d.now())
			}
		})
	}
}

// Downloading reports whether name is being downloaded.
func (d *Downloads) Downloading(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active[name] > 0
}

// RecentlyDownloaded reports whether name finished downloading within the
// window and how long ago.
func (d *Downloads) RecentlyDownloaded(name string) (time.Duration, bool) {
	if d.recent == nil {
		return 0, false
	}
	at, ok := d.recent.Get(name)
	if !ok {
		return 0, false
	}
	return d.now().Sub(at), true
}

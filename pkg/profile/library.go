package profile

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sigscope/sigscope/pkg/spectral"
)

// Limits bounds template sizes at save time. Oversized regions are
// rejected rather than resized: matching cost is O(profiles x template
// size), so the bound keeps evaluation cheap and predictable.
type Limits struct {
	MaxFrames int
	MaxBins   int
}

// DefaultLimits allows a template of up to 512 time steps across a full
// 4096-point transform's bin count.
var DefaultLimits = Limits{MaxFrames: 512, MaxBins: 2049}

// Library owns the set of saved signal profiles. Mutations (explicit user
// actions) are serialized by an internal lock; readers get copies and can
// run concurrently with the audio pipeline. Profiles are persisted through
// an optional Store and survive restarts.
type Library struct {
	mu       sync.RWMutex
	profiles map[string]*SignalProfile
	order    []string // creation order
	store    *Store
	limits   Limits
}

// NewLibrary creates a library, loading any persisted profiles from store.
// store may be nil for a purely in-memory library (used in tests).
func NewLibrary(store *Store, limits Limits) (*Library, []error) {
	if limits.MaxFrames <= 0 {
		limits.MaxFrames = DefaultLimits.MaxFrames
	}
	if limits.MaxBins <= 0 {
		limits.MaxBins = DefaultLimits.MaxBins
	}

	lib := &Library{
		profiles: make(map[string]*SignalProfile),
		store:    store,
		limits:   limits,
	}

	var failures []error
	if store != nil {
		var loaded []*SignalProfile
		loaded, failures = store.Load()
		for _, p := range loaded {
			if _, exists := lib.profiles[p.Name]; exists {
				continue
			}
			lib.profiles[p.Name] = p
			lib.order = append(lib.order, p.Name)
		}
		logrus.WithFields(logrus.Fields{
			"dir":      store.Dir(),
			"profiles": len(lib.order),
		}).Info("Signal profile library loaded")
	}
	return lib, failures
}

// Save extracts a region from the given history frames and stores it
// under name. Fails with ErrDuplicateName, ErrEmptyRegion or
// ErrRegionTooLarge; persistence errors leave the in-memory library
// unchanged.
func (l *Library) Save(name string, frames []*spectral.Frame, region Region, notes string) (*SignalProfile, error) {
	grid, err := region.Extract(frames)
	if err != nil {
		return nil, NewError(ErrCodeEmptyRegion, name, "cannot extract profile region", err)
	}
	if len(grid) > l.limits.MaxFrames || len(grid[0]) > l.limits.MaxBins {
		return nil, NewError(ErrCodeRegionTooLarge, name, "profile region too large", ErrRegionTooLarge)
	}

	p := &SignalProfile{
		Name:      name,
		Grid:      grid,
		CreatedAt: time.Now().UTC(),
		Notes:     notes,
	}
	if err := p.Validate(); err != nil {
		return nil, NewError(ErrCodeEmptyRegion, name, "invalid profile", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.profiles[name]; exists {
		return nil, NewError(ErrCodeDuplicate, name, "profile name already exists", ErrDuplicateName)
	}
	if l.store != nil {
		if err := l.store.Save(p); err != nil {
			return nil, err
		}
	}
	l.profiles[name] = p
	l.order = append(l.order, name)

	logrus.WithFields(logrus.Fields{
		"profile": name,
		"frames":  p.Frames(),
		"bins":    p.Bins(),
	}).Info("Signal profile saved")
	return p, nil
}

// Delete removes a profile by name, failing with ErrNotFound if absent.
func (l *Library) Delete(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.profiles[name]; !exists {
		return NewError(ErrCodeNotFound, name, "profile not found", ErrNotFound)
	}
	if l.store != nil {
		if err := l.store.Delete(name); err != nil {
			return err
		}
	}
	delete(l.profiles, name)
	for i, n := range l.order {
		if n == name {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a profile by name.
func (l *Library) Get(name string) (*SignalProfile, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, exists := l.profiles[name]
	if !exists {
		return nil, NewError(ErrCodeNotFound, name, "profile not found", ErrNotFound)
	}
	return p, nil
}

// List returns all profiles in creation order.
func (l *Library) List() []*SignalProfile {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*SignalProfile, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.profiles[name])
	}
	return out
}

// Len returns the number of stored profiles.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

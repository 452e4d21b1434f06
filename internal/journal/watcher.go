package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Status is the last known game context assembled from journal events.
// Fields missing from the journal so far are empty.
type Status struct {
	Commander  string    `json:"commander,omitempty"`
	Ship       string    `json:"ship,omitempty"`
	StarSystem string    `json:"star_system,omitempty"`
	Body       string    `json:"body,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// entry is the subset of journal event fields the watcher cares about.
// The journal is JSON Lines; unknown events and fields are skipped.
type entry struct {
	Event      string    `json:"event"`
	Timestamp  time.Time `json:"timestamp"`
	Commander  string    `json:"Commander"`
	Ship       string    `json:"Ship"`
	ShipName   string    `json:"ShipName"`
	StarSystem string    `json:"StarSystem"`
	Body       string    `json:"Body"`
}

// Watcher tails the newest Journal.*.log file in a directory and keeps a
// running Status. New journal files (the game rotates per session) are
// picked up automatically. Directory change notifications come from
// fsnotify; a poll interval backstops platforms where the game writes
// without emitting events.
type Watcher struct {
	dir          string
	pollInterval time.Duration

	mu      sync.RWMutex
	status  Status
	current string
	offset  int64
}

// NewWatcher creates a watcher for the given journal directory.
func NewWatcher(dir string, pollInterval time.Duration) *Watcher {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Watcher{dir: dir, pollInterval: pollInterval}
}

// Status returns the last known game context.
func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Run tails the journal until ctx is canceled. A missing or unreadable
// directory is not fatal; the watcher keeps polling in case the game
// starts later.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		logrus.WithFields(logrus.Fields{
			"dir":   w.dir,
			"error": err.Error(),
		}).Warn("Journal directory not watchable, falling back to polling")
	}

	w.scan()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 && isJournalFile(filepath.Base(ev.Name)) {
				w.scan()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logrus.WithFields(logrus.Fields{"error": err.Error()}).Warn("Journal watch error")
		case <-ticker.C:
			w.scan()
		}
	}
}

// scan locates the newest journal file and consumes any lines appended
// since the previous scan.
func (w *Watcher) scan() {
	path, err := newestJournal(w.dir)
	if err != nil || path == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if path != w.current {
		w.current = path
		w.offset = 0
		logrus.WithFields(logrus.Fields{"file": filepath.Base(path)}).Info("Following journal file")
	}

	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := f.Seek(w.offset, 0); err != nil {
		return
	}

	// Only newline-terminated lines are consumed: the game may be
	// mid-write on the last line, and that fragment must stay pending
	// until its terminator arrives.
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		w.offset += int64(len(line))
		w.applyLine(bytes.TrimRight(line, "\r\n"))
	}
}

// applyLine folds one journal line into the status. Malformed lines and
// irrelevant events are ignored.
func (w *Watcher) applyLine(line []byte) {
	var e entry
	if err := json.Unmarshal(line, &e); err != nil {
		return
	}

	switch e.Event {
	case "LoadGame":
		w.status.Commander = e.Commander
		if e.ShipName != "" {
			w.status.Ship = e.ShipName
		} else {
			w.status.Ship = e.Ship
		}
	case "Commander":
		w.status.Commander = e.Commander
	case "Location", "FSDJump", "CarrierJump":
		w.status.StarSystem = e.StarSystem
		w.status.Body = e.Body
	case "SupercruiseExit", "ApproachBody":
		w.status.Body = e.Body
	default:
		return
	}
	if !e.Timestamp.IsZero() {
		w.status.Timestamp = e.Timestamp
	}
}

// newestJournal returns the most recently modified Journal.*.log in dir.
func newestJournal(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && isJournalFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}

	sort.Slice(names, func(i, j int) bool {
		fi, errI := os.Stat(filepath.Join(dir, names[i]))
		fj, errJ := os.Stat(filepath.Join(dir, names[j]))
		if errI != nil || errJ != nil {
			return names[i] < names[j]
		}
		return fi.ModTime().Before(fj.ModTime())
	})
	return filepath.Join(dir, names[len(names)-1]), nil
}

func isJournalFile(name string) bool {
	return strings.HasPrefix(name, "Journal.") && strings.HasSuffix(name, ".log")
}

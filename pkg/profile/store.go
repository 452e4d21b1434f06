package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Store persists profiles as one JSON record per file under a directory.
// Load failures are isolated per record: a corrupt file is skipped and
// reported, never aborting the rest of the library load.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("profile store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes a profile record. The profile must already be validated.
func (s *Store) Save(p *SignalProfile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile %q: %w", p.Name, err)
	}

	path := s.recordPath(p.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profile %q: %w", p.Name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize profile %q: %w", p.Name, err)
	}
	return nil
}

// Delete removes a profile record from disk.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.recordPath(name)); err != nil {
		if os.IsNotExist(err) {
			return NewError(ErrCodeNotFound, name, "profile record not found", ErrNotFound)
		}
		return fmt.Errorf("failed to delete profile %q: %w", name, err)
	}
	return nil
}

// Load reads all valid records, sorted by creation time. Invalid records
// are reported in the returned error list and skipped.
func (s *Store) Load() ([]*SignalProfile, []error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read profile directory: %w", err)}
	}

	var profiles []*SignalProfile
	var failures []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			failures = append(failures, NewError(ErrCodeCorruptRecord, entry.Name(),
				"failed to read profile record", err))
			continue
		}

		var p SignalProfile
		if err := json.Unmarshal(data, &p); err != nil {
			failures = append(failures, NewError(ErrCodeCorruptRecord, entry.Name(),
				"failed to decode profile record", err))
			continue
		}
		if err := p.Validate(); err != nil {
			failures = append(failures, NewError(ErrCodeCorruptRecord, entry.Name(),
				"invalid profile record", err))
			continue
		}
		profiles = append(profiles, &p)
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].Name < profiles[j].Name
		}
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})

	if len(failures) > 0 {
		logrus.WithFields(logrus.Fields{
			"dir":     s.dir,
			"loaded":  len(profiles),
			"skipped": len(failures),
		}).Warn("Skipped invalid profile records during load")
	}
	return profiles, failures
}

// recordPath maps a profile name to its file, replacing characters that
// are unsafe in filenames.
func (s *Store) recordPath(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	return filepath.Join(s.dir, safe+".json")
}

package report

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sigscope/sigscope/internal/journal"
	"github.com/sigscope/sigscope/pkg/dsp"
)

// SightingReport is the document submitted for a confirmed signal
// sighting. The ID is deterministic for a given commander and capture
// time, so resubmitting the same sighting is idempotent server-side.
type SightingReport struct {
	ID              string               `json:"id"`
	Timestamp       time.Time            `json:"timestamp"`
	Commander       string               `json:"commander,omitempty"`
	Ship            string               `json:"ship,omitempty"`
	StarSystem      string               `json:"star_system,omitempty"`
	Body            string               `json:"body,omitempty"`
	Profile         string               `json:"profile,omitempty"`
	Confidence      float64              `json:"confidence,omitempty"`
	SnapshotID      string               `json:"snapshot_id,omitempty"`
	Checksum        string               `json:"checksum,omitempty"`
	Characteristics *dsp.Characteristics `json:"characteristics,omitempty"`
	Notes           string               `json:"notes,omitempty"`
}

// SightingID derives the deterministic report ID from the capture time
// and the reporting commander.
func SightingID(ts time.Time, commander string) string {
	sum := sha1.Sum([]byte(ts.UTC().Format(time.RFC3339Nano) + commander))
	return hex.EncodeToString(sum[:])
}

// New assembles a sighting report from the capture context. commander
// overrides the journal's commander when set.
func New(ts time.Time, commander string, status journal.Status) *SightingReport {
	if commander == "" {
		commander = status.Commander
	}
	return &SightingReport{
		ID:         SightingID(ts, commander),
		Timestamp:  ts.UTC(),
		Commander:  commander,
		Ship:       status.Ship,
		StarSystem: status.StarSystem,
		Body:       status.Body,
	}
}

// Submitter posts sighting reports to a collection endpoint.
type Submitter struct {
	endpoint string
	client   *http.Client
}

// NewSubmitter creates a submitter for the given endpoint. An empty
// endpoint disables submission; Submit then returns an error.
func NewSubmitter(endpoint string) *Submitter {
	return &Submitter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether an endpoint is configured.
func (s *Submitter) Enabled() bool {
	return s.endpoint != ""
}

// Submit posts the report as JSON. Any non-2xx response is an error; the
// report itself is left untouched so the caller can retry.
func (s *Submitter) Submit(ctx context.Context, r *SightingReport) error {
	if s.endpoint == "" {
		return fmt.Errorf("no report endpoint configured")
	}

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode sighting report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit sighting report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("report endpoint returned %s", resp.Status)
	}

	logrus.WithFields(logrus.Fields{
		"id":       r.ID,
		"endpoint": s.endpoint,
	}).Info("Sighting report submitted")
	return nil
}

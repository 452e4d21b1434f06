package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyLineFoldsEvents(t *testing.T) {
	w := NewWatcher(t.TempDir(), 0)

	w.applyLine([]byte(`{"timestamp":"2026-08-20T12:00:00Z","event":"LoadGame","Commander":"Jameson","Ship":"anaconda","ShipName":"Wanderer"}`))
	w.applyLine([]byte(`{"timestamp":"2026-08-20T12:05:00Z","event":"FSDJump","StarSystem":"HIP 22460","Body":"HIP 22460 A"}`))

	status := w.Status()
	assert.Equal(t, "Jameson", status.Commander)
	assert.Equal(t, "Wanderer", status.Ship, "ship name preferred over hull type")
	assert.Equal(t, "HIP 22460", status.StarSystem)
	assert.Equal(t, "HIP 22460 A", status.Body)
	assert.Equal(t, time.Date(2026, 8, 20, 12, 5, 0, 0, time.UTC), status.Timestamp)
}

func TestApplyLineIgnoresNoise(t *testing.T) {
	w := NewWatcher(t.TempDir(), 0)

	w.applyLine([]byte(`not json at all`))
	w.applyLine([]byte(`{"timestamp":"2026-08-20T12:00:00Z","event":"Music","MusicTrack":"Exploration"}`))

	assert.Equal(t, Status{}, w.Status(), "irrelevant events leave the status untouched")
}

func TestApplyLineBodyOnlyEvents(t *testing.T) {
	w := NewWatcher(t.TempDir(), 0)

	w.applyLine([]byte(`{"timestamp":"2026-08-20T12:00:00Z","event":"Location","StarSystem":"Merope","Body":"Merope 5"}`))
	w.applyLine([]byte(`{"timestamp":"2026-08-20T12:10:00Z","event":"ApproachBody","Body":"Merope 5 c"}`))

	status := w.Status()
	assert.Equal(t, "Merope", status.StarSystem, "system persists through body updates")
	assert.Equal(t, "Merope 5 c", status.Body)
}

func TestScanFollowsNewestJournal(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, 0)

	older := filepath.Join(dir, "Journal.2026-08-19T120000.01.log")
	require.NoError(t, os.WriteFile(older,
		[]byte(`{"timestamp":"2026-08-19T12:00:00Z","event":"Location","StarSystem":"Sol","Body":"Earth"}`+"\n"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, old, old))

	newer := filepath.Join(dir, "Journal.2026-08-20T120000.01.log")
	require.NoError(t, os.WriteFile(newer,
		[]byte(`{"timestamp":"2026-08-20T12:00:00Z","event":"Location","StarSystem":"Achenar","Body":""}`+"\n"), 0o644))

	w.scan()
	assert.Equal(t, "Achenar", w.Status().StarSystem, "only the newest journal is followed")
}

func TestScanIsIncremental(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, 0)
	path := filepath.Join(dir, "Journal.2026-08-20T120000.01.log")

	require.NoError(t, os.WriteFile(path,
		[]byte(`{"timestamp":"2026-08-20T12:00:00Z","event":"Location","StarSystem":"Sol","Body":"Earth"}`+"\n"), 0o644))
	w.scan()
	require.Equal(t, "Sol", w.Status().StarSystem)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"timestamp":"2026-08-20T12:30:00Z","event":"FSDJump","StarSystem":"Barnard's Star","Body":""}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w.scan()
	assert.Equal(t, "Barnard's Star", w.Status().StarSystem)
}

func TestScanLeavesPartialLinePending(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir, 0)
	path := filepath.Join(dir, "Journal.2026-08-20T120000.01.log")

	jump := `{"timestamp":"2026-08-20T12:30:00Z","event":"FSDJump","StarSystem":"Achenar","Body":""}`
	// The second line is caught mid-write, without its newline.
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"timestamp":"2026-08-20T12:00:00Z","event":"Location","StarSystem":"Sol","Body":"Earth"}`+"\n"+
			jump[:40]), 0o644))
	w.scan()
	assert.Equal(t, "Sol", w.Status().StarSystem, "the fragment is not consumed as a line")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(jump[40:] + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w.scan()
	assert.Equal(t, "Achenar", w.Status().StarSystem, "the completed line applies as a whole")
}

func TestScanToleratesMissingDirectory(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "does-not-exist"), 0)
	w.scan()
	assert.Equal(t, Status{}, w.Status())
}

func TestIsJournalFile(t *testing.T) {
	assert.True(t, isJournalFile("Journal.2026-08-20T120000.01.log"))
	assert.False(t, isJournalFile("Status.json"))
	assert.False(t, isJournalFile("Journal.backup"))
}

package activity

import (
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l
}()

// setupTestStore creates a temporary sqlite-backed store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "activity-test-*.db")
	require.NoError(t, err)
	tmpFile.Close()

	store, err := Open(tmpFile.Name(), testLogger)
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to open activity store: %v", err)
	}

	return store, func() {
		store.Close()
		os.Remove(tmpFile.Name())
	}
}

func TestRecordAndRecentOrdersNewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(Event{
		Type: SessionCreated, ActualSessionID: "S1", ProjectName: "proj",
		FilePath: "/p/S1.jsonl", MessageCount: 1, OccurredAt: base,
	}))
	require.NoError(t, store.Record(Event{
		Type: SessionUpdated, ActualSessionID: "S1", ProjectName: "proj",
		FilePath: "/p/S1.jsonl", MessageCount: 2, OccurredAt: base.Add(time.Minute),
	}))

	events, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, SessionUpdated, events[0].Type)
	assert.Equal(t, SessionCreated, events[1].Type)
}

func TestRecordUpsertsSessionStatus(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(Event{
		Type: SessionCreated, ActualSessionID: "S1", ProjectName: "proj",
		FilePath: "/p/S1.jsonl", MessageCount: 1, OccurredAt: base,
	}))
	require.NoError(t, store.Record(Event{
		Type: SessionUpdated, ActualSessionID: "S1", ProjectName: "proj",
		FilePath: "/p/S1.jsonl", MessageCount: 5, OccurredAt: base.Add(time.Minute),
	}))

	live, err := store.LiveSessions()
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "S1", live[0].ActualSessionID)
	assert.Equal(t, 5, live[0].MessageCount)
	assert.Equal(t, string(SessionUpdated), live[0].LastEventType)
}

func TestDeletedSessionIsRemovedFromLiveStatus(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(Event{
		Type: SessionCreated, ActualSessionID: "S1", ProjectName: "proj",
		FilePath: "/p/S1.jsonl", MessageCount: 1, OccurredAt: base,
	}))
	require.NoError(t, store.Record(Event{
		Type: SessionDeleted, ActualSessionID: "S1", ProjectName: "proj",
		FilePath: "/p/S1.jsonl", OccurredAt: base.Add(time.Minute),
	}))

	live, err := store.LiveSessions()
	require.NoError(t, err)
	assert.Empty(t, live)

	events, err := store.Recent(10)
	require.NoError(t, err)
	assert.Len(t, events, 2, "deletion still appears in the append-only event log")
}

package claude

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestLoadProjectSessionsWorkedExample(t *testing.T) {
	dir := t.TempDir()
	writeSJSONL(t, dir)

	sessions, err := LoadProjectSessions(dir, false, testLogger())
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	s := sessions[0]
	assert.Equal(t, 3, s.MessageCount)
	assert.Equal(t, 1, s.SidechainCount)
	assert.True(t, s.HasToolUse)
	assert.False(t, s.HasErrors)
	assert.Equal(t, "Greeting and tool use", s.Summary)
	assert.Equal(t, filepath.Base(dir), s.ProjectName)
}

func TestLoadProjectSessionsIsOrderStable(t *testing.T) {
	dir := t.TempDir()
	writeSJSONL(t, dir)

	first, err := LoadProjectSessions(dir, false, testLogger())
	require.NoError(t, err)
	second, err := LoadProjectSessions(dir, false, testLogger())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0], second[0])
}

func TestLoadProjectSessionsWritesCacheEntry(t *testing.T) {
	dir := t.TempDir()
	writeSJSONL(t, dir)

	_, err := LoadProjectSessions(dir, false, testLogger())
	require.NoError(t, err)

	cache := LoadCache(dir, testLogger())
	require.Len(t, cache.Entries, 1)
	for path, entry := range cache.Entries {
		require.NotNil(t, entry.Session)
		assert.Equal(t, 3, entry.Session.MessageCount)
		_ = path
	}
}

func TestLoadProjectSessionsExcludeSidechainSubtractsSidechainCount(t *testing.T) {
	dir := t.TempDir()
	path := writeSJSONL(t, dir)
	_ = path

	sessions, err := LoadProjectSessions(dir, true, testLogger())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].MessageCount)
}

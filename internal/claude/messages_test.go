package claude

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSessionMessagesWorkedExample(t *testing.T) {
	dir := t.TempDir()
	path := writeSJSONL(t, dir)

	messages, err := LoadSessionMessages(path)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	assert.Equal(t, "u1", messages[0].UUID)
	assert.Equal(t, "a1", messages[1].UUID)
	assert.Equal(t, "u2", messages[2].UUID)
	assert.True(t, messages[2].IsSidechain)
}

func TestGetSessionMessageCountWorkedExample(t *testing.T) {
	dir := t.TempDir()
	path := writeSJSONL(t, dir)

	count, err := GetSessionMessageCount(path, false)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	excluded, err := GetSessionMessageCount(path, true)
	require.NoError(t, err)
	assert.Equal(t, 2, excluded)
}

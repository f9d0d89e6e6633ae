package claude

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginateWorkedExample(t *testing.T) {
	dir := t.TempDir()
	path := writeSJSONL(t, dir)

	page, err := Paginate(path, 0, 2, false)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "a1", page.Messages[0].UUID)
	assert.Equal(t, "u2", page.Messages[1].UUID)
	assert.Equal(t, 3, page.TotalCount)
	assert.True(t, page.HasMore)

	page2, err := Paginate(path, 2, 2, false)
	require.NoError(t, err)
	require.Len(t, page2.Messages, 1)
	assert.Equal(t, "u1", page2.Messages[0].UUID)
	assert.False(t, page2.HasMore)
	assert.Equal(t, 3, page2.NextOffset)
}

func TestPaginateEmptyOffset(t *testing.T) {
	dir := t.TempDir()
	path := writeSJSONL(t, dir)

	page, err := Paginate(path, 10, 2, false)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)
}

func TestPaginatePartitionsWithoutOverlap(t *testing.T) {
	dir := t.TempDir()
	path := writeSJSONL(t, dir)

	offset := 0
	var seen []string
	for {
		page, err := Paginate(path, offset, 1, false)
		require.NoError(t, err)
		if len(page.Messages) == 0 {
			break
		}
		for _, m := range page.Messages {
			seen = append(seen, m.UUID)
		}
		assert.Equal(t, offset+len(page.Messages), page.NextOffset)
		offset = page.NextOffset
	}
	assert.Equal(t, []string{"u2", "a1", "u1"}, seen)
}

package claude

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindLineRangesBasic(t *testing.T) {
	data := []byte("a\nbb\n\nccc")
	ranges := findLineRanges(data)
	require.Len(t, ranges, 3)

	assert.Equal(t, "a", string(data[ranges[0].start:ranges[0].end]))
	assert.Equal(t, "bb", string(data[ranges[1].start:ranges[1].end]))
	assert.Equal(t, "ccc", string(data[ranges[2].start:ranges[2].end]))
}

func TestFindLineRangesEmpty(t *testing.T) {
	assert.Nil(t, findLineRanges(nil))
	assert.Nil(t, findLineRanges([]byte{}))
}

func TestFindLineRangesTrailingNewline(t *testing.T) {
	ranges := findLineRanges([]byte("one\ntwo\n"))
	require.Len(t, ranges, 2)
}

package claude

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSessionTokenStatsWorkedExample(t *testing.T) {
	dir := t.TempDir()
	path := writeSJSONL(t, dir)

	stats, err := GetSessionTokenStats(path)
	require.NoError(t, err)

	assert.EqualValues(t, 100, stats.TotalInputTokens)
	assert.EqualValues(t, 50, stats.TotalOutputTokens)

	require.NotEmpty(t, stats.MostUsedTools)
	var read *ToolUsageStats
	for i := range stats.MostUsedTools {
		if stats.MostUsedTools[i].ToolName == "Read" {
			read = &stats.MostUsedTools[i]
		}
	}
	require.NotNil(t, read, "expected a Read tool entry")
	assert.EqualValues(t, 1, read.UsageCount)
	assert.Equal(t, 1.0, read.SuccessRate)
}

func TestGetProjectStatsSummaryWorkedExample(t *testing.T) {
	dir := t.TempDir()
	writeSJSONL(t, dir)

	summary, err := GetProjectStatsSummary(dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalSessions)
	assert.Equal(t, 3, summary.TotalMessages)
	assert.EqualValues(t, 150, summary.TokenDistribution.total())
}

func TestGetSessionComparisonSingleSessionIsAverage(t *testing.T) {
	dir := t.TempDir()
	writeSJSONL(t, dir)

	cmp, err := GetSessionComparison("S", dir)
	require.NoError(t, err)

	assert.Equal(t, "S", cmp.SessionID)
	assert.Equal(t, 100.0, cmp.PercentageOfProjectTokens)
	assert.Equal(t, 100.0, cmp.PercentageOfProjectMessages)
	assert.Equal(t, 1, cmp.RankByTokens)
	assert.False(t, cmp.IsAboveAverage)
}

func TestGetProjectTokenStatsOrdersByTokensDescending(t *testing.T) {
	dir := t.TempDir()
	writeSJSONL(t, dir)

	rows, err := GetProjectTokenStats(dir, 0, 10, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 150, rows[0].TotalTokens)
}

func TestGetGlobalStatsSummaryAggregatesAcrossProjects(t *testing.T) {
	root := t.TempDir()
	projectsDir := root + "/projects"
	require.NoError(t, os.MkdirAll(projectsDir+"/proj-a", 0o755))
	require.NoError(t, os.MkdirAll(projectsDir+"/proj-b", 0o755))
	writeSJSONL(t, projectsDir+"/proj-a")
	writeSJSONL(t, projectsDir+"/proj-b")

	summary, err := GetGlobalStatsSummary(root)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalSessions)
	assert.Equal(t, 6, summary.TotalMessages)
	require.Len(t, summary.TopProjects, 2)
	require.NotNil(t, summary.DateRange.FirstMessage)
	require.NotNil(t, summary.DateRange.LastMessage)
	assert.True(t, summary.DateRange.LastMessage.After(*summary.DateRange.FirstMessage) ||
		summary.DateRange.LastMessage.Equal(*summary.DateRange.FirstMessage))
	assert.WithinDuration(t, time.Date(2025, 1, 1, 10, 0, 2, 0, time.UTC), *summary.DateRange.LastMessage, 0)
}

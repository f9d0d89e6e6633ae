package claude

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// GetSessionTokenStats implements session_token_stats: a detailed
// single-session rollup (spec section 4.7, section 6).
func GetSessionTokenStats(path string) (*SessionTokenStats, error) {
	acc, err := scanFileForStats(path)
	if err != nil {
		return nil, err
	}
	return &SessionTokenStats{
		SessionID:                 acc.sessionID,
		ProjectName:               filepath.Base(filepath.Dir(path)),
		TotalInputTokens:          acc.dist.Input,
		TotalOutputTokens:         acc.dist.Output,
		TotalCacheCreationTokens:  acc.dist.CacheCreation,
		TotalCacheReadTokens:      acc.dist.CacheRead,
		TotalTokens:               acc.totalTokens,
		MessageCount:              acc.totalMessages,
		FirstMessageTime:          acc.firstMsgTime,
		LastMessageTime:           acc.lastMsgTime,
		Summary:                   acc.summary,
		MostUsedTools:             finalizeToolStats(acc.tools),
	}, nil
}

// projectAccumulators scans every *.jsonl file under projectDir in
// parallel and returns each file's per-file accumulator, applying an optional last-message-time window (spec section 4.7:
// "Date-windowed rollups discard files whose last_message_time falls
// outside [start_date, end_date]").
func projectAccumulators(projectDir string, window *TokenRangeFilter) ([]*fileAccumulator, error) {
	paths, err := discoverSessionFiles(projectDir)
	if err != nil {
		return nil, err
	}

	accs := make([]*fileAccumulator, len(paths))
	sem := make(chan struct{}, scanConcurrency())
	done := make(chan int, len(paths))

	for i, p := range paths {
		sem <- struct{}{}
		go func(i int, p string) {
			defer func() { <-sem }()
			acc, err := scanFileForStats(p)
			if err == nil {
				accs[i] = acc
			}
			done <- i
		}(i, p)
	}
	for range paths {
		<-done
	}

	out := make([]*fileAccumulator, 0, len(paths))
	for _, acc := range accs {
		if acc == nil || acc.totalMessages == 0 {
			continue
		}
		if window != nil {
			if window.StartDate != nil && acc.lastMsgTime.Before(*window.StartDate) {
				continue
			}
			if window.EndDate != nil && acc.lastMsgTime.After(*window.EndDate) {
				continue
			}
		}
		out = append(out, acc)
	}
	return out, nil
}

// GetProjectStatsSummary implements project_stats_summary.
func GetProjectStatsSummary(projectDir string, window *TokenRangeFilter) (*ProjectStatsSummary, error) {
	accs, err := projectAccumulators(projectDir, window)
	if err != nil {
		return nil, err
	}

	summary := &ProjectStatsSummary{ProjectName: filepath.Base(projectDir)}
	tools := make(map[string]*ToolUsageStats)
	daily := make(map[string]*DailyStats)
	activity := make(map[[2]int]*ActivityHeatmap)

	var totalDuration int64
	var sessionsWithDuration int

	for _, acc := range accs {
		summary.TotalSessions++
		summary.TotalMessages += acc.totalMessages
		summary.TotalTokens += acc.totalTokens
		summary.TokenDistribution.add(acc.dist)

		mergeToolMaps(tools, acc.tools)
		mergeDailyMaps(daily, acc.daily, acc.firstMsgTime)
		mergeActivityMaps(activity, acc.activity)

		dur := computeSessionDuration(acc)
		if dur > 0 {
			totalDuration += dur
			sessionsWithDuration++
		}
	}

	summary.TotalSessionDuration = totalDuration
	if summary.TotalSessions > 0 {
		summary.AvgTokensPerSession = summary.TotalTokens / int64(summary.TotalSessions)
	}
	if sessionsWithDuration > 0 {
		summary.AvgSessionDuration = totalDuration / int64(sessionsWithDuration)
	}
	summary.MostUsedTools = finalizeToolStats(tools)
	summary.DailyStats = finalizeDailyStats(daily)
	summary.ActivityHeatmap = finalizeActivityStats(activity)
	summary.MostActiveHour = mostActiveHour(summary.ActivityHeatmap)

	return summary, nil
}

// GetProjectTokenStats implements project_token_stats: a paginated list
// of per-session token stats sorted by total_tokens descending.
func GetProjectTokenStats(projectDir string, offset, limit int, window *TokenRangeFilter) ([]SessionTokenStats, error) {
	paths, err := discoverSessionFiles(projectDir)
	if err != nil {
		return nil, err
	}
	out := make([]SessionTokenStats, 0, len(paths))
	for _, p := range paths {
		acc, err := scanFileForStats(p)
		if err != nil || acc.totalMessages == 0 {
			continue
		}
		if window != nil {
			if window.StartDate != nil && acc.lastMsgTime.Before(*window.StartDate) {
				continue
			}
			if window.EndDate != nil && acc.lastMsgTime.After(*window.EndDate) {
				continue
			}
		}
		out = append(out, SessionTokenStats{
			SessionID:                acc.sessionID,
			ProjectName:              filepath.Base(projectDir),
			TotalInputTokens:         acc.dist.Input,
			TotalOutputTokens:        acc.dist.Output,
			TotalCacheCreationTokens: acc.dist.CacheCreation,
			TotalCacheReadTokens:     acc.dist.CacheRead,
			TotalTokens:              acc.totalTokens,
			MessageCount:             acc.totalMessages,
			FirstMessageTime:         acc.firstMsgTime,
			LastMessageTime:          acc.lastMsgTime,
			Summary:                  acc.summary,
			MostUsedTools:            finalizeToolStats(acc.tools),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalTokens > out[j].TotalTokens })

	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []SessionTokenStats{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

// GetSessionComparison implements session_comparison: a session's share
// (as a percentage of the project's tokens and messages) and rank (by
// tokens and by duration) within its project,
// per the original source's dual-ranking shape (SPEC_FULL.md section 4).
func GetSessionComparison(sessionID, projectDir string) (*SessionComparison, error) {
	paths, err := discoverSessionFiles(projectDir)
	if err != nil {
		return nil, err
	}

	type row struct {
		sessionID string
		tokens    int64
		messages  int
		duration  int64
	}
	var rows []row
	for _, p := range paths {
		acc, err := scanFileForStats(p)
		if err != nil || acc.totalMessages == 0 {
			continue
		}
		rows = append(rows, row{
			sessionID: acc.sessionID,
			tokens:    acc.totalTokens,
			messages:  acc.totalMessages,
			duration:  computeSessionDuration(acc),
		})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no sessions found in %s", projectDir)
	}

	var totalTokens int64
	var totalMessages int
	for _, r := range rows {
		totalTokens += r.tokens
		totalMessages += r.messages
	}
	avgTokens := float64(totalTokens) / float64(len(rows))

	byTokens := append([]row(nil), rows...)
	sort.Slice(byTokens, func(i, j int) bool { return byTokens[i].tokens > byTokens[j].tokens })
	byDuration := append([]row(nil), rows...)
	sort.Slice(byDuration, func(i, j int) bool { return byDuration[i].duration > byDuration[j].duration })

	var target *row
	rankTokens, rankDuration := -1, -1
	for i, r := range byTokens {
		if r.sessionID == sessionID {
			rankTokens = i + 1
			target = &byTokens[i]
			break
		}
	}
	for i, r := range byDuration {
		if r.sessionID == sessionID {
			rankDuration = i + 1
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("session %s not found in %s", sessionID, projectDir)
	}

	pctTokens := 0.0
	if totalTokens > 0 {
		pctTokens = float64(target.tokens) / float64(totalTokens) * 100
	}
	pctMessages := 0.0
	if totalMessages > 0 {
		pctMessages = float64(target.messages) / float64(totalMessages) * 100
	}

	return &SessionComparison{
		SessionID:                   sessionID,
		PercentageOfProjectTokens:   pctTokens,
		PercentageOfProjectMessages: pctMessages,
		RankByTokens:                rankTokens,
		RankByDuration:              rankDuration,
		IsAboveAverage:              float64(target.tokens) > avgTokens,
	}, nil
}

// GetGlobalStatsSummary implements global_stats_summary: a cross-project
// rollup with the top 10 projects by tokens.
func GetGlobalStatsSummary(corpusRoot string) (*GlobalStatsSummary, error) {
	projectDirs, err := discoverProjectDirs(corpusRoot)
	if err != nil {
		return nil, err
	}

	summary := &GlobalStatsSummary{TotalProjects: len(projectDirs)}
	tools := make(map[string]*ToolUsageStats)
	daily := make(map[string]*DailyStats)
	activity := make(map[[2]int]*ActivityHeatmap)
	models := make(map[string]*ModelStats)

	var totalDuration int64
	var firstMsg, lastMsg *time.Time
	var rankings []ProjectRanking

	for _, dir := range projectDirs {
		accs, err := projectAccumulators(dir, nil)
		if err != nil {
			continue
		}
		var projSessions, projMessages int
		var projTokens int64

		for _, acc := range accs {
			summary.TotalSessions++
			summary.TotalMessages += acc.totalMessages
			summary.TotalTokens += acc.totalTokens
			summary.TokenDistribution.add(acc.dist)
			projSessions++
			projMessages += acc.totalMessages
			projTokens += acc.totalTokens

			mergeToolMaps(tools, acc.tools)
			mergeDailyMaps(daily, acc.daily, acc.firstMsgTime)
			mergeActivityMaps(activity, acc.activity)
			mergeModelMaps(models, acc.modelUsage)

			totalDuration += computeSessionDuration(acc)

			if !acc.firstMsgTime.IsZero() && (firstMsg == nil || acc.firstMsgTime.Before(*firstMsg)) {
				t := acc.firstMsgTime
				firstMsg = &t
			}
			if !acc.lastMsgTime.IsZero() && (lastMsg == nil || acc.lastMsgTime.After(*lastMsg)) {
				t := acc.lastMsgTime
				lastMsg = &t
			}
		}

		rankings = append(rankings, ProjectRanking{
			ProjectName: filepath.Base(dir),
			Sessions:    projSessions,
			Messages:    projMessages,
			Tokens:      projTokens,
		})
	}

	summary.TotalSessionDurationMinutes = totalDuration
	summary.DateRange = DateRange{FirstMessage: firstMsg, LastMessage: lastMsg}
	if firstMsg != nil && lastMsg != nil {
		summary.DateRange.DaysSpan = int(lastMsg.Sub(*firstMsg).Hours() / 24)
	}
	summary.MostUsedTools = finalizeToolStats(tools)
	summary.DailyStats = finalizeDailyStats(daily)
	summary.ActivityHeatmap = finalizeActivityStats(activity)
	summary.ModelDistribution = finalizeModelStats(models)

	sort.Slice(rankings, func(i, j int) bool { return rankings[i].Tokens > rankings[j].Tokens })
	if len(rankings) > 10 {
		rankings = rankings[:10]
	}
	summary.TopProjects = rankings

	return summary, nil
}

func discoverProjectDirs(corpusRoot string) ([]string, error) {
	projectsRoot := filepath.Join(corpusRoot, "projects")
	entries, err := os.ReadDir(projectsRoot)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(projectsRoot, e.Name()))
		}
	}
	return dirs, nil
}

func mergeToolMaps(dst map[string]*ToolUsageStats, src map[string]*ToolUsageStats) {
	for name, t := range src {
		d := dst[name]
		if d == nil {
			d = &ToolUsageStats{ToolName: name}
			dst[name] = d
		}
		d.UsageCount += t.UsageCount
		d.successCount += t.successCount
	}
}

func mergeDailyMaps(dst map[string]*DailyStats, src map[string]*DailyStats, firstMsgTime time.Time) {
	sessionDay := ""
	if !firstMsgTime.IsZero() {
		sessionDay = firstMsgTime.Format("2006-01-02")
	}
	for day, s := range src {
		d := dst[day]
		if d == nil {
			d = &DailyStats{Date: day, firstMessageSessions: make(map[string]bool)}
			dst[day] = d
		}
		d.TotalTokens += s.TotalTokens
		d.InputTokens += s.InputTokens
		d.OutputTokens += s.OutputTokens
		d.MessageCount += s.MessageCount
	}
	if sessionDay != "" {
		d := dst[sessionDay]
		if d == nil {
			d = &DailyStats{Date: sessionDay, firstMessageSessions: make(map[string]bool)}
			dst[sessionDay] = d
		}
		d.SessionCount++
	}
}

func mergeActivityMaps(dst map[[2]int]*ActivityHeatmap, src map[[2]int]*ActivityHeatmap) {
	for key, h := range src {
		d := dst[key]
		if d == nil {
			d = &ActivityHeatmap{Hour: h.Hour, DayOfWeek: h.DayOfWeek}
			dst[key] = d
		}
		d.ActivityCount += h.ActivityCount
		d.TokensUsed += h.TokensUsed
	}
}

func mergeModelMaps(dst map[string]*ModelStats, src map[string]*ModelStats) {
	for name, m := range src {
		d := dst[name]
		if d == nil {
			d = &ModelStats{ModelName: name}
			dst[name] = d
		}
		d.MessageCount += m.MessageCount
		d.TokenCount += m.TokenCount
		d.TokenDistribution.add(m.TokenDistribution)
	}
}

func finalizeDailyStats(daily map[string]*DailyStats) []DailyStats {
	out := make([]DailyStats, 0, len(daily))
	for _, d := range daily {
		activeHours := 0
		if d.MessageCount > 0 {
			activeHours = d.MessageCount / 10
			if activeHours < 1 {
				activeHours = 1
			}
			if activeHours > 24 {
				activeHours = 24
			}
		}
		d.ActiveHours = activeHours
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func finalizeActivityStats(activity map[[2]int]*ActivityHeatmap) []ActivityHeatmap {
	out := make([]ActivityHeatmap, 0, len(activity))
	for _, h := range activity {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].Hour < out[j].Hour
	})
	return out
}

func finalizeModelStats(models map[string]*ModelStats) []ModelStats {
	out := make([]ModelStats, 0, len(models))
	for _, m := range models {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenCount > out[j].TokenCount })
	return out
}

func mostActiveHour(heatmap []ActivityHeatmap) int {
	best := -1
	var bestCount int64 = -1
	for _, h := range heatmap {
		if h.ActivityCount > bestCount {
			bestCount = h.ActivityCount
			best = h.Hour
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

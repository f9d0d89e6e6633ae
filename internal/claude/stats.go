package claude

import (
	"encoding/json"
	"sort"
	"time"
)

// TokenDistribution is the four-component token breakdown used
// throughout the aggregator (spec section 4.7).
type TokenDistribution struct {
	Input          int64 `json:"input"`
	Output         int64 `json:"output"`
	CacheCreation  int64 `json:"cache_creation"`
	CacheRead      int64 `json:"cache_read"`
}

func (d *TokenDistribution) add(o TokenDistribution) {
	d.Input += o.Input
	d.Output += o.Output
	d.CacheCreation += o.CacheCreation
	d.CacheRead += o.CacheRead
}

func (d TokenDistribution) total() int64 {
	return d.Input + d.Output + d.CacheCreation + d.CacheRead
}

// ToolUsageStats is a per-tool rollup. SuccessRate is always a 0..1
// ratio, the convention this repo standardizes on across every output
// (see SPEC_FULL.md section 5, resolving the original's 0..1-vs-0..100
// inconsistency).
type ToolUsageStats struct {
	ToolName    string  `json:"tool_name"`
	UsageCount  int64   `json:"usage_count"`
	SuccessRate float64 `json:"success_rate"`

	successCount int64
}

// DailyStats is one day's rollup within a project or the global corpus.
type DailyStats struct {
	Date         string `json:"date"`
	TotalTokens  int64  `json:"total_tokens"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	MessageCount int    `json:"message_count"`
	SessionCount int    `json:"session_count"`
	ActiveHours  int    `json:"active_hours"`

	firstMessageSessions map[string]bool
}

// ActivityHeatmap is one (hour, day-of-week) bucket. DayOfWeek is
// Sunday-origin (spec section 4.7, section 9).
type ActivityHeatmap struct {
	Hour          int   `json:"hour"`
	DayOfWeek     int   `json:"day_of_week"`
	ActivityCount int64 `json:"activity_count"`
	TokensUsed    int64 `json:"tokens_used"`
}

// ModelStats is a per-model rollup, included in the global summary per
// the original's GlobalStatsSummary.model_distribution (SPEC_FULL.md
// section 4).
type ModelStats struct {
	ModelName    string `json:"model_name"`
	MessageCount int64  `json:"message_count"`
	TokenCount   int64  `json:"token_count"`
	TokenDistribution
}

// SessionTokenStats is the session_token_stats command result.
type SessionTokenStats struct {
	SessionID        string           `json:"session_id"`
	ProjectName      string           `json:"project_name"`
	TotalInputTokens int64            `json:"total_input_tokens"`
	TotalOutputTokens int64           `json:"total_output_tokens"`
	TotalCacheCreationTokens int64    `json:"total_cache_creation_tokens"`
	TotalCacheReadTokens int64        `json:"total_cache_read_tokens"`
	TotalTokens      int64            `json:"total_tokens"`
	MessageCount     int              `json:"message_count"`
	FirstMessageTime time.Time        `json:"first_message_time"`
	LastMessageTime  time.Time        `json:"last_message_time"`
	Summary          string           `json:"summary,omitempty"`
	MostUsedTools    []ToolUsageStats `json:"most_used_tools"`
}

// TokenRangeFilter bounds a stats query by last_message_time.
type TokenRangeFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
}

// ProjectStatsSummary is the project_stats_summary command result.
type ProjectStatsSummary struct {
	ProjectName           string            `json:"project_name"`
	TotalSessions         int               `json:"total_sessions"`
	TotalMessages         int               `json:"total_messages"`
	TotalTokens           int64             `json:"total_tokens"`
	AvgTokensPerSession   int64             `json:"avg_tokens_per_session"`
	AvgSessionDuration    int64             `json:"avg_session_duration_minutes"`
	TotalSessionDuration  int64             `json:"total_session_duration_minutes"`
	MostActiveHour        int               `json:"most_active_hour"`
	MostUsedTools         []ToolUsageStats  `json:"most_used_tools"`
	DailyStats            []DailyStats      `json:"daily_stats"`
	ActivityHeatmap       []ActivityHeatmap `json:"activity_heatmap"`
	TokenDistribution     TokenDistribution `json:"token_distribution"`
}

// DateRange summarizes the corpus's observed time span.
type DateRange struct {
	FirstMessage *time.Time `json:"first_message,omitempty"`
	LastMessage  *time.Time `json:"last_message,omitempty"`
	DaysSpan     int        `json:"days_span"`
}

// ProjectRanking is one row of global_stats_summary.top_projects.
type ProjectRanking struct {
	ProjectName string `json:"project_name"`
	Sessions    int    `json:"sessions"`
	Messages    int    `json:"messages"`
	Tokens      int64  `json:"tokens"`
}

// GlobalStatsSummary is the global_stats_summary command result.
type GlobalStatsSummary struct {
	TotalProjects              int               `json:"total_projects"`
	TotalSessions              int               `json:"total_sessions"`
	TotalMessages              int               `json:"total_messages"`
	TotalTokens                int64             `json:"total_tokens"`
	TotalSessionDurationMinutes int64            `json:"total_session_duration_minutes"`
	DateRange                  DateRange         `json:"date_range"`
	TokenDistribution          TokenDistribution `json:"token_distribution"`
	DailyStats                 []DailyStats      `json:"daily_stats"`
	ActivityHeatmap            []ActivityHeatmap `json:"activity_heatmap"`
	MostUsedTools              []ToolUsageStats  `json:"most_used_tools"`
	ModelDistribution          []ModelStats      `json:"model_distribution"`
	TopProjects                []ProjectRanking  `json:"top_projects"`
}

// SessionComparison is the session_comparison command result, ranked on
// both tokens and duration per the original source's dual ranking
// (SPEC_FULL.md section 4).
type SessionComparison struct {
	SessionID                    string  `json:"session_id"`
	PercentageOfProjectTokens    float64 `json:"percentage_of_project_tokens"`
	PercentageOfProjectMessages  float64 `json:"percentage_of_project_messages"`
	RankByTokens                 int     `json:"rank_by_tokens"`
	RankByDuration                int     `json:"rank_by_duration"`
	IsAboveAverage                bool    `json:"is_above_average"`
}

// fileAccumulator is the per-file scan state described in spec section
// 4.7: no cross-file sharing happens while building one of these: it is
// reduced into a rollup only after the whole file has been scanned.
type fileAccumulator struct {
	sessionID    string
	totalMessages int
	totalTokens  int64
	dist         TokenDistribution
	tools        map[string]*ToolUsageStats
	daily        map[string]*DailyStats
	activity     map[[2]int]*ActivityHeatmap
	modelUsage   map[string]*ModelStats
	timestamps   []time.Time
	firstMsgTime time.Time
	lastMsgTime  time.Time
	summary      string
}

func newFileAccumulator() *fileAccumulator {
	return &fileAccumulator{
		tools:      make(map[string]*ToolUsageStats),
		daily:      make(map[string]*DailyStats),
		activity:   make(map[[2]int]*ActivityHeatmap),
		modelUsage: make(map[string]*ModelStats),
	}
}

// scanFileForStats performs the single-pass per-file scan shared by all
// three stats commands (spec section 4.7).
func scanFileForStats(path string) (*fileAccumulator, error) {
	mapped, err := openMapped(path)
	if err != nil {
		return nil, err
	}
	defer mapped.Close()
	data, err := mapped.Bytes()
	if err != nil {
		return nil, err
	}
	ranges := findLineRanges(data)

	acc := newFileAccumulator()
	for i, r := range ranges {
		line := data[r.start:r.end]
		rec, failure := decodeRecord(i, line)
		if failure != nil {
			continue
		}
		if rec.Type == "summary" {
			if acc.summary == "" {
				acc.summary = rec.Summary
			}
			continue
		}
		if !rec.isValid() {
			continue
		}
		if acc.sessionID == "" {
			acc.sessionID = rec.SessionID
		}
		observeRecordForStats(rec, acc)
	}
	return acc, nil
}

func observeRecordForStats(rec *RawRecord, acc *fileAccumulator) {
	acc.totalMessages++

	ts, tsErr := parseTimestamp(rec.Timestamp)
	if tsErr == nil {
		acc.timestamps = append(acc.timestamps, ts)
		if acc.firstMsgTime.IsZero() || ts.Before(acc.firstMsgTime) {
			acc.firstMsgTime = ts
		}
		if ts.After(acc.lastMsgTime) {
			acc.lastMsgTime = ts
		}
	}

	usage, role := extractTokenUsage(rec)
	if usage != nil {
		dist := TokenDistribution{
			Input:         usage.InputTokens,
			Output:        usage.OutputTokens,
			CacheCreation: usage.CacheCreationInputTokens,
			CacheRead:     usage.CacheReadInputTokens,
		}
		acc.dist.add(dist)
		acc.totalTokens += dist.total()

		if tsErr == nil {
			day := ts.Format("2006-01-02")
			d := acc.daily[day]
			if d == nil {
				d = &DailyStats{Date: day, firstMessageSessions: make(map[string]bool)}
				acc.daily[day] = d
			}
			d.TotalTokens += dist.total()
			d.InputTokens += dist.Input
			d.OutputTokens += dist.Output
			d.MessageCount++

			key := [2]int{int(ts.Weekday()), ts.Hour()}
			h := acc.activity[key]
			if h == nil {
				h = &ActivityHeatmap{Hour: ts.Hour(), DayOfWeek: int(ts.Weekday())}
				acc.activity[key] = h
			}
			h.ActivityCount++
			h.TokensUsed += dist.total()
		}

		if rec.Message != nil && rec.Message.Model != "" {
			m := acc.modelUsage[rec.Message.Model]
			if m == nil {
				m = &ModelStats{ModelName: rec.Message.Model}
				acc.modelUsage[rec.Message.Model] = m
			}
			m.MessageCount++
			m.TokenCount += dist.total()
			m.TokenDistribution.add(dist)
		}
	} else if tsErr == nil {
		day := ts.Format("2006-01-02")
		d := acc.daily[day]
		if d == nil {
			d = &DailyStats{Date: day, firstMessageSessions: make(map[string]bool)}
			acc.daily[day] = d
		}
		d.MessageCount++
	}
	_ = role

	recordToolUsage(rec, acc)
}

// extractTokenUsage applies the precedence rules in spec section 4.7:
// top-level usage, then content.usage (when content is an object), then
// toolUseResult.usage, then toolUseResult.totalTokens split by role.
func extractTokenUsage(rec *RawRecord) (*TokenUsage, string) {
	role := ""
	if rec.Message != nil {
		role = rec.Message.Role
	}

	if rec.Usage != nil {
		return rec.Usage, role
	}
	if rec.Message != nil && rec.Message.Usage != nil {
		return rec.Message.Usage, role
	}
	if obj, ok := contentAsObject(rec); ok {
		if u, ok := obj["usage"]; ok {
			if usage := decodeUsageValue(u); usage != nil {
				return usage, role
			}
		}
	}
	if rec.ToolUseResult != nil {
		if u, ok := rec.ToolUseResult["usage"]; ok {
			if usage := decodeUsageValue(u); usage != nil {
				return usage, role
			}
		}
		if total, ok := rec.ToolUseResult["totalTokens"]; ok {
			n := toInt64(total)
			if role == "assistant" {
				return &TokenUsage{OutputTokens: n}, role
			}
			return &TokenUsage{InputTokens: n}, role
		}
	}
	return nil, role
}

func contentAsObject(rec *RawRecord) (map[string]any, bool) {
	if rec.Message == nil {
		return nil, false
	}
	obj, ok := rec.Message.Content.(map[string]any)
	return obj, ok
}

func decodeUsageValue(v any) *TokenUsage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var u TokenUsage
	if err := json.Unmarshal(b, &u); err != nil {
		return nil
	}
	return &u
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// recordToolUsage increments tool_usage per spec section 4.7: either an
// assistant content item with type == "tool_use" and a name, or a
// top-level toolUse with a name. Success is counted unless the
// accompanying toolUseResult.is_error is true.
func recordToolUsage(rec *RawRecord, acc *fileAccumulator) {
	names := make([]string, 0, 1)

	if rec.Message != nil {
		if items, ok := rec.Message.Content.([]any); ok {
			for _, item := range items {
				obj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if t, _ := obj["type"].(string); t == "tool_use" {
					if name, ok := obj["name"].(string); ok && name != "" {
						names = append(names, name)
					}
				}
			}
		}
	}
	if rec.ToolUse != nil {
		if name, ok := rec.ToolUse["name"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}

	isError := false
	if rec.ToolUseResult != nil {
		if e, ok := rec.ToolUseResult["is_error"].(bool); ok {
			isError = e
		}
	}

	for _, name := range names {
		t := acc.tools[name]
		if t == nil {
			t = &ToolUsageStats{ToolName: name}
			acc.tools[name] = t
		}
		t.UsageCount++
		if !isError {
			t.successCount++
		}
	}
}

// computeSessionDuration implements the gap-based period splitting in
// spec section 4.7: sort timestamps ascending, start a new active
// period whenever the gap between adjacent timestamps exceeds 120
// minutes, and sum max(1, period duration) minutes across periods.
func computeSessionDuration(acc *fileAccumulator) int64 {
	if len(acc.timestamps) == 0 {
		return 0
	}
	ts := append([]time.Time(nil), acc.timestamps...)
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })

	if len(ts) == 1 {
		return 1
	}

	var total int64
	periodStart := ts[0]
	periodEnd := ts[0]
	const gapThreshold = 120 * time.Minute

	for i := 1; i < len(ts); i++ {
		if ts[i].Sub(ts[i-1]) > gapThreshold {
			total += minutesAtLeastOne(periodStart, periodEnd)
			periodStart = ts[i]
		}
		periodEnd = ts[i]
	}
	total += minutesAtLeastOne(periodStart, periodEnd)
	return total
}

func minutesAtLeastOne(start, end time.Time) int64 {
	m := int64(end.Sub(start).Minutes())
	if m < 1 {
		return 1
	}
	return m
}

func finalizeToolStats(tools map[string]*ToolUsageStats) []ToolUsageStats {
	out := make([]ToolUsageStats, 0, len(tools))
	for _, t := range tools {
		rate := 0.0
		if t.UsageCount > 0 {
			rate = float64(t.successCount) / float64(t.UsageCount)
		}
		t.SuccessRate = rate
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UsageCount > out[j].UsageCount })
	return out
}

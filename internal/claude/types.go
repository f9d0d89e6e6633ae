package claude

import "time"

// RawRecord is the decoded shape of one JSONL line in a session file.
// The schema is open: fields this struct doesn't name are ignored at
// this layer rather than rejected.
type RawRecord struct {
	Type         string          `json:"type"`
	UUID         string          `json:"uuid"`
	ParentUUID   string          `json:"parentUuid"`
	SessionID    string          `json:"sessionId"`
	Timestamp    string          `json:"timestamp"`
	IsSidechain  bool            `json:"isSidechain"`
	IsMeta       bool            `json:"isMeta"`
	LeafUUID     string          `json:"leafUuid"`
	Summary      string          `json:"summary"`
	Message      *RawMessage     `json:"message"`
	Usage        *TokenUsage     `json:"usage"`
	ToolUse      map[string]any  `json:"toolUse"`
	ToolUseResult map[string]any `json:"toolUseResult"`

	// rawLine holds the undecoded bytes of the line. decodeRecord sets
	// it; the counting phase probes its own line slice and does not use it.
	rawLine []byte `json:"-"`
}

// RawMessage is the nested `message` object carried on user/assistant
// records.
type RawMessage struct {
	Role       string      `json:"role"`
	Content    any         `json:"content"`
	ID         string      `json:"id"`
	Model      string      `json:"model"`
	StopReason string      `json:"stop_reason"`
	Usage      *TokenUsage `json:"usage"`
}

// TokenUsage mirrors the `usage` sub-object wherever it appears.
type TokenUsage struct {
	InputTokens              int64  `json:"input_tokens"`
	OutputTokens             int64  `json:"output_tokens"`
	CacheCreationInputTokens int64  `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64  `json:"cache_read_input_tokens"`
	ServiceTier              string `json:"service_tier"`
}

// Total sums the four token-distribution components.
func (t *TokenUsage) Total() int64 {
	if t == nil {
		return 0
	}
	return t.InputTokens + t.OutputTokens + t.CacheCreationInputTokens + t.CacheReadInputTokens
}

// Message is the normalized, higher-level record a caller sees from
// load_session_messages / paginate / search, derived from RawRecord per
// spec section 4.2.
type Message struct {
	UUID        string      `json:"uuid"`
	ParentUUID  string      `json:"parentUuid,omitempty"`
	SessionID   string      `json:"sessionId"`
	Type        string      `json:"type"`
	Role        string      `json:"role,omitempty"`
	Content     any         `json:"content,omitempty"`
	Model       string      `json:"model,omitempty"`
	StopReason  string      `json:"stop_reason,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	IsSidechain bool        `json:"isSidechain"`
	Usage       *TokenUsage `json:"usage,omitempty"`
	ToolUse     map[string]any `json:"toolUse,omitempty"`

	// LineNumber is the record's 0-based position in the file, used to
	// restore original order after parallel decode (spec section 5).
	LineNumber int `json:"-"`
}

// SessionSummary is the per-file rollup returned by the loader (spec
// section 3).
type SessionSummary struct {
	FilePath        string    `json:"file_path"`
	ProjectName     string    `json:"project_name"`
	ModTime         time.Time `json:"mod_time"`
	ActualSessionID string    `json:"actual_session_id"`
	FirstMessageTime time.Time `json:"first_message_time"`
	LastMessageTime  time.Time `json:"last_message_time"`
	MessageCount     int       `json:"message_count"`
	SidechainCount   int       `json:"sidechain_count"`
	HasToolUse       bool      `json:"has_tool_use"`
	HasErrors        bool      `json:"has_errors"`
	Summary          string    `json:"summary,omitempty"`
}

// IncrementalParseState carries the running accumulators threaded into
// a resumed (incremental) scan of a file that has only grown (spec
// section 4.3).
type IncrementalParseState struct {
	StartOffset      int64
	MessageCount     int
	SidechainCount   int
	LastTimestamp    *time.Time
	FirstTimestamp   *time.Time
	HasToolUse       bool
	HasErrors        bool
	ActualSessionID  string
	Summary          string
	FirstUserContent string
}

// SessionExtractionResult is what the extractor produces for one file,
// fresh or incremental.
type SessionExtractionResult struct {
	Session        SessionSummary
	SidechainCount int
	FinalByteOffset int64
	HasToolUse     bool
	HasErrors      bool
}

// CacheEntry is one file's row in the persistent per-project cache
// (spec section 3, section 4.4).
type CacheEntry struct {
	ModifiedTime   int64           `json:"modified_time"`
	FileSize       int64           `json:"file_size"`
	LastByteOffset int64           `json:"last_byte_offset"`
	Session        *SessionSummary `json:"session"`
	SidechainCount int             `json:"sidechain_count"`
	HasToolUse     bool            `json:"has_tool_use"`
	HasErrors      bool            `json:"has_errors"`
}

// CacheVersion is bumped whenever the on-disk cache shape changes in an
// incompatible way; a version mismatch invalidates the whole file.
const CacheVersion uint32 = 5

// Cache is the persistent per-project structure stored at
// `<project_dir>/.session_cache.json`.
type Cache struct {
	Version uint32                `json:"version"`
	Entries map[string]CacheEntry `json:"entries"`
}

// NewCache returns an empty, current-version cache.
func NewCache() *Cache {
	return &Cache{Version: CacheVersion, Entries: make(map[string]CacheEntry)}
}

// Page is the result of a paginated message request (spec section 4.6).
type Page struct {
	Messages   []Message `json:"messages"`
	TotalCount int       `json:"total_count"`
	HasMore    bool      `json:"has_more"`
	NextOffset int       `json:"next_offset"`
}

// GitWorktreeType classifies a decoded project directory's relationship
// to git (spec section 4.9).
type GitWorktreeType string

const (
	WorktreeMain   GitWorktreeType = "main"
	WorktreeLinked GitWorktreeType = "linked"
	WorktreeNotGit GitWorktreeType = "not_git"
)

// GitInfo is the structured worktree-detection result.
type GitInfo struct {
	WorktreeType    GitWorktreeType `json:"worktree_type"`
	MainProjectPath string          `json:"main_project_path,omitempty"`
}

// DecodedPath is the result of reversing the flattened project-path
// encoding (spec section 4.9). Confirmed is false when only the
// fixed-heuristic fallback applied, per the Open Question resolution in
// SPEC_FULL.md section 5, so callers can tell a path found on disk from
// a guess. The flag is reported, not enforced: the project handler still
// runs worktree detection on an unconfirmed path and returns Confirmed
// next to the result.
type DecodedPath struct {
	Path      string `json:"path"`
	Confirmed bool   `json:"confirmed"`
}

// systemExcludedTypes are record types excluded from message_count by
// both the loader and the counting phase (spec section 3, section 4.3).
var systemExcludedTypes = map[string]bool{
	"progress":             true,
	"queue-operation":      true,
	"file-history-snapshot": true,
	"system":               true,
}

package claude

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// decodeFailure is the diagnostic emitted when a line fails to parse as
// JSON (spec section 4.2): line number plus truncated content, never a
// fatal error.
type decodeFailure struct {
	LineNumber int
	Excerpt    string
}

func (d decodeFailure) String() string {
	return fmt.Sprintf("line %d: %s", d.LineNumber, d.Excerpt)
}

const maxDecodeExcerpt = 200

func truncateExcerpt(b []byte) string {
	if len(b) <= maxDecodeExcerpt {
		return string(b)
	}
	return string(b[:maxDecodeExcerpt])
}

// decodeRecord parses one line into a RawRecord. On failure it returns a
// decodeFailure describing the problem; the caller skips the line and
// continues (spec section 4.2, section 7).
func decodeRecord(lineNum int, line []byte) (*RawRecord, *decodeFailure) {
	var rec RawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, &decodeFailure{LineNumber: lineNum, Excerpt: truncateExcerpt(line)}
	}
	rec.rawLine = line
	return &rec, nil
}

// isValid reports whether a decoded record survives the filter in spec
// section 3: not a summary, not a system-excluded type, not meta, and
// carries a sessionId or a timestamp.
func (r *RawRecord) isValid() bool {
	if r.Type == "summary" {
		return false
	}
	if systemExcludedTypes[r.Type] {
		return false
	}
	if r.IsMeta {
		return false
	}
	return r.SessionID != "" || r.Timestamp != ""
}

// toMessage normalizes a valid RawRecord into the higher-level Message
// shape (spec section 4.2): propagating nested message.* fields,
// synthesizing a missing uuid, defaulting a missing sessionId/timestamp,
// and extracting an implicit tool_use block from message.content when no
// top-level toolUse is present.
func (r *RawRecord) toMessage(lineNum int) Message {
	m := Message{
		UUID:        r.UUID,
		ParentUUID:  r.ParentUUID,
		SessionID:   r.SessionID,
		Type:        r.Type,
		IsSidechain: r.IsSidechain,
		Usage:       r.Usage,
		ToolUse:     r.ToolUse,
		LineNumber:  lineNum,
	}

	if m.SessionID == "" {
		m.SessionID = "unknown-session"
	}

	if r.Message != nil {
		m.Role = r.Message.Role
		m.Content = r.Message.Content
		m.Model = r.Message.Model
		m.StopReason = r.Message.StopReason
		if m.Usage == nil {
			m.Usage = r.Message.Usage
		}
		if m.ToolUse == nil {
			m.ToolUse = extractImplicitToolUse(r.Message.Content)
		}
	}

	if m.UUID == "" {
		m.UUID = synthesizeUUID(lineNum)
	}

	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}
	m.Timestamp = ts

	return m
}

// synthesizeUUID names a record missing a uuid, per spec section 4.2:
// "{random}-line-{line_num+1}". The random component is drawn fresh on
// every call, so the same line gets a different name on each decode. It
// uses a short random hex token rather than a full uuid.New(), since the
// spec's wire format is "{random}-line-{N}", not a uuid literal.
func synthesizeUUID(lineNum int) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("%x-line-%d", b, lineNum+1)
}

// newRecordUUID returns a fresh uuid string from google/uuid, distinct
// from the per-line synthesis above. Nothing in this package calls it.
func newRecordUUID() string {
	return uuid.NewString()
}

// extractImplicitToolUse scans message.content (when it's an array) for
// an item whose type is "tool_use", returning it as the implicit toolUse
// block described in spec section 4.2.
func extractImplicitToolUse(content any) map[string]any {
	items, ok := content.([]any)
	if !ok {
		return nil
	}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := obj["type"].(string); t == "tool_use" {
			return obj
		}
	}
	return nil
}

// timestampLayouts lists the formats a record's timestamp may arrive in.
// The source guarantees RFC 3339 Zulu times, but historical files carry
// minor shape variants.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z",
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// isGenuineUserText reports whether s qualifies as "genuine user
// content" per spec section 4.3: non-empty, not beginning with '<', and
// not matching a small set of literal system-ish prefixes.
func isGenuineUserText(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "<") {
		return false
	}
	for _, prefix := range []string{"Session Cleared", "session cleared", "Caveat:", "Tool execution"} {
		if strings.HasPrefix(s, prefix) {
			return false
		}
	}
	return true
}

// truncateUserText truncates to 100 Unicode scalar values with an
// ellipsis, per spec section 4.3.
func truncateUserText(s string) string {
	runes := []rune(s)
	if len(runes) <= 100 {
		return s
	}
	return string(runes[:100]) + "..."
}

// extractUserText renders message.content as plain text for the
// genuine-user-text check: a plain string is used directly; an array of
// typed parts contributes its first "text"-typed item.
func extractUserText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := obj["type"].(string); t == "text" {
				if text, ok := obj["text"].(string); ok {
					return text
				}
			}
		}
	}
	return ""
}

// renderContentForSearch renders message.content for the search
// scanner's substring test (spec section 4.8): a string is used
// directly; anything else is JSON-re-serialized.
func renderContentForSearch(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	b, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	return string(b)
}

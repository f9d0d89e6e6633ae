package claude

import (
	"bytes"
	"encoding/json"
	"time"
)

// metadataPhaseLines bounds the full-decode head of a fresh scan (spec
// section 4.3): the metadata phase runs for at most this many lines, or
// until essential metadata is complete, whichever comes first.
const metadataPhaseLines = 100

// toolUseProbes and the stderr probe are the fast substring checks used
// in the counting phase and for incremental scans, in place of a full
// JSON decode (spec section 4.3).
var toolUseProbes = [][]byte{[]byte(`"toolUse"`), []byte(`"toolUseResult"`), []byte(`"tool_use"`)}

const stderrProbe = `"stderr"`
const emptyStderrProbe = `"stderr":""`

// minimalRecord is the cheap decode target for the counting phase:
// type, sessionId, timestamp, isSidechain, isMeta only.
type minimalRecord struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId"`
	Timestamp   string `json:"timestamp"`
	IsSidechain bool   `json:"isSidechain"`
	IsMeta      bool   `json:"isMeta"`
}

func decodeMinimal(line []byte, rec *minimalRecord) error {
	return json.Unmarshal(line, rec)
}

func (m minimalRecord) isValid() bool {
	if m.Type == "summary" || systemExcludedTypes[m.Type] || m.IsMeta {
		return false
	}
	return m.SessionID != "" || m.Timestamp != ""
}

// probeToolUseAndErrors applies the fast substring checks described in
// spec section 4.3 to one raw line.
func probeToolUseAndErrors(line []byte) (hasToolUse, hasError bool) {
	for _, probe := range toolUseProbes {
		if bytes.Contains(line, probe) {
			hasToolUse = true
			break
		}
	}
	if bytes.Contains(line, []byte(stderrProbe)) && !bytes.Contains(line, []byte(emptyStderrProbe)) {
		hasError = true
	}
	return
}

// extractionState is the mutable working state threaded through both
// phases and, on an incremental scan, seeded from the caller's
// IncrementalParseState.
type extractionState struct {
	messageCount     int
	sidechainCount   int
	actualSessionID  string
	firstTimestamp   *time.Time
	lastTimestamp    *time.Time
	summary          string
	firstUserContent string
	hasToolUse       bool
	hasErrors        bool
}

func (s *extractionState) essentialsComplete() bool {
	return s.actualSessionID != "" && s.firstTimestamp != nil &&
		(s.summary != "" || s.firstUserContent != "")
}

func (s *extractionState) observeTimestamp(t time.Time) {
	if s.firstTimestamp == nil || t.Before(*s.firstTimestamp) {
		tt := t
		s.firstTimestamp = &tt
	}
	if s.lastTimestamp == nil || t.After(*s.lastTimestamp) {
		tt := t
		s.lastTimestamp = &tt
	}
}

// ExtractSession runs the two-phase scan over path (spec section 4.3).
// When resume is nil this is a fresh parse: a full-decode metadata phase
// over the head of the file followed by a cheap counting phase over the
// remainder. When resume is non-nil, the metadata phase is skipped
// entirely and the counting phase alone runs starting at
// resume.StartOffset, threading the supplied running counters — this is
// the incremental path, valid only because the file is known to have
// only grown since resume was captured.
func ExtractSession(path string, resume *IncrementalParseState) (*SessionExtractionResult, error) {
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

	state := &extractionState{}
	var bytesRead int64

	if resume != nil {
		state.messageCount = resume.MessageCount
		state.sidechainCount = resume.SidechainCount
		state.actualSessionID = resume.ActualSessionID
		state.firstTimestamp = resume.FirstTimestamp
		state.lastTimestamp = resume.LastTimestamp
		state.summary = resume.Summary
		state.firstUserContent = resume.FirstUserContent
		state.hasToolUse = resume.HasToolUse
		state.hasErrors = resume.HasErrors

		// Skip ranges that lie before the resume offset.
		startLineIdx := 0
		for startLineIdx < len(ranges) && int64(ranges[startLineIdx].start) < resume.StartOffset {
			startLineIdx++
		}
		consumed := runCountingPhase(data, ranges[startLineIdx:], state)
		if consumed == 0 {
			bytesRead = resume.StartOffset
		} else {
			bytesRead = consumed
		}
	} else {
		metaEnd := runMetadataPhase(data, ranges, state)
		runCountingPhase(data, ranges[metaEnd:], state)
		bytesRead = fullParseByteOffset(ranges, len(data))
	}

	if state.messageCount == 0 && resume == nil {
		return &SessionExtractionResult{FinalByteOffset: bytesRead}, nil
	}

	if state.actualSessionID == "" {
		state.actualSessionID = "unknown-session"
	}

	summary := state.summary
	if summary == "" {
		summary = state.firstUserContent
	}

	var first, last time.Time
	if state.firstTimestamp != nil {
		first = *state.firstTimestamp
	}
	if state.lastTimestamp != nil {
		last = *state.lastTimestamp
	}

	info, statErr := mappedFileInfo(path)
	var modTime time.Time
	if statErr == nil {
		modTime = info.UTC()
	}

	result := SessionExtractionResult{
		Session: SessionSummary{
			FilePath:         path,
			ModTime:          modTime,
			ActualSessionID:  state.actualSessionID,
			FirstMessageTime: first,
			LastMessageTime:  last,
			MessageCount:     state.messageCount,
			SidechainCount:   state.sidechainCount,
			HasToolUse:       state.hasToolUse,
			HasErrors:        state.hasErrors,
			Summary:          summary,
		},
		SidechainCount:  state.sidechainCount,
		FinalByteOffset: bytesRead,
		HasToolUse:      state.hasToolUse,
		HasErrors:       state.hasErrors,
	}
	return &result, nil
}

// runMetadataPhase fully decodes lines from the head of the file until
// essential metadata is complete or metadataPhaseLines is reached,
// whichever comes first. Returns the index (into ranges) of the first
// line not consumed by this phase.
func runMetadataPhase(data []byte, ranges []lineRange, state *extractionState) int {
	limit := metadataPhaseLines
	if limit > len(ranges) {
		limit = len(ranges)
	}
	i := 0
	for ; i < limit; i++ {
		line := data[ranges[i].start:ranges[i].end]
		rec, failure := decodeRecord(i, line)
		if failure != nil {
			continue
		}
		observeRecordForMetadata(rec, i, state)
		if state.essentialsComplete() {
			i++
			break
		}
	}
	return i
}

// observeRecordForMetadata folds one fully-decoded record into state
// during the metadata phase: counts, session id, timestamps, summary,
// first genuine user text, and the tool-use/error flags (set via full
// structural inspection here, not the fast probes used later).
func observeRecordForMetadata(rec *RawRecord, lineNum int, state *extractionState) {
	if rec.Type == "summary" {
		if state.summary == "" && rec.Summary != "" {
			state.summary = rec.Summary
		}
		return
	}
	if !rec.isValid() {
		return
	}

	state.messageCount++
	if rec.IsSidechain {
		state.sidechainCount++
	}
	if state.actualSessionID == "" && rec.SessionID != "" {
		state.actualSessionID = rec.SessionID
	}
	if ts, err := parseTimestamp(rec.Timestamp); err == nil {
		state.observeTimestamp(ts)
	}

	if rec.Message != nil && rec.Message.Role == "user" && state.firstUserContent == "" {
		text := extractUserText(rec.Message.Content)
		if isGenuineUserText(text) {
			state.firstUserContent = truncateUserText(text)
		}
	}

	if !state.hasToolUse {
		if rec.ToolUse != nil {
			state.hasToolUse = true
		} else if rec.Message != nil {
			if items, ok := rec.Message.Content.([]any); ok {
				for _, item := range items {
					if obj, ok := item.(map[string]any); ok {
						if t, _ := obj["type"].(string); t == "tool_use" {
							state.hasToolUse = true
							break
						}
					}
				}
			}
		}
	}
	if !state.hasErrors && rec.ToolUseResult != nil {
		if isErr, ok := rec.ToolUseResult["is_error"].(bool); ok && isErr {
			state.hasErrors = true
		}
		if stderr, ok := rec.ToolUseResult["stderr"].(string); ok && stderr != "" {
			state.hasErrors = true
		}
	}
}

// runCountingPhase applies minimal decoding plus fast substring probes
// to the remaining lines (spec section 4.3). Summary records are not
// counted; the first one's text is kept if no summary is known yet. It
// returns the byte offset just past the last line it saw (past that
// line's newline when one follows, as fullParseByteOffset computes it),
// or 0 when ranges is empty.
func runCountingPhase(data []byte, ranges []lineRange, state *extractionState) int64 {
	var consumed int64
	for _, r := range ranges {
		line := data[r.start:r.end]
		consumed = int64(r.end)
		if r.end < len(data) {
			consumed++ // the newline this line was split on
		}

		var rec minimalRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Type == "summary" {
			if state.summary == "" {
				var s struct {
					Summary string `json:"summary"`
				}
				if json.Unmarshal(line, &s) == nil && s.Summary != "" {
					state.summary = s.Summary
				}
			}
			continue
		}
		if !rec.isValid() {
			continue
		}
		state.messageCount++
		if rec.IsSidechain {
			state.sidechainCount++
		}
		if state.actualSessionID == "" && rec.SessionID != "" {
			state.actualSessionID = rec.SessionID
		}
		if ts, err := parseTimestamp(rec.Timestamp); err == nil {
			state.observeTimestamp(ts)
		}
		hasToolUse, hasErr := probeToolUseAndErrors(line)
		if hasToolUse {
			state.hasToolUse = true
		}
		if hasErr {
			state.hasErrors = true
		}
	}
	return consumed
}

// fullParseByteOffset computes the final byte offset for a fresh,
// non-incremental parse as the offset just past the last non-empty line
// (past its newline when one follows), rather than simply the file size.
// runCountingPhase returns the same offset for the lines it sees, so the
// fresh and incremental paths agree, including on a final line with no
// trailing newline.
func fullParseByteOffset(ranges []lineRange, dataLen int) int64 {
	if len(ranges) == 0 {
		return 0
	}
	last := ranges[len(ranges)-1]
	if last.end >= dataLen {
		return int64(last.end)
	}
	return int64(last.end) + 1
}

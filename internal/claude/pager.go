package claude

import (
	"sort"
	"sync"
)

// validLineEntry records one valid, non-excluded record's position in
// the file during the pager's classification phase.
type validLineEntry struct {
	lineNum int
	start   int
	end     int
}

// Paginate implements spec section 4.6: chat-style reverse pagination
// over a single file's valid records. offset counts back from the
// newest valid message; offset == 0 returns the newest limit messages.
func Paginate(path string, offset, limit int, excludeSidechain bool) (*Page, error) {
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

	// Phase A: classification, parallel (spec section 4.6). Fast-
	// classify every line, honoring the sidechain filter, recording
	// valid lines in original order.
	valid := classifyValidLines(data, ranges, excludeSidechain)
	totalCount := len(valid)

	endIdx := totalCount - offset
	if endIdx <= 0 {
		return &Page{Messages: nil, TotalCount: totalCount, HasMore: false, NextOffset: offset}, nil
	}
	startIdx := endIdx - limit
	if startIdx < 0 {
		startIdx = 0
	}

	// Phase B: decode, parallel (spec section 4.6). Only the requested
	// window is fully decoded; original line order is restored after
	// the join.
	window := valid[startIdx:endIdx]
	messages := decodeWindow(data, window)
	sort.Slice(messages, func(i, j int) bool { return messages[i].LineNumber < messages[j].LineNumber })

	return &Page{
		Messages:   messages,
		TotalCount: totalCount,
		HasMore:    startIdx > 0,
		NextOffset: offset + len(messages),
	}, nil
}

// classifyValidLines performs the cheap per-line validity classification
// used by both the pager and get_session_message_count, honoring the
// sidechain exclusion filter at classification time. Ranges are split
// into contiguous chunks processed by a bounded worker pool (the same
// scanConcurrency fan-out loader.go uses per-file, applied here at
// per-line granularity within one file); chunks are emitted in order so
// no post-join sort is needed.
func classifyValidLines(data []byte, ranges []lineRange, excludeSidechain bool) []validLineEntry {
	chunks := chunkIndices(len(ranges), scanConcurrency())
	results := make([][]validLineEntry, len(chunks))

	var wg sync.WaitGroup
	for c, bounds := range chunks {
		wg.Add(1)
		go func(c, lo, hi int) {
			defer wg.Done()
			chunk := make([]validLineEntry, 0, hi-lo)
			for i := lo; i < hi; i++ {
				r := ranges[i]
				line := data[r.start:r.end]
				var rec minimalRecord
				if err := decodeMinimal(line, &rec); err != nil {
					continue
				}
				if !rec.isValid() {
					continue
				}
				if excludeSidechain && rec.IsSidechain {
					continue
				}
				chunk = append(chunk, validLineEntry{lineNum: i, start: r.start, end: r.end})
			}
			results[c] = chunk
		}(c, bounds[0], bounds[1])
	}
	wg.Wait()

	valid := make([]validLineEntry, 0, len(ranges))
	for _, chunk := range results {
		valid = append(valid, chunk...)
	}
	return valid
}

// decodeWindow fully decodes the given valid-line window in parallel,
// skipping any line that fails to decode. Order is not guaranteed on
// return; callers sort by LineNumber.
func decodeWindow(data []byte, window []validLineEntry) []Message {
	chunks := chunkIndices(len(window), scanConcurrency())
	results := make([][]Message, len(chunks))

	var wg sync.WaitGroup
	for c, bounds := range chunks {
		wg.Add(1)
		go func(c, lo, hi int) {
			defer wg.Done()
			chunk := make([]Message, 0, hi-lo)
			for i := lo; i < hi; i++ {
				v := window[i]
				line := data[v.start:v.end]
				rec, failure := decodeRecord(v.lineNum, line)
				if failure != nil {
					continue
				}
				chunk = append(chunk, rec.toMessage(v.lineNum))
			}
			results[c] = chunk
		}(c, bounds[0], bounds[1])
	}
	wg.Wait()

	messages := make([]Message, 0, len(window))
	for _, chunk := range results {
		messages = append(messages, chunk...)
	}
	return messages
}

// chunkIndices splits [0, n) into up to numChunks contiguous, roughly
// equal [lo, hi) bounds, never more chunks than elements and never
// fewer than one when n > 0.
func chunkIndices(n, numChunks int) [][2]int {
	if n == 0 {
		return nil
	}
	if numChunks > n {
		numChunks = n
	}
	if numChunks < 1 {
		numChunks = 1
	}
	size := (n + numChunks - 1) / numChunks
	bounds := make([][2]int, 0, numChunks)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		bounds = append(bounds, [2]int{lo, hi})
	}
	return bounds
}

// GetSessionMessageCount implements get_session_message_count: the
// number of valid records in file, honoring exclude_sidechain.
func GetSessionMessageCount(path string, excludeSidechain bool) (int, error) {
	mapped, err := openMapped(path)
	if err != nil {
		return 0, err
	}
	defer mapped.Close()
	data, err := mapped.Bytes()
	if err != nil {
		return 0, err
	}
	ranges := findLineRanges(data)
	return len(classifyValidLines(data, ranges, excludeSidechain)), nil
}

// LoadSessionMessages implements load_session_messages: every valid
// record in file, summaries excluded, in file order.
func LoadSessionMessages(path string) ([]Message, error) {
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

	messages := make([]Message, 0, len(ranges))
	for i, r := range ranges {
		line := data[r.start:r.end]
		rec, failure := decodeRecord(i, line)
		if failure != nil {
			continue
		}
		if !rec.isValid() {
			continue
		}
		messages = append(messages, rec.toMessage(i))
	}
	return messages, nil
}

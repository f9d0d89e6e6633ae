package claude

import (
	"sort"
	"strings"
	"sync"
)

// Search implements search_messages (spec section 4.8): walks every
// *.jsonl file under corpusRoot/projects/, matching only user/assistant
// records whose rendered content case-insensitively contains query.
// Results are returned in file-then-line order; no ranking or scoring.
func Search(corpusRoot, query string) ([]Message, error) {
	if query == "" {
		return nil, nil
	}
	projectDirs, err := discoverProjectDirs(corpusRoot)
	if err != nil {
		return nil, err
	}

	var allFiles []string
	for _, dir := range projectDirs {
		files, err := discoverSessionFiles(dir)
		if err != nil {
			continue
		}
		allFiles = append(allFiles, files...)
	}
	sort.Strings(allFiles)

	lowerQuery := strings.ToLower(query)
	results := make([][]Message, len(allFiles))
	sem := make(chan struct{}, scanConcurrency())
	var wg sync.WaitGroup

	for i, path := range allFiles {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = searchFile(path, lowerQuery)
		}(i, path)
	}
	wg.Wait()

	var matches []Message
	for _, fileMatches := range results {
		matches = append(matches, fileMatches...)
	}
	return matches, nil
}

func searchFile(path, lowerQuery string) []Message {
	mapped, err := openMapped(path)
	if err != nil {
		return nil
	}
	defer mapped.Close()
	data, err := mapped.Bytes()
	if err != nil {
		return nil
	}
	ranges := findLineRanges(data)

	var matches []Message
	for i, r := range ranges {
		line := data[r.start:r.end]
		rec, failure := decodeRecord(i, line)
		if failure != nil {
			continue
		}
		if rec.Type != "user" && rec.Type != "assistant" {
			continue
		}
		if !rec.isValid() {
			continue
		}
		var content any
		if rec.Message != nil {
			content = rec.Message.Content
		}
		rendered := renderContentForSearch(content)
		if strings.Contains(strings.ToLower(rendered), lowerQuery) {
			matches = append(matches, rec.toMessage(i))
		}
	}
	return matches
}

package claude

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// scanConcurrency bounds the worker pool used for per-file parallel
// dispatch, scaling with CPU count but clamped to a sane range — the
// same bounds yashas-salankimatt-sidecar's content_search_exec.go uses
// for its own per-session fan-out, reused here for the loader and the
// search scanner (spec section 5: "one task per file; no finer
// decomposition").
func scanConcurrency() int {
	n := runtime.NumCPU()
	if n < 4 {
		return 4
	}
	if n > 16 {
		return 16
	}
	return n
}

// discoverSessionFiles recursively lists every *.jsonl file under dir.
func discoverSessionFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// A single unreadable entry is skipped without being logged;
			// it does not stop the walk.
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

type fileJob struct {
	path     string
	strategy fileStrategy
	state    *IncrementalParseState
	cached   *CacheEntry
}

type fileJobResult struct {
	job    fileJob
	result *SessionExtractionResult
	err    error
}

// LoadProjectSessions implements spec section 4.5: enumerate every
// session file under projectDir, categorize each as cached/incremental/
// full-parse against the persisted cache, process the two non-cached
// categories with a bounded worker pool, merge, sort by conversation
// time, propagate summaries across files sharing an actual_session_id,
// and write the updated cache back before returning.
func LoadProjectSessions(projectDir string, excludeSidechain bool, logger *logrus.Logger) ([]SessionSummary, error) {
	projectName := filepath.Base(DecodeProjectPath(filepath.Base(projectDir)).Path)

	cache := LoadCache(projectDir, logger)

	paths, err := discoverSessionFiles(projectDir)
	if err != nil {
		return nil, err
	}

	jobs := make([]fileJob, 0, len(paths))
	for _, p := range paths {
		identity, statErr := statFile(p)
		if statErr != nil {
			if logger != nil {
				logger.WithError(statErr).WithField("file", p).Warn("skipping unreadable session file")
			}
			continue
		}
		var cachedEntry *CacheEntry
		if e, ok := cache.Entries[p]; ok {
			cachedEntry = &e
		}
		strategy, state := classifyFile(p, identity, cachedEntry)
		jobs = append(jobs, fileJob{path: p, strategy: strategy, state: state, cached: cachedEntry})
	}

	results := dispatchExtraction(jobs, logger)

	sessions := make([]SessionSummary, 0, len(jobs))
	cacheUpdated := false

	for _, r := range results {
		identity, statErr := statFile(r.job.path)

		switch r.job.strategy {
		case strategyUseCached:
			if r.job.cached == nil || r.job.cached.Session == nil {
				continue
			}
			session := *r.job.cached.Session
			session.ProjectName = projectName
			if excludeSidechain {
				session.MessageCount -= r.job.cached.SidechainCount
				if session.MessageCount <= 0 {
					continue
				}
			}
			sessions = append(sessions, session)

		case strategyIncremental, strategyFullParse:
			if r.err != nil {
				if logger != nil {
					logger.WithError(r.err).WithField("file", r.job.path).Warn("failed to parse session file")
				}
				continue
			}
			var mtime int64
			var size int64
			if statErr == nil {
				mtime = identity.ModTime.Unix()
				size = identity.Size
			}

			entry := CacheEntry{
				ModifiedTime:   mtime,
				FileSize:       size,
				LastByteOffset: r.result.FinalByteOffset,
				SidechainCount: r.result.SidechainCount,
				HasToolUse:     r.result.HasToolUse,
				HasErrors:      r.result.HasErrors,
			}
			if r.result.Session.ActualSessionID != "" {
				s := r.result.Session
				entry.Session = &s
			}
			cache.Entries[r.job.path] = entry
			cacheUpdated = true

			if entry.Session == nil {
				continue
			}
			session := *entry.Session
			session.ProjectName = projectName
			if excludeSidechain {
				session.MessageCount -= r.result.SidechainCount
				if session.MessageCount <= 0 {
					continue
				}
			}
			sessions = append(sessions, session)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].LastMessageTime.Equal(sessions[j].LastMessageTime) {
			return sessions[i].FilePath < sessions[j].FilePath
		}
		return sessions[i].LastMessageTime.After(sessions[j].LastMessageTime)
	})

	propagateSummaries(sessions)

	if cacheUpdated {
		SaveCache(projectDir, cache, logger)
	}

	return sessions, nil
}

// dispatchExtraction runs the incremental/full-parse jobs through a
// bounded worker pool; cached jobs pass through untouched. There is no
// shared mutable state during this phase (spec section 4.5, section 5)
// — each goroutine writes only to its own result slot.
func dispatchExtraction(jobs []fileJob, logger *logrus.Logger) []fileJobResult {
	results := make([]fileJobResult, len(jobs))
	sem := make(chan struct{}, scanConcurrency())
	var wg sync.WaitGroup

	for i, job := range jobs {
		if job.strategy == strategyUseCached {
			results[i] = fileJobResult{job: job}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, job fileJob) {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := ExtractSession(job.path, job.state)
			results[i] = fileJobResult{job: job, result: res, err: err}
		}(i, job)
	}
	wg.Wait()
	return results
}

// propagateSummaries implements spec section 4.5 step 2: build a map
// from actual_session_id to the first non-empty summary seen, then fill
// in that summary on any session sharing the id that lacks one.
// Applying this twice is a no-op (idempotent): after the first pass
// every session whose id has a known summary already carries one, so a
// second pass finds no empty summary it can fill.
func propagateSummaries(sessions []SessionSummary) {
	bySessionID := make(map[string]string)
	for _, s := range sessions {
		if s.Summary != "" {
			if _, ok := bySessionID[s.ActualSessionID]; !ok {
				bySessionID[s.ActualSessionID] = s.Summary
			}
		}
	}
	for i := range sessions {
		if sessions[i].Summary == "" {
			if summary, ok := bySessionID[sessions[i].ActualSessionID]; ok {
				sessions[i].Summary = summary
			}
		}
	}
}

package claude

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// cacheFileName is the disposable per-project cache file (spec section
// 4.4, section 6). The engine must function correctly whether or not
// this file exists or parses.
const cacheFileName = ".session_cache.json"

func cachePath(projectDir string) string {
	return filepath.Join(projectDir, cacheFileName)
}

// LoadCache reads the cache for projectDir with best-effort semantics:
// a missing, unreadable, unparsable, or version-mismatched file yields
// an empty cache rather than an error, per spec section 4.4 and section
// 7 ("cache faults ... no error surfaced").
func LoadCache(projectDir string, logger *logrus.Logger) *Cache {
	data, err := os.ReadFile(cachePath(projectDir))
	if err != nil {
		return NewCache()
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		if logger != nil {
			logger.WithError(err).WithField("project", projectDir).Debug("session cache unparsable, starting fresh")
		}
		return NewCache()
	}
	if c.Version != CacheVersion {
		return NewCache()
	}
	if c.Entries == nil {
		c.Entries = make(map[string]CacheEntry)
	}
	return &c
}

// SaveCache writes the cache for projectDir. Failures are logged and
// swallowed, never surfaced to the caller (spec section 4.4, section 7).
func SaveCache(projectDir string, cache *Cache, logger *logrus.Logger) {
	cache.Version = CacheVersion
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		if logger != nil {
			logger.WithError(err).WithField("project", projectDir).Warn("failed to marshal session cache")
		}
		return
	}
	if err := os.WriteFile(cachePath(projectDir), data, 0o644); err != nil {
		if logger != nil {
			logger.WithError(err).WithField("project", projectDir).Warn("failed to write session cache")
		}
	}
}

// fileStrategy is the three-way categorization spec section 4.4/4.5
// assigns to each file ahead of parallel dispatch.
type fileStrategy int

const (
	strategyUseCached fileStrategy = iota
	strategyIncremental
	strategyFullParse
)

// classifyFile decides how path should be processed given its current
// on-disk identity and (if present) its cache entry.
func classifyFile(path string, identity fileIdentity, cached *CacheEntry) (fileStrategy, *IncrementalParseState) {
	if cached == nil {
		return strategyFullParse, nil
	}
	if identity.Size == cached.FileSize && identity.ModTime.Unix() == cached.ModifiedTime {
		return strategyUseCached, nil
	}
	if identity.Size > cached.FileSize && cached.Session != nil {
		session := cached.Session
		lastTS := session.LastMessageTime
		firstTS := session.FirstMessageTime
		state := &IncrementalParseState{
			StartOffset:      cached.LastByteOffset,
			MessageCount:     session.MessageCount,
			SidechainCount:   cached.SidechainCount,
			LastTimestamp:    &lastTS,
			FirstTimestamp:   &firstTS,
			HasToolUse:       cached.HasToolUse,
			HasErrors:        cached.HasErrors,
			ActualSessionID:  session.ActualSessionID,
			Summary:          session.Summary,
			FirstUserContent: session.Summary,
		}
		return strategyIncremental, state
	}
	// Shrank, modified in place without growth, or grew with no cached
	// session to resume from: fully reparse.
	return strategyFullParse, nil
}

package claude

import (
	"os"
	"time"
)

// fileIdentity is the (modTime, size) pair the cache uses to decide
// whether a file is unchanged, has grown, or must be fully reparsed
// (spec section 4.4).
type fileIdentity struct {
	ModTime time.Time
	Size    int64
}

func statFile(path string) (fileIdentity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileIdentity{}, err
	}
	return fileIdentity{ModTime: info.ModTime(), Size: info.Size()}, nil
}

// mappedFileInfo returns just the modification time, used by the
// extractor to stamp a freshly parsed SessionSummary.
func mappedFileInfo(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

package claude

import (
	"os"
	"strings"
)

// DecodeProjectPath reverses the flattened project-path encoding (spec
// section 4.9): encoded is the directory name under
// <home>/.claude/projects/, which starts with '-' and has path
// separators replaced by '-'. Because project directory names may
// themselves contain '-', decoding is ambiguous; this probes the
// filesystem to disambiguate, falling back to a fixed heuristic only
// when no on-disk candidate exists — and marking that fallback
// unconfirmed, per the Open Question resolution in SPEC_FULL.md section
// 5 ("do not silently guess").
func DecodeProjectPath(encoded string) DecodedPath {
	if !strings.HasPrefix(encoded, "-") {
		return DecodedPath{Path: encoded, Confirmed: false}
	}
	segments := strings.Split(strings.TrimPrefix(encoded, "-"), "-")

	for i := 1; i <= len(segments); i++ {
		prefix := "/" + strings.Join(segments[:i], "/")
		if !pathExists(prefix) {
			continue
		}
		if i == len(segments) {
			return DecodedPath{Path: prefix, Confirmed: true}
		}
		suffix := strings.Join(segments[i:], "-")
		candidate := prefix + "/" + suffix
		if pathExists(candidate) {
			return DecodedPath{Path: candidate, Confirmed: true}
		}
	}

	return DecodedPath{Path: fallbackDecode(encoded), Confirmed: false}
}

// fallbackDecode implements the fixed heuristic from spec section 4.9
// step 3: split the encoded segment into at most 4 parts on '-'
// (mirroring the leading '-' producing an empty first part) and emit
// /<p1>/<p2>/<rest>, where <rest> retains any remaining hyphens verbatim.
func fallbackDecode(encoded string) string {
	parts := strings.SplitN(encoded, "-", 4)
	switch len(parts) {
	case 4:
		return "/" + parts[1] + "/" + parts[2] + "/" + parts[3]
	default:
		return encoded
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DetectWorktree implements the worktree classification in spec section
// 4.9: inspect projectPath/.git to tell a main checkout from a linked
// worktree or a non-git directory.
func DetectWorktree(projectPath string) GitInfo {
	gitPath := projectPath + "/.git"
	info, err := os.Stat(gitPath)
	if err != nil {
		return GitInfo{WorktreeType: WorktreeNotGit}
	}
	if info.IsDir() {
		return GitInfo{WorktreeType: WorktreeMain}
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return GitInfo{WorktreeType: WorktreeNotGit}
	}
	line := strings.TrimSpace(string(content))
	const prefix = "gitdir: "
	if !strings.HasPrefix(line, prefix) {
		return GitInfo{WorktreeType: WorktreeNotGit}
	}
	gitdir := strings.TrimPrefix(line, prefix)
	const marker = "/.git/worktrees/"
	idx := strings.Index(gitdir, marker)
	if idx < 0 {
		return GitInfo{WorktreeType: WorktreeNotGit}
	}
	mainProjectPath := gitdir[:idx]
	return GitInfo{WorktreeType: WorktreeLinked, MainProjectPath: mainProjectPath}
}

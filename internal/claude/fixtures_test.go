package claude

import (
	"os"
	"path/filepath"
	"testing"
)

// writeSJSONL materializes the five-line worked example from spec
// section 8 into dir/S.jsonl and returns its path.
func writeSJSONL(t *testing.T, dir string) string {
	t.Helper()
	content := `{"type":"user","uuid":"u1","sessionId":"S","timestamp":"2025-01-01T10:00:00Z","message":{"role":"user","content":"Hello"}}
{"type":"assistant","uuid":"a1","sessionId":"S","timestamp":"2025-01-01T10:00:01Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"Read","input":{}}],"usage":{"input_tokens":100,"output_tokens":50}}}
{"type":"user","uuid":"u2","sessionId":"S","timestamp":"2025-01-01T10:00:02Z","isSidechain":true,"message":{"role":"user","content":"Side"}}
{"type":"progress","data":"..."}
{"type":"summary","summary":"Greeting and tool use","leafUuid":"a1"}
`
	path := filepath.Join(dir, "S.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

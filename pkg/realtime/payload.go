package realtime

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// fencedJSON matches the first ```json fenced block in assistant text.
var fencedJSON = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```")

// ExtractPayload scans assistant text for a fenced JSON block carrying a
// structured payload. The boolean reports whether a fence was found at all;
// a found-but-unparseable fence yields a non-nil error. Only the first fence
// is considered; subsequent blocks in the same text are ignored.
func ExtractPayload(text string) (map[string]any, bool, error) {
	m := fencedJSON.FindStringSubmatch(text)
	if m == nil {
		return nil, false, nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
		return nil, true, fmt.Errorf("realtime: parse fenced payload: %w", err)
	}
	return payload, true, nil
}

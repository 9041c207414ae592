package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

// editArgs probes a tool call's raw input for the before/after text an edit
// tool reports. Agents are free to name these fields however they like since
// rawInput is opaque; the common spellings seen across agents are tried in
// order.
type editArgs struct {
	Path string
	Old  string
	New  string
}

func probeEditArgs(raw json.RawMessage) (editArgs, bool) {
	if len(raw) == 0 {
		return editArgs{}, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return editArgs{}, false
	}

	oldText, ok1 := firstString(m, "oldText", "old_text", "old_string", "before")
	newText, ok2 := firstString(m, "newText", "new_text", "new_string", "after")
	if !ok1 || !ok2 {
		return editArgs{}, false
	}
	path, _ := firstString(m, "path", "file_path", "filePath")
	return editArgs{Path: path, Old: oldText, New: newText}, true
}

func firstString(m map[string]json.RawMessage, keys ...string) (string, bool) {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	}
	return "", false
}

// renderUnifiedDiff renders a's..b's differences as a compact unified diff,
// styled line by line. Returns an empty string when the two texts are
// identical or the diff produces no hunks.
func renderUnifiedDiff(path, before, after string) string {
	if before != "" && !strings.HasSuffix(before, "\n") {
		before += "\n"
	}
	if after != "" && !strings.HasSuffix(after, "\n") {
		after += "\n"
	}

	edits := udiff.Strings(before, after)
	if len(edits) == 0 {
		return ""
	}

	unified, err := udiff.ToUnifiedDiff(path, path, before, edits, 2)
	if err != nil || len(unified.Hunks) == 0 {
		return ""
	}

	var b strings.Builder
	for _, h := range unified.Hunks {
		b.WriteString(styleDiffHunk.Render(fmt.Sprintf("  @@ -%d +%d @@", h.FromLine, h.ToLine)))
		b.WriteString("\n")
		for _, l := range h.Lines {
			text := strings.TrimRight(l.Content, "\n")
			switch l.Kind {
			case udiff.Delete:
				b.WriteString(styleDiffDel.Render("  - " + text))
			case udiff.Insert:
				b.WriteString(styleDiffAdd.Render("  + " + text))
			default:
				b.WriteString("    " + text)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

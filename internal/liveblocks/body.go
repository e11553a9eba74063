package liveblocks

import (
	"encoding/json"
	"strings"
)

// bodyDocument mirrors the shape of the rich-text comment body far enough
// to flatten it. Anything unrecognized is skipped, never an error.
type bodyDocument struct {
	Content []bodyBlock `json:"content"`
}

type bodyBlock struct {
	Children []bodyInline `json:"children"`
}

type bodyInline struct {
	Type string `json:"type"`
	Text string `json:"text"`
	ID   string `json:"id"`
	URL  string `json:"url"`
}

// PlainText flattens a rich-text comment body into a single plain-text
// string for notifications and audit logs. Mentions render as "@<userId>",
// paragraphs join with newlines. A body that does not parse flattens to "".
func PlainText(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}

	var doc bodyDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}

	var paragraphs []string
	for _, block := range doc.Content {
		var sb strings.Builder
		for _, inline := range block.Children {
			switch inline.Type {
			case "mention":
				sb.WriteString("@" + inline.ID)
			case "link":
				sb.WriteString(inline.URL)
			default:
				sb.WriteString(inline.Text)
			}
		}
		if sb.Len() > 0 {
			paragraphs = append(paragraphs, sb.String())
		}
	}

	return strings.Join(paragraphs, "\n")
}

package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

type generationPayload struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type nestedPayload struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// parseGenerationPayload extracts generated prose from the agent payload.
// The agent sometimes nests the real result under a data envelope, so both
// shapes are accepted. A payload without prose is a hard failure that names
// the missing field rather than surfacing a raw decode error.
func parseGenerationPayload(raw json.RawMessage) (string, map[string]any, error) {
	if len(raw) == 0 {
		return "", nil, fmt.Errorf("agent response missing content field")
	}

	var nested nestedPayload
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Success != nil {
		if len(nested.Data) == 0 {
			return "", nil, fmt.Errorf("agent response missing nested data field")
		}
		raw = nested.Data
	}

	var payload generationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", nil, fmt.Errorf("malformed agent response: %v", err)
	}
	if strings.TrimSpace(payload.Content) == "" {
		return "", nil, fmt.Errorf("agent response missing content field")
	}
	return payload.Content, payload.Metadata, nil
}

// splitChapterContent peels an optional "Title: ..." leader off generated
// chapter prose. Without one the chapter falls back to its number.
func splitChapterContent(content string, chapterNumber int) (title, body string) {
	title = fmt.Sprintf("Chapter %d", chapterNumber)
	body = content

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(trimmed), "title:") {
			break
		}
		if extracted := strings.TrimSpace(trimmed[len("title:"):]); extracted != "" {
			title = normalizeTitle(extracted)
		}
		body = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		break
	}
	return title, body
}

// normalizeTitle fixes generation quirks where the whole title arrives in a
// single letter case.
func normalizeTitle(title string) string {
	if title == strings.ToLower(title) || title == strings.ToUpper(title) {
		return titleCaser.String(strings.ToLower(title))
	}
	return title
}

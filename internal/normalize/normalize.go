// Package normalize coerces client-supplied chat history into the strict
// {role, content} sequence accepted by the upstream providers.
//
// Normalization never fails. Records that are not JSON objects are dropped,
// unknown roles fall back to the user role and empty content is replaced by
// Placeholder, so a single bad turn never costs the caller the whole request.
package normalize

import (
	"encoding/json"
	"strings"

	"kopiloka-assistant/internal/domain"
)

// Placeholder replaces content that would otherwise be empty.
const Placeholder = "."

// DefaultRole is assigned to every record whose role is not user or assistant.
// Client-supplied system turns are deliberately downgraded: the only system
// instruction the upstream sees is the one the relay attaches.
const DefaultRole = domain.RoleUser

const segmentTypeText = "text"

// NormalizeJSON decodes raw as a JSON array and normalizes its elements.
// Anything that is not an array yields an empty, non-nil slice.
func NormalizeJSON(raw json.RawMessage) []domain.ChatMessage {
	var records []any
	if err := json.Unmarshal(raw, &records); err != nil {
		return []domain.ChatMessage{}
	}
	return Normalize(records)
}

// Normalize converts decoded JSON records into chat turns, preserving order.
func Normalize(records []any) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(records))
	for _, rec := range records {
		obj, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, domain.ChatMessage{
			Role:    Role(obj["role"]),
			Content: Content(obj["content"]),
		})
	}
	return out
}

// Messages re-normalizes already typed turns. Applying it to the output of
// Normalize is a no-op.
func Messages(msgs []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = domain.ChatMessage{
			Role:    Role(m.Role),
			Content: Content(m.Content),
		}
	}
	return out
}

// Role maps v onto one of the two conversational roles.
func Role(v any) string {
	s, _ := v.(string)
	switch s {
	case domain.RoleUser, domain.RoleAssistant:
		return s
	default:
		return DefaultRole
	}
}

// Content extracts plain text from v. Strings are kept verbatim, segment
// lists contribute only their text segments joined by a single space, and
// any other shape is treated as empty.
func Content(v any) string {
	var text string
	switch c := v.(type) {
	case string:
		text = c
	case []any:
		text = joinTextSegments(c)
	}
	if strings.TrimSpace(text) == "" {
		return Placeholder
	}
	return text
}

func joinTextSegments(segments []any) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		m, ok := seg.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := m["type"].(string); t != segmentTypeText {
			continue
		}
		text, ok := m["text"].(string)
		if !ok {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

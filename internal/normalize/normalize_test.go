package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"kopiloka-assistant/internal/domain"
)

func decode(t *testing.T, raw string) []any {
	t.Helper()
	var v []any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestNormalize_WellFormedPassesThrough(t *testing.T) {
	got := Normalize(decode(t, `[
		{"role":"user","content":"Recommend a beginner coffee"},
		{"role":"assistant","content":"Try Kintamani."}
	]`))
	require.Equal(t, []domain.ChatMessage{
		{Role: "user", Content: "Recommend a beginner coffee"},
		{Role: "assistant", Content: "Try Kintamani."},
	}, got)
}

func TestNormalize_MultimodalContent(t *testing.T) {
	got := Normalize(decode(t, `[{"role":"user","content":[
		{"type":"text","text":"Hello"},
		{"type":"image","url":"https://example.com/beans.jpg"}
	]}]`))
	require.Len(t, got, 1)
	require.Equal(t, "Hello", got[0].Content)
}

func TestNormalize_JoinsTextSegmentsWithSpace(t *testing.T) {
	got := Normalize(decode(t, `[{"role":"user","content":[
		{"type":"text","text":"Kopi"},
		{"type":"image_url","image_url":{"url":"x"}},
		{"type":"text","text":"Gayo"},
		{"type":"text","text":42},
		"loose string",
		{"text":"untyped"}
	]}]`))
	require.Equal(t, "Kopi Gayo", got[0].Content)
}

func TestNormalize_EmptyContentGetsPlaceholder(t *testing.T) {
	cases := map[string]string{
		"empty string":       `[{"role":"user","content":""}]`,
		"whitespace":         `[{"role":"user","content":"  \n\t "}]`,
		"null":               `[{"role":"user","content":null}]`,
		"missing":            `[{"role":"user"}]`,
		"empty segment list": `[{"role":"user","content":[]}]`,
		"only images":        `[{"role":"user","content":[{"type":"image","url":"x"}]}]`,
		"number":             `[{"role":"user","content":7}]`,
		"object":             `[{"role":"user","content":{"text":"hi"}}]`,
		"blank text segment": `[{"role":"user","content":[{"type":"text","text":"  "}]}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got := Normalize(decode(t, raw))
			require.Len(t, got, 1)
			require.Equal(t, Placeholder, got[0].Content)
		})
	}
}

func TestNormalize_RoleCoercion(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`{"role":"user","content":"x"}`, "user"},
		{`{"role":"assistant","content":"x"}`, "assistant"},
		{`{"role":"tool","content":"x"}`, "user"},
		{`{"role":"system","content":"x"}`, "user"},
		{`{"role":"model","content":"x"}`, "user"},
		{`{"role":"ASSISTANT","content":"x"}`, "user"},
		{`{"role":3,"content":"x"}`, "user"},
		{`{"content":"x"}`, "user"},
	}
	for _, tc := range cases {
		got := Normalize(decode(t, "["+tc.raw+"]"))
		require.Len(t, got, 1, tc.raw)
		require.Equal(t, tc.want, got[0].Role, tc.raw)
	}
}

func TestNormalize_DropsNonObjectEntries(t *testing.T) {
	got := Normalize(decode(t, `[null, "hi", 4, [], {"role":"user","content":"kept"}, true]`))
	require.Equal(t, []domain.ChatMessage{{Role: "user", Content: "kept"}}, got)
}

func TestNormalize_EmptyAndNilInput(t *testing.T) {
	require.Empty(t, Normalize(nil))
	require.NotNil(t, Normalize(nil))
	require.Empty(t, Normalize([]any{}))
}

func TestNormalize_ExtraFieldsDoNotLeak(t *testing.T) {
	got := Normalize(decode(t, `[{"id":"msg_1","timestamp":"2024-01-01T00:00:00Z","role":"user","content":"hi","name":"budi"}]`))
	raw, err := json.Marshal(got)
	require.NoError(t, err)

	var objs []map[string]any
	require.NoError(t, json.Unmarshal(raw, &objs))
	require.Len(t, objs, 1)
	require.Len(t, objs[0], 2)
	require.Contains(t, objs[0], "role")
	require.Contains(t, objs[0], "content")
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		`[]`,
		`[{"role":"tool","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}]`,
		`[{"role":"user","content":"  padded  "},{"role":"assistant","content":""},{"role":"system"}]`,
		`[1, {"role":"assistant","content":[{"type":"image"}]}]`,
	}
	for _, raw := range inputs {
		once := Normalize(decode(t, raw))

		encoded, err := json.Marshal(once)
		require.NoError(t, err)
		twice := NormalizeJSON(encoded)
		require.Equal(t, once, twice, raw)
		require.Equal(t, once, Messages(once), raw)
	}
}

func TestNormalizeJSON_NonArray(t *testing.T) {
	for _, raw := range []string{``, `null`, `{}`, `"hello"`, `12`, `{broken`} {
		got := NormalizeJSON(json.RawMessage(raw))
		require.NotNil(t, got, raw)
		require.Empty(t, got, raw)
	}
}

func TestMessages_RepairsTypedTurns(t *testing.T) {
	got := Messages([]domain.ChatMessage{
		{Role: "system", Content: "be nice"},
		{Role: "assistant", Content: " "},
	})
	require.Equal(t, []domain.ChatMessage{
		{Role: "user", Content: "be nice"},
		{Role: "assistant", Content: Placeholder},
	}, got)
}

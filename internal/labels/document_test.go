package labels

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalize_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.SliceOf(rapid.SampledFrom([]string{
			"Prod", " Prod", "Prod ", "Dev", "", "  ", "Staging", "dev",
		})).Draw(t, "input")

		got := Normalize(input)

		if !slices.IsSorted(got) {
			t.Fatalf("not sorted: %q", got)
		}
		seen := make(map[string]bool)
		for _, l := range got {
			if l == "" || l != strings.TrimSpace(l) {
				t.Fatalf("entry not trimmed or empty: %q", l)
			}
			if seen[l] {
				t.Fatalf("duplicate entry %q in %q", l, got)
			}
			seen[l] = true
		}
		for _, l := range input {
			if trimmed := strings.TrimSpace(l); trimmed != "" && !seen[trimmed] {
				t.Fatalf("input %q lost from %q", l, got)
			}
		}
		if !slices.Equal(got, Normalize(got)) {
			t.Fatalf("Normalize is not idempotent on %q", got)
		}
	})
}

func TestValidate_AcceptedLabelsAreTrimmedAndClean(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.String().Draw(t, "raw")

		label, err := Validate(raw)
		if err != nil {
			return
		}
		if label != strings.TrimSpace(raw) {
			t.Fatalf("Validate(%q) = %q, want trimmed input", raw, label)
		}
		if strings.ContainsAny(label, forbiddenChars) {
			t.Fatalf("accepted label %q contains a forbidden character", label)
		}
		if label == "" {
			t.Fatalf("accepted empty label for %q", raw)
		}
	})
}

func TestDecodeDocument(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantShape fileShape
		wantList  []string
	}{
		{name: "current", input: `{"labels":["A","B"],"version":"1.0"}`, wantShape: shapeCurrent, wantList: []string{"A", "B"}},
		{name: "legacy array", input: `["A", 3, "B"]`, wantShape: shapeLegacy, wantList: []string{"A", "B"}},
		{name: "missing labels key", input: `{"version":"1.0"}`, wantShape: shapeCurrent, wantList: []string{}},
		{name: "truncated", input: `{"labels":[`, wantShape: shapeCorrupt},
		{name: "scalar", input: `42`, wantShape: shapeCorrupt},
		{name: "empty", input: "  ", wantShape: shapeCorrupt},
		{name: "labels not a list", input: `{"labels":"A"}`, wantShape: shapeCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, shape := decodeDocument([]byte(tt.input))
			assert.Equal(t, tt.wantShape, shape, "shape %s", shape)
			if tt.wantShape != shapeCorrupt {
				assert.Equal(t, tt.wantList, doc.Labels)
				assert.Equal(t, FormatVersion, doc.Version)
			}
		})
	}
}

func TestTimestamp_JSON(t *testing.T) {
	ts := Timestamp{time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)}
	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-01T09:30:00Z"`, string(data))

	data, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var got Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-05-01 09:30:00"`), &got))
	assert.True(t, got.Equal(ts.Time))

	require.NoError(t, json.Unmarshal([]byte(`12`), &got))
	assert.True(t, got.IsZero())
}

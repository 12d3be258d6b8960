package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAnalysis_ScoreClamp(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want int
	}{
		{"in range", float64(73), 73},
		{"above", float64(140), 100},
		{"below", float64(-12), 0},
		{"fractional", 88.9, 88},
		{"numeric string", "65", 65},
		{"non numeric string", "excellent", 0},
		{"missing", nil, 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]interface{}{}
			if tt.raw != nil {
				raw["score"] = tt.raw
			}
			got := NormalizeAnalysis(raw)
			assert.Equal(t, tt.want, got.Score)
			assert.GreaterOrEqual(t, got.Score, 0)
			assert.LessOrEqual(t, got.Score, 100)
		})
	}
}

func TestNormalizeAnalysis_PadsLists(t *testing.T) {
	got := NormalizeAnalysis(map[string]interface{}{
		"score":     float64(50),
		"positives": []interface{}{"Go", "SQL"},
		"negatives": []interface{}{},
	})

	assert.Equal(t, [PositiveCount]string{"Go", "SQL", missingPositive, missingPositive}, got.Positives)
	assert.Equal(t, [NegativeCount]string{missingNegative, missingNegative, missingNegative}, got.Negatives)
	assert.Equal(t, missingSummary, got.Summary)
}

func TestNormalizeAnalysis_TruncatesLists(t *testing.T) {
	got := NormalizeAnalysis(map[string]interface{}{
		"summary":   "  Strong backend profile.  ",
		"positives": []interface{}{"a", "b", "c", "d", "e", "f"},
		"negatives": []interface{}{"x", "y", "z", "w"},
	})

	assert.Equal(t, [PositiveCount]string{"a", "b", "c", "d"}, got.Positives)
	assert.Equal(t, [NegativeCount]string{"x", "y", "z"}, got.Negatives)
	assert.Equal(t, "Strong backend profile.", got.Summary)
}

func TestNormalizeAnalysis_WrongShapes(t *testing.T) {
	got := NormalizeAnalysis(map[string]interface{}{
		"score":     map[string]interface{}{"value": 90},
		"summary":   42,
		"positives": "not a list",
		"negatives": []interface{}{float64(3), nil, "ok"},
	})

	assert.Equal(t, 0, got.Score)
	assert.Equal(t, missingSummary, got.Summary)
	assert.Equal(t, missingPositive, got.Positives[0])
	assert.Equal(t, [NegativeCount]string{"3", "ok", missingNegative}, got.Negatives)
}

func TestTruncate(t *testing.T) {
	t.Run("short text untouched", func(t *testing.T) {
		got, cut := Truncate("hello world", 100)
		assert.False(t, cut)
		assert.Equal(t, "hello world", got)
	})

	t.Run("cuts at whitespace in last fifth", func(t *testing.T) {
		text := strings.Repeat("a", 85) + " " + strings.Repeat("b", 50)
		got, cut := Truncate(text, 100)
		require.True(t, cut)
		assert.Equal(t, strings.Repeat("a", 85)+TruncationMarker, got)
	})

	t.Run("hard cut without whitespace", func(t *testing.T) {
		text := strings.Repeat("a", 50) + " " + strings.Repeat("b", 200)
		got, cut := Truncate(text, 100)
		require.True(t, cut)
		body := strings.TrimSuffix(got, TruncationMarker)
		assert.Equal(t, 100, utf8.RuneCountInString(body))
	})

	t.Run("counts runes", func(t *testing.T) {
		text := strings.Repeat("é", 120)
		got, cut := Truncate(text, 100)
		require.True(t, cut)
		body := strings.TrimSuffix(got, TruncationMarker)
		assert.Equal(t, 100, utf8.RuneCountInString(body))
		assert.True(t, utf8.ValidString(got))
	})
}

func TestAnalysisCacheKey(t *testing.T) {
	k1 := AnalysisCacheKey("job", "cv")
	k2 := AnalysisCacheKey("job", "cv")
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)

	assert.NotEqual(t, k1, AnalysisCacheKey("job", "cv2"))
	assert.NotEqual(t, k1, AnalysisCacheKey("job2", "cv"))
}

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

const (
	PositiveCount = 4
	NegativeCount = 3

	MaxCVChars  = 4000
	MaxJobChars = 2000

	TruncationMarker = "\n[... truncated]"

	missingPositive = "Positive point not provided"
	missingNegative = "Area for improvement not provided"
	missingSummary  = "Analysis completed"
)

// AnalysisResult is the normalised outcome of scoring a CV against a job.
// The fixed-size arrays guarantee the 4 positive / 3 negative shape.
type AnalysisResult struct {
	Score     int                   `json:"score"`
	Summary   string                `json:"summary"`
	Positives [PositiveCount]string `json:"positives"`
	Negatives [NegativeCount]string `json:"negatives"`
}

// NormalizeAnalysis turns the raw JSON object returned by the model into an
// AnalysisResult whatever its shape.
func NormalizeAnalysis(raw map[string]interface{}) AnalysisResult {
	var res AnalysisResult
	res.Score = clampScore(raw["score"])

	positives := stringList(raw["positives"])
	for i := range res.Positives {
		if i < len(positives) {
			res.Positives[i] = positives[i]
		} else {
			res.Positives[i] = missingPositive
		}
	}

	negatives := stringList(raw["negatives"])
	for i := range res.Negatives {
		if i < len(negatives) {
			res.Negatives[i] = negatives[i]
		} else {
			res.Negatives[i] = missingNegative
		}
	}

	res.Summary = missingSummary
	if s, ok := raw["summary"].(string); ok && strings.TrimSpace(s) != "" {
		res.Summary = strings.TrimSpace(s)
	}
	return res
}

func clampScore(v interface{}) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	f = math.Trunc(f)
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return int(f)
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch s := item.(type) {
		case string:
			out = append(out, strings.TrimSpace(s))
		case nil:
			continue
		default:
			out = append(out, fmt.Sprint(s))
		}
	}
	return out
}

// Truncate shortens text to at most limit runes. When a whitespace boundary
// exists in the last 20% of the window the cut happens there. The second
// return value reports whether anything was removed.
func Truncate(text string, limit int) (string, bool) {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text, false
	}
	cut := runes[:limit]
	floor := limit * 8 / 10
	for i := len(cut) - 1; i >= floor; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + TruncationMarker, true
}

// AnalysisCacheKey is the content address of a (job, CV) pair.
func AnalysisCacheKey(jobDescription, cvText string) string {
	sum := sha256.Sum256([]byte(jobDescription + "::" + cvText))
	return hex.EncodeToString(sum[:])
}

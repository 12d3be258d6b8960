package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"applicant-tracker/domain"

	"github.com/sirupsen/logrus"
)

const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// GeminiClient scores a CV against a job description with one
// generateContent call. It never retries.
type GeminiClient struct {
	cfg    GeminiConfig
	client *http.Client
	log    *logrus.Logger
}

func NewGeminiClient(cfg GeminiConfig, log *logrus.Logger) *GeminiClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &GeminiClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

func (g *GeminiClient) Model() string {
	return g.cfg.Model
}

// Score returns the decoded JSON object produced by the model, or an
// *domain.AnalysisError describing why none could be obtained.
func (g *GeminiClient) Score(ctx context.Context, jobDescription, cvText string) (map[string]interface{}, error) {
	jsonData, err := json.Marshal(g.requestBody(buildScoringPrompt(jobDescription, cvText)))
	if err != nil {
		return nil, &domain.AnalysisError{Kind: domain.KindInvalidRequest, Message: "failed to marshal request", Err: err}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Model, g.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &domain.AnalysisError{Kind: domain.KindInvalidRequest, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	entry := g.log.WithField("model", g.cfg.Model)
	entry.Info("calling scoring API")

	resp, err := g.client.Do(req)
	if err != nil {
		entry.WithError(redactKey(err, g.cfg.APIKey)).Error("scoring API unreachable")
		return nil, &domain.AnalysisError{Kind: domain.KindUpstreamUnavailable,
			Message: "scoring service unreachable or timed out", Err: redactKey(err, g.cfg.APIKey)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.AnalysisError{Kind: domain.KindUpstreamUnavailable,
			StatusCode: resp.StatusCode, Message: "failed to read scoring response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		aerr := domain.AnalysisErrorForStatus(resp.StatusCode)
		entry.WithFields(logrus.Fields{"status": resp.StatusCode, "kind": aerr.Kind}).Error("scoring API returned an error")
		return nil, aerr
	}

	var apiResponse generateContentResponse
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, &domain.AnalysisError{Kind: domain.KindMalformedResponse,
			StatusCode: resp.StatusCode, Message: "scoring response is not valid JSON", Err: err}
	}

	finishReason := apiResponse.finishReason()
	entry.WithFields(logrus.Fields{"status": resp.StatusCode, "finish_reason": finishReason}).Info("scoring API responded")

	switch finishReason {
	case "", "STOP":
	case "SAFETY":
		return nil, &domain.AnalysisError{Kind: domain.KindUnauthorized,
			StatusCode: http.StatusForbidden, Message: "content blocked by safety filters"}
	case "MAX_TOKENS":
		return nil, &domain.AnalysisError{Kind: domain.KindResponseTruncated,
			Message: "scoring response truncated by the output token limit"}
	default:
		return nil, &domain.AnalysisError{Kind: domain.KindResponseIncomplete,
			Message: fmt.Sprintf("scoring response incomplete (finish reason %s)", finishReason)}
	}

	text, err := extractTextFromResponse(apiResponse)
	if err != nil {
		return nil, &domain.AnalysisError{Kind: domain.KindMalformedResponse, Message: "invalid scoring response format", Err: err}
	}

	cleanedContent := cleanJSONResponse(text)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(cleanedContent), &result); err != nil || result == nil {
		return nil, &domain.AnalysisError{Kind: domain.KindMalformedResponse,
			Message: "unable to parse the JSON returned by the model", Err: err}
	}

	if u := apiResponse.UsageMetadata; u != nil {
		entry.WithFields(logrus.Fields{
			"prompt_tokens": u.PromptTokenCount,
			"output_tokens": u.CandidatesTokenCount,
		}).Debug("scoring token usage")
	}
	return result, nil
}

func (g *GeminiClient) requestBody(prompt string) map[string]interface{} {
	return map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":      g.cfg.Temperature,
			"topK":             40,
			"topP":             0.95,
			"maxOutputTokens":  g.cfg.MaxTokens,
			"responseMimeType": "application/json",
			"responseSchema":   scoringResponseSchema,
		},
	}
}

var scoringResponseSchema = map[string]interface{}{
	"type": "OBJECT",
	"properties": map[string]interface{}{
		"score":     map[string]interface{}{"type": "INTEGER"},
		"summary":   map[string]interface{}{"type": "STRING"},
		"positives": map[string]interface{}{"type": "ARRAY", "items": map[string]interface{}{"type": "STRING"}},
		"negatives": map[string]interface{}{"type": "ARRAY", "items": map[string]interface{}{"type": "STRING"}},
	},
	"required": []string{"score", "summary", "positives", "negatives"},
}

func buildScoringPrompt(jobDescription, cvText string) string {
	return fmt.Sprintf(`You are an HR expert specialised in evaluating applications for technical roles.
Assess the following CV objectively and professionally against the job description.

JOB DESCRIPTION:
%s

CANDIDATE CV:
%s

Reply ONLY with a valid JSON object (no markdown, no extra text, no code blocks) with exactly this structure:
{
  "score": <integer between 0 and 100>,
  "summary": "<1-2 sentence summary of the candidate against the role>",
  "positives": ["point1", "point2", "point3", "point4"],
  "negatives": ["point1", "point2", "point3"]
}

SCORING RUBRIC (100 points total):
- Technical skills (40 points): direct match with the required technologies and tools
- Relevant experience (30 points): years of experience in a similar field
- Education and certifications (15 points): relevant degrees and certifications
- Soft skills and progression (15 points): leadership, communication, career progression

Strict instructions:
1. The score must be a number between 0 and 100
2. The answer MUST be valid JSON
3. Provide EXACTLY 4 positive points and 3 negative points
4. Each point must be concise (1-2 sentences) and easy to understand
5. Be factual and rely only on the CV and the job description
6. Never make assumptions; use only what is explicitly stated`, jobDescription, cvText)
}

type generateContentResponse struct {
	Candidates []struct {
		FinishReason string `json:"finishReason"`
		Content      struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (r generateContentResponse) finishReason() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	return r.Candidates[0].FinishReason
}

func extractTextFromResponse(r generateContentResponse) (string, error) {
	if len(r.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", fmt.Errorf("no parts in content")
	}
	if parts[0].Text == nil {
		return "", fmt.Errorf("no text in part")
	}
	return *parts[0].Text, nil
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	}
	content = strings.TrimSuffix(content, "```")

	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end != -1 && end > start {
		content = content[start : end+1]
	}

	return strings.TrimSpace(content)
}

// redactKey strips the API key from transport errors, which embed the URL.
func redactKey(err error, key string) error {
	if err == nil || key == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, key) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, key, "REDACTED"))
}

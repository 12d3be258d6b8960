package application

import (
	"context"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"applicant-tracker/domain"

	"github.com/sirupsen/logrus"
)

// Scorer performs the external scoring call and returns the raw JSON object
// produced by the model.
type Scorer interface {
	Score(ctx context.Context, jobDescription, cvText string) (map[string]interface{}, error)
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Analyzer scores a CV against a job description. Identical inputs are
// served from the cache without calling the scorer.
type Analyzer struct {
	scorer Scorer
	cache  Cache
	log    *logrus.Logger
}

func NewAnalyzer(scorer Scorer, cache Cache, log *logrus.Logger) *Analyzer {
	return &Analyzer{scorer: scorer, cache: cache, log: log}
}

func (a *Analyzer) Analyze(ctx context.Context, jobDescription, cvText string) (domain.AnalysisResult, error) {
	cv, cvCut := domain.Truncate(cvText, domain.MaxCVChars)
	if cvCut {
		a.log.WithField("original_chars", utf8.RuneCountInString(cvText)).Info("CV truncated before analysis")
	}
	job, jobCut := domain.Truncate(jobDescription, domain.MaxJobChars)
	if jobCut {
		a.log.WithField("original_chars", utf8.RuneCountInString(jobDescription)).Info("job description truncated before analysis")
	}

	key := domain.AnalysisCacheKey(job, cv)
	entry := a.log.WithField("cache_key", key[:8])

	if data, ok := a.cache.Get(ctx, key); ok {
		var cached domain.AnalysisResult
		if err := json.Unmarshal(data, &cached); err == nil {
			entry.Info("analysis served from cache")
			return cached, nil
		}
		entry.Warn("discarding unreadable cache entry")
	}
	entry.Info("analysis cache miss")

	raw, err := a.scorer.Score(ctx, job, cv)
	if err != nil {
		var aerr *domain.AnalysisError
		if !errors.As(err, &aerr) {
			aerr = &domain.AnalysisError{Kind: domain.KindUpstreamUnavailable, Message: "scoring failed", Err: err}
		}
		entry.WithField("kind", aerr.Kind).Warn("analysis failed")
		return domain.AnalysisResult{}, aerr
	}

	result := domain.NormalizeAnalysis(raw)

	if data, err := json.Marshal(result); err == nil {
		a.cache.Set(ctx, key, data)
	}
	entry.WithField("score", result.Score).Info("analysis completed and cached")
	return result, nil
}

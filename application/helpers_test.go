package application

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"applicant-tracker/domain"
	"applicant-tracker/infrastructure"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := infrastructure.NewDatabase("sqlite", filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type fakeScorer struct {
	calls   atomic.Int32
	raw     map[string]interface{}
	err     error
	onScore func(ctx context.Context)

	mu      sync.Mutex
	lastJob string
	lastCV  string
}

func (f *fakeScorer) Score(ctx context.Context, jobDescription, cvText string) (map[string]interface{}, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastJob, f.lastCV = jobDescription, cvText
	f.mu.Unlock()
	if f.onScore != nil {
		f.onScore(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

func goodRaw(score float64) map[string]interface{} {
	return map[string]interface{}{
		"score":     score,
		"summary":   "Solid backend engineer.",
		"positives": []interface{}{"Go", "SQL", "APIs", "Docker"},
		"negatives": []interface{}{"No React", "No mentoring", "Short tenure"},
	}
}

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (m *memStore) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, domain.NotFound("cv file")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(string, []byte) (string, error) {
	return f.text, f.err
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ map[string]interface{}, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type testEnv struct {
	db         *gorm.DB
	scorer     *fakeScorer
	publisher  *recordingPublisher
	store      *memStore
	candidates *CandidateService
	notifier   *Notifier
	jobs       *JobService
	hasher     PasswordHasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := quietLogger()
	db := newTestDB(t)
	scorer := &fakeScorer{raw: goodRaw(85)}
	publisher := &recordingPublisher{}
	store := newMemStore()
	hasher := &infrastructure.BcryptHasher{Cost: 4}

	jobs := NewJobService(db, log)
	notifier := NewNotifier(db, NewOutboxRelay(db, publisher, log), log)
	candidates := &CandidateService{
		DB:        db,
		Analyzer:  NewAnalyzer(scorer, infrastructure.NewTieredCache("", time.Hour, log), log),
		Notifier:  notifier,
		Jobs:      jobs,
		Files:     store,
		Extractor: fakeExtractor{text: "Extracted CV text about ten years of Go, SQL and distributed systems work."},
		Hasher:    hasher,
		Log:       log,
	}
	return &testEnv{
		db:         db,
		scorer:     scorer,
		publisher:  publisher,
		store:      store,
		candidates: candidates,
		notifier:   notifier,
		jobs:       jobs,
		hasher:     hasher,
	}
}

func (e *testEnv) reload(t *testing.T, id string) *domain.Candidate {
	t.Helper()
	var c domain.Candidate
	require.NoError(t, e.db.Where("id = ?", id).First(&c).Error)
	return &c
}

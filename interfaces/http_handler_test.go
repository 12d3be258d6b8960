package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"applicant-tracker/application"
	"applicant-tracker/infrastructure"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var jobText = strings.Repeat("Backend Go engineer building APIs. ", 3)

type geminiStub struct {
	mu     sync.Mutex
	reason string
	text   string
}

func (s *geminiStub) set(reason, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reason, s.text = reason, text
}

func (s *geminiStub) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	reason, text := s.reason, s.text
	s.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"candidates": []map[string]interface{}{{
			"finishReason": reason,
			"content":      map[string]interface{}{"parts": []map[string]interface{}{{"text": text}}},
		}},
	})
}

type testServer struct {
	router *gin.Engine
	gemini *geminiStub
	db     *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := infrastructure.NewDatabase("sqlite", filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	stub := &geminiStub{reason: "STOP", text: `{"score":90,"summary":"Great fit","positives":["a","b","c","d"],"negatives":["x","y","z"]}`}
	upstream := httptest.NewServer(stub)
	t.Cleanup(upstream.Close)

	gemini := infrastructure.NewGeminiClient(infrastructure.GeminiConfig{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: upstream.URL,
		Timeout: 5 * time.Second,
	}, log)
	files, err := infrastructure.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	hasher := &infrastructure.BcryptHasher{Cost: 4}

	_, err = application.NewSeeder(db, hasher, log).Seed(context.Background())
	require.NoError(t, err)

	jobs := application.NewJobService(db, log)
	notifier := application.NewNotifier(db, application.NewOutboxRelay(db, nil, log), log)
	router := gin.New()
	NewHTTPHandler(router, &HTTPHandler{
		Candidates: &application.CandidateService{
			DB:        db,
			Analyzer:  application.NewAnalyzer(gemini, infrastructure.NewTieredCache("", time.Hour, log), log),
			Notifier:  notifier,
			Jobs:      jobs,
			Files:     files,
			Extractor: infrastructure.NewTextExtractor("", log),
			Hasher:    hasher,
			Log:       log,
		},
		Jobs:     jobs,
		Auth:     application.NewAuthService(db, hasher, log),
		Notifier: notifier,
		Log:      log,
	}, NewSessionStore(testSecret, false))

	return &testServer{router: router, gemini: stub, db: db}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, cookies []*http.Cookie) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func (s *testServer) adminCookies(t *testing.T) []*http.Cookie {
	t.Helper()
	rec, _ := s.do(t, http.MethodPost, "/api/admin/login", gin.H{
		"username": application.DefaultAdminUsername,
		"password": application.DefaultAdminPassword,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func (s *testServer) submit(t *testing.T, email string, cvLen int) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/submit-candidate", gin.H{
		"firstName": "Jane",
		"lastName":  "Doe",
		"email":     email,
		"cvText":    strings.Repeat("a", cvLen),
	}, nil)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec, body := s.do(t, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestSubmitCandidate(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.submit(t, "short@example.com", 99)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation failed", body["error"])
	assert.NotEmpty(t, body["errors"])

	rec, body = s.submit(t, "jane@example.com", 100)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "pending", body["status"])
	assert.NotEmpty(t, body["id"])

	rec, _ = s.submit(t, "jane@example.com", 100)
	assert.Equal(t, http.StatusConflict, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/submit-candidate", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	raw := httptest.NewRecorder()
	s.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestPublicCandidateView(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/api/candidate/does-not-exist", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, created := s.submit(t, "jane@example.com", 150)
	id := created["id"].(string)
	rec, body := s.do(t, http.MethodGet, "/api/candidate/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, body, "score")
	assert.Nil(t, body["analysisStatus"])

	rec, body = s.do(t, http.MethodPost, "/api/check-status", gin.H{"email": "jane@example.com"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, body["id"])
}

func TestAdminRoutesRequireLogin(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/api/admin/dashboard", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/admin/login", gin.H{"username": "admin", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := s.adminCookies(t)
	rec, body := s.do(t, http.MethodGet, "/api/admin/dashboard", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 80, body["threshold"])
	assert.Equal(t, "admin", body["admin"])

	rec, _ = s.do(t, http.MethodPost, "/api/admin/logout", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/api/admin/dashboard", nil, rec.Result().Cookies())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionSurvivesLookupErrors(t *testing.T) {
	s := newTestServer(t)
	cookies := s.adminCookies(t)

	var failing atomic.Bool
	err := s.db.Callback().Query().Before("gorm:query").Register("test:fail_admins", func(tx *gorm.DB) {
		if failing.Load() && tx.Statement.Table == "admins" {
			tx.AddError(errors.New("connection reset"))
		}
	})
	require.NoError(t, err)

	failing.Store(true)
	rec, _ := s.do(t, http.MethodGet, "/api/admin/dashboard", nil, cookies)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "session must not be rewritten")

	failing.Store(false)
	rec, _ = s.do(t, http.MethodGet, "/api/admin/dashboard", nil, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyzeCandidate_Success(t *testing.T) {
	s := newTestServer(t)
	cookies := s.adminCookies(t)
	_, created := s.submit(t, "jane@example.com", 150)
	id := created["id"].(string)

	rec, body := s.do(t, http.MethodPost, "/api/admin/candidate/"+id+"/analyze", gin.H{"jobDescription": jobText}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "analyzed", body["status"])
	assert.EqualValues(t, 90, body["score"])

	_, public := s.do(t, http.MethodGet, "/api/candidate/"+id, nil, nil)
	assert.Equal(t, "passed", public["analysisStatus"])

	_, detail := s.do(t, http.MethodGet, "/api/admin/candidate/"+id, nil, cookies)
	assert.Equal(t, true, detail["notificationSent"])
}

func TestAnalyzeCandidate_SafetyBlock(t *testing.T) {
	s := newTestServer(t)
	s.gemini.set("SAFETY", "")
	cookies := s.adminCookies(t)
	_, created := s.submit(t, "jane@example.com", 150)
	id := created["id"].(string)

	rec, body := s.do(t, http.MethodPost, "/api/admin/candidate/"+id+"/analyze", gin.H{"jobDescription": jobText}, cookies)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "unauthorized", body["kind"])
	assert.Contains(t, body["error"], "AI analysis failed")

	rec, detail := s.do(t, http.MethodGet, "/api/admin/candidate/"+id, nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", detail["status"])
	assert.Nil(t, detail["score"])
	assert.Nil(t, detail["analysis"])
}

func TestAnalyzeCandidate_UsesSeededJob(t *testing.T) {
	s := newTestServer(t)
	cookies := s.adminCookies(t)
	_, created := s.submit(t, "jane@example.com", 150)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/candidate/"+created["id"].(string)+"/analyze", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAnalyzeText(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/api/analyze-candidate", gin.H{"jobDescription": "short", "candidateCV": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := s.do(t, http.MethodPost, "/api/analyze-candidate", gin.H{
		"jobDescription": jobText,
		"candidateCV":    strings.Repeat("Go developer with SQL experience. ", 3),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 90, body["score"])
	assert.Len(t, body["positives"], 4)
	assert.Len(t, body["negatives"], 3)
}

func TestCandidateAccount(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/api/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/register", gin.H{
		"firstName":       "Jane",
		"lastName":        "Doe",
		"email":           "jane@example.com",
		"username":        "jane",
		"password":        "secret1",
		"confirmPassword": "secret1",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()

	rec, me := s.do(t, http.MethodGet, "/api/me", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	candidate := me["candidate"].(map[string]interface{})
	assert.Equal(t, "jane", candidate["username"])
	assert.Nil(t, me["job"])

	_, other := s.submit(t, "john@example.com", 150)
	rec, _ = s.do(t, http.MethodGet, "/api/cv/"+other["id"].(string), nil, cookies)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/login", gin.H{"username": "jane", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/api/login", gin.H{"username": "jane", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJobsEndpoints(t *testing.T) {
	s := newTestServer(t)
	cookies := s.adminCookies(t)

	rec, active := s.do(t, http.MethodGet, "/api/jobs/active", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Senior Full Stack Developer", active["title"])

	rec, _ = s.do(t, http.MethodPost, "/api/admin/jobs", gin.H{"title": "Go", "description": "short"}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, job := s.do(t, http.MethodPost, "/api/admin/jobs", gin.H{"title": "Go Engineer", "description": jobText}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)

	path := "/api/admin/jobs/" + jsonNumber(job["id"])
	rec, updated := s.do(t, http.MethodPatch, path, gin.H{"isActive": false}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, updated["isActive"])

	rec, _ = s.do(t, http.MethodPatch, "/api/admin/jobs/9999", gin.H{"isActive": true}, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteCandidate(t *testing.T) {
	s := newTestServer(t)
	cookies := s.adminCookies(t)
	_, created := s.submit(t, "jane@example.com", 150)
	id := created["id"].(string)

	rec, _ := s.do(t, http.MethodDelete, "/api/admin/candidate/"+id, nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodDelete, "/api/admin/candidate/"+id, nil, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, list := s.do(t, http.MethodGet, "/api/admin/candidates", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, list["total"])
}

func jsonNumber(v interface{}) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"applicant-tracker/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	MaxCVUploadBytes   = 5 * 1024 * 1024
	minAnalysisChars   = 50
	defaultCVFileName  = "cv.txt"
	maxStoredBaseChars = 100
)

type FileStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

type TextExtractor interface {
	Extract(filename string, data []byte) (string, error)
}

type SubmitInput struct {
	FirstName  string `json:"firstName" validate:"notblank,min=2,max=255"`
	LastName   string `json:"lastName" validate:"notblank,min=2,max=255"`
	Email      string `json:"email" validate:"notblank,email,max=255"`
	CVText     string `json:"cvText" validate:"notblank,min=100,max=50000"`
	CVFileName string `json:"cvFileName" validate:"max=255"`
}

type RegisterInput struct {
	FirstName       string `json:"firstName" validate:"notblank,min=2,max=255"`
	LastName        string `json:"lastName" validate:"notblank,min=2,max=255"`
	Email           string `json:"email" validate:"notblank,email,max=255"`
	Username        string `json:"username" validate:"notblank,min=3,max=255"`
	Password        string `json:"password" validate:"notblank,min=6,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

type AnalyzeTextInput struct {
	JobDescription string `json:"jobDescription" validate:"notblank,min=50,max=10000"`
	CandidateCV    string `json:"candidateCV" validate:"notblank,min=50,max=10000"`
}

type DashboardStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Analyzing int64 `json:"analyzing"`
	Analyzed  int64 `json:"analyzed"`
	Qualified int64 `json:"qualified"`
}

// CandidateService owns the candidate lifecycle from submission to analysis.
type CandidateService struct {
	DB        *gorm.DB
	Analyzer  *Analyzer
	Notifier  *Notifier
	Jobs      *JobService
	Files     FileStore
	Extractor TextExtractor
	Hasher    PasswordHasher
	Log       *logrus.Logger
}

// Submit records a public application carrying its CV as text.
func (s *CandidateService) Submit(ctx context.Context, in SubmitInput) (*domain.Candidate, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.CVFileName = strings.TrimSpace(in.CVFileName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.CVFileName == "" {
		in.CVFileName = defaultCVFileName
	}

	db := s.DB.WithContext(ctx)
	if taken, err := s.emailTaken(db, in.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, domain.Conflict("a candidate with this email already exists")
	}

	c := domain.NewCandidate(in.FirstName, in.LastName, in.Email)
	c.CVText = &in.CVText
	c.CVFileName = &in.CVFileName
	if job, err := s.Jobs.Active(ctx); err == nil {
		c.JobDescriptionID = &job.ID
	}

	if err := db.Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.Conflict("a candidate with this email already exists")
		}
		return nil, fmt.Errorf("failed to save candidate: %w", err)
	}

	s.Log.WithFields(logrus.Fields{"candidate_id": c.ID, "email": c.Email}).Info("application submitted")
	return c, nil
}

// Register creates a candidate account able to log in.
func (s *CandidateService) Register(ctx context.Context, in RegisterInput) (*domain.Candidate, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	if taken, err := s.emailTaken(db, in.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, domain.Conflict("this email is already in use")
	}
	var count int64
	if err := db.Model(&domain.Candidate{}).Where("username = ?", in.Username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, domain.Conflict("this username is already in use")
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	c := domain.NewCandidate(in.FirstName, in.LastName, in.Email)
	c.Username = &in.Username
	c.Password = hash
	if err := db.Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.Conflict("email or username already in use")
		}
		return nil, fmt.Errorf("failed to save candidate: %w", err)
	}

	s.Log.WithFields(logrus.Fields{"candidate_id": c.ID, "email": c.Email}).Info("candidate registered")
	return c, nil
}

func (s *CandidateService) emailTaken(db *gorm.DB, email string) (bool, error) {
	var count int64
	if err := db.Model(&domain.Candidate{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *CandidateService) Get(ctx context.Context, id string) (*domain.Candidate, error) {
	var c domain.Candidate
	err := s.DB.WithContext(ctx).Preload("JobDescription").Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("candidate")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CandidateService) FindByEmail(ctx context.Context, email string) (*domain.Candidate, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, domain.NewValidationError("email is required")
	}
	var c domain.Candidate
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("candidate")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SelectJob attaches an open job to the candidate.
func (s *CandidateService) SelectJob(ctx context.Context, candidateID string, jobID uint) (*domain.JobDescription, error) {
	if jobID == 0 {
		return nil, domain.NewValidationError("jobId is required")
	}
	job, err := s.Jobs.GetActive(ctx, jobID)
	if err != nil {
		return nil, err
	}
	res := s.DB.WithContext(ctx).Model(&domain.Candidate{}).
		Where("id = ?", candidateID).
		Update("job_description_id", job.ID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, candidateID); err != nil {
			return nil, err
		}
	}
	s.Log.WithFields(logrus.Fields{"candidate_id": candidateID, "job_id": job.ID}).Info("job selected")
	return job, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// StoredCVName builds <id>_<unix>_<base><ext> with the base reduced to safe characters.
func StoredCVName(candidateID string, at time.Time, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	base = strings.Trim(unsafeFileChars.ReplaceAllString(base, "_"), "_")
	if base == "" {
		base = "cv"
	}
	if len(base) > maxStoredBaseChars {
		base = base[:maxStoredBaseChars]
	}
	return fmt.Sprintf("%s_%d_%s%s", candidateID, at.Unix(), base, ext)
}

// UploadCV stores a PDF or DOCX CV, replaces the CV text with its content
// and puts the candidate back in the pending queue.
func (s *CandidateService) UploadCV(ctx context.Context, candidateID, filename string, r io.Reader) (*domain.Candidate, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".pdf" && ext != ".docx" {
		return nil, domain.NewValidationError("the CV must be a PDF or DOCX file")
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxCVUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.NewValidationError("no file selected")
	}
	if len(data) > MaxCVUploadBytes {
		return nil, domain.NewValidationError("the file must not exceed 5MB")
	}
	if !contentMatches(ext, data) {
		return nil, domain.NewValidationError("the file content does not match its extension")
	}

	c, err := s.Get(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	text, err := s.Extractor.Extract(filename, data)
	if err != nil {
		s.Log.WithError(err).WithField("candidate_id", candidateID).Warn("CV text extraction failed")
		return nil, domain.NewValidationError("no text could be extracted from the CV")
	}

	name := StoredCVName(c.ID, time.Now(), filename)
	if err := s.Files.Save(ctx, name, data); err != nil {
		return nil, fmt.Errorf("failed to store CV: %w", err)
	}

	res := s.DB.WithContext(ctx).Model(&domain.Candidate{}).
		Where("id = ? AND status <> ?", c.ID, domain.StatusAnalyzing).
		Updates(map[string]interface{}{
			"cv_file_name": name,
			"cv_text":      text,
			"status":       domain.StatusPending,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.Conflict("analysis in progress, try again once it completes")
	}

	s.Log.WithFields(logrus.Fields{"candidate_id": c.ID, "file": name}).Info("CV uploaded")
	return s.Get(ctx, c.ID)
}

func contentMatches(ext string, data []byte) bool {
	switch ext {
	case ".pdf":
		return http.DetectContentType(data) == "application/pdf"
	case ".docx":
		return http.DetectContentType(data) == "application/zip"
	}
	return false
}

// OpenCV streams the stored CV file to an admin or its owner.
func (s *CandidateService) OpenCV(ctx context.Context, p domain.Principal, candidateID string) (io.ReadCloser, string, error) {
	if !p.CanAccessCandidate(candidateID) {
		return nil, "", domain.ErrForbidden
	}
	c, err := s.Get(ctx, candidateID)
	if err != nil {
		return nil, "", err
	}
	if c.CVFileName == nil || *c.CVFileName == "" {
		return nil, "", domain.NotFound("cv")
	}
	rc, err := s.Files.Open(ctx, *c.CVFileName)
	if err != nil {
		return nil, "", err
	}
	return rc, *c.CVFileName, nil
}

// Analyze scores the candidate's CV. jobDescription falls back to the
// candidate's selected job, then to the advertised one.
func (s *CandidateService) Analyze(ctx context.Context, candidateID, jobDescription string) (*domain.Candidate, error) {
	c, err := s.Get(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	job := strings.TrimSpace(jobDescription)
	if job == "" {
		if c.JobDescription != nil {
			job = c.JobDescription.Description
		} else if active, err := s.Jobs.Active(ctx); err == nil {
			job = active.Description
		}
	}
	cv := strings.TrimSpace(c.CV())

	var msgs []string
	if job == "" {
		msgs = append(msgs, "jobDescription is required")
	} else if utf8.RuneCountInString(job) < minAnalysisChars {
		msgs = append(msgs, fmt.Sprintf("jobDescription must contain at least %d characters", minAnalysisChars))
	}
	if utf8.RuneCountInString(cv) < minAnalysisChars {
		msgs = append(msgs, fmt.Sprintf("candidate CV must contain at least %d characters", minAnalysisChars))
	}
	if err := domain.NewValidationError(msgs...); err != nil {
		return nil, err
	}

	if err := s.startAnalysis(ctx, c.ID); err != nil {
		return nil, err
	}

	// the external call may outlive the client; status must still settle
	actx := context.WithoutCancel(ctx)
	entry := s.Log.WithField("candidate_id", c.ID)
	entry.Info("analysis started")

	result, err := s.Analyzer.Analyze(actx, job, cv)
	if err != nil {
		if ferr := s.failAnalysis(actx, c.ID); ferr != nil {
			entry.WithError(ferr).Error("failed to reset candidate status")
		}
		entry.WithError(err).Error("analysis failed, candidate back to pending")
		return nil, err
	}

	if err := s.completeAnalysis(actx, c.ID, result); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			if ferr := s.failAnalysis(actx, c.ID); ferr != nil {
				entry.WithError(ferr).Error("failed to reset candidate status")
			}
		}
		entry.WithError(err).Error("storing analysis failed")
		return nil, err
	}
	entry.WithField("score", result.Score).Info("analysis stored")

	c, err = s.Get(actx, c.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Notifier.Notify(actx, c, result.Score); err != nil {
		entry.WithError(err).Error("failed to notify candidate")
	}
	return c, nil
}

// AnalyzeText scores an ad-hoc (job, CV) pair without touching storage.
func (s *CandidateService) AnalyzeText(ctx context.Context, in AnalyzeTextInput) (domain.AnalysisResult, error) {
	if err := validateStruct(in); err != nil {
		return domain.AnalysisResult{}, err
	}
	return s.Analyzer.Analyze(ctx, in.JobDescription, in.CandidateCV)
}

func (s *CandidateService) startAnalysis(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&domain.Candidate{}).
		Where("id = ? AND status IN ?", id, []domain.CandidateStatus{domain.StatusPending, domain.StatusAnalyzed}).
		Update("status", domain.StatusAnalyzing)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Conflict("analysis already in progress")
	}
	return nil
}

func (s *CandidateService) completeAnalysis(ctx context.Context, id string, result domain.AnalysisResult) error {
	now := time.Now()
	score := result.Score
	res := s.DB.WithContext(ctx).Model(&domain.Candidate{}).
		Where("id = ? AND status = ?", id, domain.StatusAnalyzing).
		Updates(domain.Candidate{
			Status:         domain.StatusAnalyzed,
			Score:          &score,
			AnalysisResult: &result,
			AnalyzedAt:     &now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to store analysis: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Conflict("candidate left the analyzing state")
	}
	return nil
}

func (s *CandidateService) failAnalysis(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Model(&domain.Candidate{}).
		Where("id = ? AND status = ?", id, domain.StatusAnalyzing).
		Update("status", domain.StatusPending).Error
}

func (s *CandidateService) List(ctx context.Context) ([]domain.Candidate, error) {
	var out []domain.Candidate
	err := s.DB.WithContext(ctx).Order("submitted_at DESC").Find(&out).Error
	return out, err
}

func (s *CandidateService) ListPending(ctx context.Context) ([]domain.Candidate, error) {
	var out []domain.Candidate
	err := s.DB.WithContext(ctx).Where("status = ?", domain.StatusPending).Order("submitted_at ASC").Find(&out).Error
	return out, err
}

func (s *CandidateService) ListAnalyzed(ctx context.Context) ([]domain.Candidate, error) {
	var out []domain.Candidate
	err := s.DB.WithContext(ctx).Where("status = ?", domain.StatusAnalyzed).Order("analyzed_at DESC").Find(&out).Error
	return out, err
}

// Delete removes the candidate and its notifications.
func (s *CandidateService) Delete(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("candidate_id = ?", id).Delete(&domain.Notification{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Candidate{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.NotFound("candidate")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Log.WithField("candidate_id", id).Info("candidate deleted")
	return nil
}

func (s *CandidateService) Stats(ctx context.Context) (DashboardStats, error) {
	var st DashboardStats
	db := s.DB.WithContext(ctx).Model(&domain.Candidate{})
	if err := db.Count(&st.Total).Error; err != nil {
		return st, err
	}
	counts := []struct {
		status domain.CandidateStatus
		dst    *int64
	}{
		{domain.StatusPending, &st.Pending},
		{domain.StatusAnalyzing, &st.Analyzing},
		{domain.StatusAnalyzed, &st.Analyzed},
	}
	for _, c := range counts {
		if err := s.DB.WithContext(ctx).Model(&domain.Candidate{}).Where("status = ?", c.status).Count(c.dst).Error; err != nil {
			return st, err
		}
	}
	err := s.DB.WithContext(ctx).Model(&domain.Candidate{}).
		Where("status = ? AND score >= ?", domain.StatusAnalyzed, domain.ScoreThreshold).
		Count(&st.Qualified).Error
	return st, err
}

func (s *CandidateService) Latest(ctx context.Context, limit int) ([]domain.Candidate, error) {
	var out []domain.Candidate
	err := s.DB.WithContext(ctx).Order("submitted_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

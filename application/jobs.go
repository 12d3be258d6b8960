package application

import (
	"context"
	"errors"
	"strings"

	"applicant-tracker/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type JobInput struct {
	Title       string `json:"title" validate:"notblank,max=255"`
	Description string `json:"description" validate:"notblank,min=50"`
	IsActive    *bool  `json:"isActive"`
}

type JobService struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewJobService(db *gorm.DB, log *logrus.Logger) *JobService {
	return &JobService{db: db, log: log}
}

// Active returns the advertised job: the most recent active one.
func (s *JobService) Active(ctx context.Context) (*domain.JobDescription, error) {
	var job domain.JobDescription
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("active job")
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *JobService) ListActive(ctx context.Context) ([]domain.JobDescription, error) {
	var jobs []domain.JobDescription
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		Find(&jobs).Error
	return jobs, err
}

func (s *JobService) List(ctx context.Context) ([]domain.JobDescription, error) {
	var jobs []domain.JobDescription
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&jobs).Error
	return jobs, err
}

// GetActive returns job id only if it is open for applications.
func (s *JobService) GetActive(ctx context.Context, id uint) (*domain.JobDescription, error) {
	var job domain.JobDescription
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("job")
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *JobService) Create(ctx context.Context, in JobInput) (*domain.JobDescription, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	job := &domain.JobDescription{
		Title:       in.Title,
		Description: in.Description,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "title": job.Title}).Info("job created")
	return job, nil
}

func (s *JobService) SetActive(ctx context.Context, id uint, active bool) (*domain.JobDescription, error) {
	var job domain.JobDescription
	db := s.db.WithContext(ctx)
	if err := db.First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFound("job")
		}
		return nil, err
	}
	if err := db.Model(&job).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	job.IsActive = active
	return &job, nil
}

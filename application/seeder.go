package application

import (
	"context"
	"errors"
	"fmt"

	"applicant-tracker/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
	defaultAdminEmail    = "admin@recruitment.local"
	defaultJobTitle      = "Senior Full Stack Developer"
)

const defaultJobDescription = `TechCorp is a leading provider of cloud and intelligent automation solutions. Since 2015 we have helped large European companies transform their digital infrastructure.

We are looking for a Senior Full Stack Developer to join our Core Platform team. You will own the architecture and development of our critical systems, working with a modern stack and a team of 12 developers.

Key responsibilities:
- Design and build scalable, high-performance RESTful APIs
- Build modern web interfaces with React/Vue.js
- Optimise database performance
- Mentor junior developers
- Keep code quality high through code reviews

Profile:
- 5+ years of full stack development experience
- Strong PHP/Laravel or Python/Django (backend)
- Solid JavaScript/TypeScript knowledge
- Experience with relational databases
- Familiarity with Docker and production deployments

What we offer:
- Latest generation equipment
- Remote work 2-3 days per week
- Annual training budget of EUR 2,000
- Meal vouchers, health insurance, transport allowance
- Team events and annual offsites

Location: Paris, France (Hybrid)
Salary: EUR 55,000 - 75,000 per year
Type: Permanent, full time`

type SeedReport struct {
	AdminCreated bool
	JobCreated   bool
}

// Seeder creates the default admin and job. Running it twice is a no-op.
type Seeder struct {
	db     *gorm.DB
	hasher PasswordHasher
	log    *logrus.Logger
}

func NewSeeder(db *gorm.DB, hasher PasswordHasher, log *logrus.Logger) *Seeder {
	return &Seeder{db: db, hasher: hasher, log: log}
}

func (s *Seeder) Seed(ctx context.Context) (SeedReport, error) {
	var report SeedReport
	db := s.db.WithContext(ctx)

	var admin domain.Admin
	err := db.Where("username = ?", DefaultAdminUsername).First(&admin).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hash, err := s.hasher.Hash(DefaultAdminPassword)
		if err != nil {
			return report, fmt.Errorf("failed to hash default admin password: %w", err)
		}
		admin = domain.Admin{
			Username: DefaultAdminUsername,
			Password: hash,
			Email:    defaultAdminEmail,
			IsActive: true,
		}
		if err := db.Create(&admin).Error; err != nil {
			return report, fmt.Errorf("failed to create default admin: %w", err)
		}
		report.AdminCreated = true
		s.log.WithField("username", admin.Username).Info("default admin created")
	case err != nil:
		return report, err
	}

	var active int64
	if err := db.Model(&domain.JobDescription{}).Where("is_active = ?", true).Count(&active).Error; err != nil {
		return report, err
	}
	if active == 0 {
		job := domain.JobDescription{Title: defaultJobTitle, Description: defaultJobDescription, IsActive: true}
		if err := db.Create(&job).Error; err != nil {
			return report, fmt.Errorf("failed to create default job: %w", err)
		}
		report.JobCreated = true
		s.log.WithField("title", job.Title).Info("default job created")
	}
	return report, nil
}

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CandidateStatus string

const (
	StatusPending   CandidateStatus = "pending"
	StatusAnalyzing CandidateStatus = "analyzing"
	StatusAnalyzed  CandidateStatus = "analyzed"
)

// ScoreThreshold is the minimum score for a candidate to be considered qualified.
const ScoreThreshold = 80

type Candidate struct {
	ID               string          `gorm:"primaryKey;size:36"`
	FirstName        string          `gorm:"size:255;not null"`
	LastName         string          `gorm:"size:255;not null"`
	Email            string          `gorm:"size:255;not null;uniqueIndex"`
	Username         *string         `gorm:"size:255;uniqueIndex"` // nil for public submissions
	Password         string          `gorm:"size:255"`
	CVText           *string         `gorm:"column:cv_text;type:text"`
	CVFileName       *string         `gorm:"column:cv_file_name;size:255"`
	AnalysisResult   *AnalysisResult `gorm:"serializer:json;type:text"`
	Score            *int
	Status           CandidateStatus `gorm:"size:50;not null;index"`
	CreatedAt        time.Time
	SubmittedAt      time.Time `gorm:"not null;index"`
	AnalyzedAt       *time.Time
	IsActive         bool `gorm:"not null;index"`
	NotificationSent bool `gorm:"not null;index"`
	JobDescriptionID *uint
	JobDescription   *JobDescription `gorm:"constraint:OnDelete:SET NULL"`
	Notifications    []Notification  `gorm:"constraint:OnDelete:CASCADE"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// NewCandidate returns a pending, active candidate submitted now.
func NewCandidate(firstName, lastName, email string) *Candidate {
	now := time.Now()
	return &Candidate{
		ID:          uuid.NewString(),
		FirstName:   strings.TrimSpace(firstName),
		LastName:    strings.TrimSpace(lastName),
		Email:       strings.TrimSpace(email),
		Status:      StatusPending,
		CreatedAt:   now,
		SubmittedAt: now,
		IsActive:    true,
	}
}

func (c *Candidate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = time.Now()
	}
	return nil
}

func (c *Candidate) FullName() string {
	return c.FirstName + " " + c.LastName
}

func (c *Candidate) IsAnalyzed() bool {
	return c.Status == StatusAnalyzed && c.Score != nil
}

// Passed reports whether the analysed score reaches ScoreThreshold.
func (c *Candidate) Passed() bool {
	return c.IsAnalyzed() && *c.Score >= ScoreThreshold
}

// CV returns the stored CV text or "" when none was submitted yet.
func (c *Candidate) CV() string {
	if c.CVText == nil {
		return ""
	}
	return *c.CVText
}

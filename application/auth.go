package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"applicant-tracker/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

var errBadCredentials = fmt.Errorf("invalid username or password: %w", domain.ErrUnauthenticated)

// AuthService checks admin and candidate credentials.
type AuthService struct {
	db     *gorm.DB
	hasher PasswordHasher
	log    *logrus.Logger
}

func NewAuthService(db *gorm.DB, hasher PasswordHasher, log *logrus.Logger) *AuthService {
	return &AuthService{db: db, hasher: hasher, log: log}
}

func (s *AuthService) AuthenticateAdmin(ctx context.Context, username, password string) (*domain.Admin, error) {
	var admin domain.Admin
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !admin.IsActive || !s.hasher.Verify(admin.Password, password) {
		return nil, errBadCredentials
	}
	s.log.WithField("admin", admin.Username).Info("admin logged in")
	return &admin, nil
}

func (s *AuthService) AuthenticateCandidate(ctx context.Context, username, password string) (*domain.Candidate, error) {
	var c domain.Candidate
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !c.IsActive || c.Password == "" || !s.hasher.Verify(c.Password, password) {
		return nil, errBadCredentials
	}
	s.log.WithField("candidate_id", c.ID).Info("candidate logged in")
	return &c, nil
}

// AdminExists backs the session check: a deleted or disabled admin loses access.
func (s *AuthService) AdminExists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Admin{}).Where("id = ? AND is_active = ?", id, true).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check admin %d: %w", id, err)
	}
	return count > 0, nil
}

func (s *AuthService) CandidateExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Candidate{}).Where("id = ? AND is_active = ?", id, true).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check candidate %s: %w", id, err)
	}
	return count > 0, nil
}

package application

import (
	"context"
	"testing"

	"applicant-tracker/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seeder := NewSeeder(env.db, env.hasher, quietLogger())

	report, err := seeder.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{AdminCreated: true, JobCreated: true}, report)

	report, err = seeder.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{}, report)

	var admins, jobs int64
	env.db.Model(&domain.Admin{}).Count(&admins)
	env.db.Model(&domain.JobDescription{}).Count(&jobs)
	assert.EqualValues(t, 1, admins)
	assert.EqualValues(t, 1, jobs)

	auth := NewAuthService(env.db, env.hasher, quietLogger())
	admin, err := auth.AuthenticateAdmin(ctx, DefaultAdminUsername, DefaultAdminPassword)
	require.NoError(t, err)
	assert.Equal(t, "admin@recruitment.local", admin.Email)
	exists, err := auth.AdminExists(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	job, err := env.jobs.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Senior Full Stack Developer", job.Title)
}

func TestAuth_DisabledAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := NewSeeder(env.db, env.hasher, quietLogger()).Seed(ctx)
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&domain.Admin{}).Where("username = ?", DefaultAdminUsername).
		Update("is_active", false).Error)

	auth := NewAuthService(env.db, env.hasher, quietLogger())
	_, err = auth.AuthenticateAdmin(ctx, DefaultAdminUsername, DefaultAdminPassword)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	exists, err := auth.AdminExists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAuth_ExistsReportsDatabaseErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auth := NewAuthService(env.db, env.hasher, quietLogger())
	sqlDB, err := env.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = auth.AdminExists(ctx, 1)
	assert.Error(t, err)
	_, err = auth.CandidateExists(ctx, "someone")
	assert.Error(t, err)
}

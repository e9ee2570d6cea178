package staterepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-passwordless/dialog/staterepo"
	"github.com/jrsteele09/go-passwordless/internal/utils"
	"github.com/jrsteele09/go-passwordless/passwordless"
	"github.com/stretchr/testify/require"
)

const tabKey = "tab-1"

func TestSaveMergesPartials(t *testing.T) {
	repo := staterepo.NewInMemoryRepo(time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, tabKey, staterepo.Partial{
		IsOpen: utils.Ptr(true),
		Step:   utils.Ptr("email"),
		Email:  utils.Ptr("john@example.com"),
	}))
	require.NoError(t, repo.Save(ctx, tabKey, staterepo.Partial{
		Step: utils.Ptr("code"),
		Code: utils.Ptr("12"),
	}))

	snapshot, err := repo.Load(ctx, tabKey)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	require.True(t, snapshot.IsOpen)
	require.Equal(t, "code", snapshot.Step)
	require.Equal(t, "john@example.com", snapshot.Email, "unrelated fields survive a partial save")
	require.Equal(t, "12", snapshot.Code)
}

func TestSaveIsIdempotent(t *testing.T) {
	repo := staterepo.NewInMemoryRepo(time.Hour)
	ctx := context.Background()

	partial := staterepo.Partial{
		Step:  utils.Ptr("code"),
		Email: utils.Ptr("john@example.com"),
	}
	require.NoError(t, repo.Save(ctx, tabKey, partial))
	once, err := repo.Load(ctx, tabKey)
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, tabKey, partial))
	twice, err := repo.Load(ctx, tabKey)
	require.NoError(t, err)

	once.SavedAt, twice.SavedAt = time.Time{}, time.Time{}
	require.Equal(t, once, twice)
}

func TestSessionRoundTrip(t *testing.T) {
	repo := staterepo.NewInMemoryRepo(time.Hour)
	ctx := context.Background()

	session := &passwordless.AuthSession{
		Username:      "john@example.com",
		Session:       "sess-1",
		ChallengeName: passwordless.ChallengeEmailOTP,
	}
	require.NoError(t, repo.Save(ctx, tabKey, staterepo.Partial{Session: session}))

	snapshot, err := repo.Load(ctx, tabKey)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Session)
	require.Equal(t, session.Session, snapshot.Session.Session)
	require.Equal(t, passwordless.ChallengeEmailOTP, snapshot.Session.ChallengeName)

	require.NoError(t, repo.Save(ctx, tabKey, staterepo.Partial{ClearSession: true}))
	snapshot, err = repo.Load(ctx, tabKey)
	require.NoError(t, err)
	require.Nil(t, snapshot.Session)
}

func TestLoadMissingKeyReturnsNothing(t *testing.T) {
	repo := staterepo.NewInMemoryRepo(time.Hour)

	snapshot, err := repo.Load(context.Background(), "never-saved")
	require.NoError(t, err)
	require.Nil(t, snapshot)
}

func TestSnapshotExpires(t *testing.T) {
	now := time.Now()
	repo := staterepo.NewInMemoryRepo(time.Minute, staterepo.WithNowTime(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, tabKey, staterepo.Partial{Step: utils.Ptr("code")}))

	now = now.Add(2 * time.Minute)
	snapshot, err := repo.Load(ctx, tabKey)
	require.NoError(t, err)
	require.Nil(t, snapshot)
}

func TestClear(t *testing.T) {
	repo := staterepo.NewInMemoryRepo(time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, tabKey, staterepo.Partial{Step: utils.Ptr("code")}))
	require.NoError(t, repo.Clear(ctx, tabKey))

	snapshot, err := repo.Load(ctx, tabKey)
	require.NoError(t, err)
	require.Nil(t, snapshot)
}

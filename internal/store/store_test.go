package store

import (
	"context"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"achievementsAPI/internal/translation"
	"achievementsAPI/internal/types/achievement"
	"achievementsAPI/internal/types/progress"
)

func seedAchievement(t *testing.T, s Store, key string, target int) (*achievement.Category, *achievement.Achievement) {
	t.Helper()
	ctx := context.Background()

	c := &achievement.Category{Key: key, Name: translation.Normalize(map[string]string{"en": "Cat " + key})}
	require.NoError(t, s.CreateCategory(ctx, c))

	a := &achievement.Achievement{
		Title:       translation.Normalize(map[string]string{"en": "First steps"}),
		Description: translation.Normalize(map[string]string{"en": "Walk"}),
		Target:      target,
		CategoryID:  c.ID,
	}
	require.NoError(t, s.CreateAchievement(ctx, a))
	return c, a
}

// runContract exercises the behavior both drivers must share.
func runContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("category key is unique", func(t *testing.T) {
		seedAchievement(t, s, "unique-key", 0)
		dup := &achievement.Category{Key: "unique-key", Name: translation.Normalize(nil)}
		assert.ErrorIs(t, s.CreateCategory(ctx, dup), ErrConflict)
	})

	t.Run("category loads achievements with rewards", func(t *testing.T) {
		c, a := seedAchievement(t, s, "with-reward", 3)
		r := &achievement.Reward{
			Type:          achievement.RewardBadge,
			Title:         translation.Normalize(map[string]string{"en": "Badge"}),
			Description:   translation.Normalize(nil),
			IsApplicable:  true,
			Details:       map[string]any{"color": "gold"},
			AchievementID: a.ID,
		}
		require.NoError(t, s.CreateReward(ctx, r))

		got, err := s.GetCategory(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, got.Achievements, 1)
		require.NotNil(t, got.Achievements[0].Reward)
		assert.Equal(t, r.ID, got.Achievements[0].Reward.ID)
		assert.Equal(t, "gold", got.Achievements[0].Reward.Details["color"])
		assert.Equal(t, "Cat with-reward", got.Name["en"])
		assert.Equal(t, "", got.Name["ru"])
	})

	t.Run("reward is unique per achievement", func(t *testing.T) {
		_, a := seedAchievement(t, s, "one-reward", 1)
		first := &achievement.Reward{Type: achievement.RewardBadge, AchievementID: a.ID,
			Title: translation.Normalize(nil), Description: translation.Normalize(nil)}
		require.NoError(t, s.CreateReward(ctx, first))

		second := &achievement.Reward{Type: achievement.RewardVisualEffects, AchievementID: a.ID,
			Title: translation.Normalize(nil), Description: translation.Normalize(nil)}
		assert.ErrorIs(t, s.CreateReward(ctx, second), ErrConflict)

		got, err := s.GetRewardByAchievement(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		require.NotNil(t, got.Achievement)
		assert.Equal(t, a.ID, got.Achievement.ID)
	})

	t.Run("achievement requires an existing category", func(t *testing.T) {
		a := &achievement.Achievement{
			Title:       translation.Normalize(nil),
			Description: translation.Normalize(nil),
			CategoryID:  "00000000-0000-0000-0000-000000000000",
		}
		assert.ErrorIs(t, s.CreateAchievement(ctx, a), ErrNotFound)
	})

	t.Run("progress pair is unique", func(t *testing.T) {
		_, a := seedAchievement(t, s, "progress-pair", 5)
		first := &progress.Record{UserID: "user-1", AchievementID: a.ID, Status: progress.StatusInProgress, CurrentStep: 2}
		require.NoError(t, s.CreateProgress(ctx, first))

		dup := &progress.Record{UserID: "user-1", AchievementID: a.ID, Status: progress.StatusFinished, CurrentStep: 5}
		assert.ErrorIs(t, s.CreateProgress(ctx, dup), ErrConflict)

		got, err := s.FindProgress(ctx, "user-1", a.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, progress.StatusInProgress, got.Status)
		assert.Equal(t, 2, got.CurrentStep)
		require.NotNil(t, got.Achievement)
		assert.Equal(t, 5, got.Achievement.Target)
	})

	t.Run("progress update and delete", func(t *testing.T) {
		_, a := seedAchievement(t, s, "progress-update", 5)
		p := &progress.Record{UserID: "user-2", AchievementID: a.ID, Status: progress.StatusInProgress}
		require.NoError(t, s.CreateProgress(ctx, p))

		p.CurrentStep = 5
		p.Status = progress.StatusFinished
		require.NoError(t, s.UpdateProgress(ctx, p))

		got, err := s.GetProgress(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, progress.StatusFinished, got.Status)
		assert.Equal(t, 5, got.CurrentStep)

		byUser, err := s.ListProgressByUser(ctx, "user-2")
		require.NoError(t, err)
		require.Len(t, byUser, 1)

		require.NoError(t, s.DeleteProgress(ctx, p.ID))
		assert.ErrorIs(t, s.DeleteProgress(ctx, p.ID), ErrNotFound)
		_, err = s.GetProgress(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("deleting a category cascades", func(t *testing.T) {
		c, a := seedAchievement(t, s, "cascade", 1)
		p := &progress.Record{UserID: "user-3", AchievementID: a.ID, Status: progress.StatusInProgress}
		require.NoError(t, s.CreateProgress(ctx, p))

		require.NoError(t, s.DeleteCategory(ctx, c.ID))

		_, err := s.GetAchievement(ctx, a.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetProgress(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update of a missing row", func(t *testing.T) {
		missing := &progress.Record{ID: "missing", UserID: "u", AchievementID: "a"}
		assert.ErrorIs(t, s.UpdateProgress(ctx, missing), ErrNotFound)
	})
}

func TestMemoryContract(t *testing.T) {
	runContract(t, NewMemory())
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, a := seedAchievement(t, s, "stats", 2)
	hidden := &achievement.Achievement{
		Title: translation.Normalize(nil), Description: translation.Normalize(nil),
		Hidden: true, CategoryID: a.CategoryID,
	}
	require.NoError(t, s.CreateAchievement(ctx, hidden))
	require.NoError(t, s.CreateReward(ctx, &achievement.Reward{
		Type: achievement.RewardBadge, IsApplicable: true, AchievementID: a.ID,
		Title: translation.Normalize(nil), Description: translation.Normalize(nil),
	}))
	require.NoError(t, s.CreateProgress(ctx, &progress.Record{UserID: "u1", AchievementID: a.ID, Status: progress.StatusFinished}))
	require.NoError(t, s.CreateProgress(ctx, &progress.Record{UserID: "u2", AchievementID: a.ID, Status: progress.StatusBlocked}))
	require.NoError(t, s.CreateProgress(ctx, &progress.Record{UserID: "u1", AchievementID: hidden.ID, Status: progress.StatusInProgress}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Categories)
	assert.Equal(t, 2, st.Achievements)
	assert.Equal(t, 1, st.Rewards)
	assert.Equal(t, 3, st.Progress)
	assert.Equal(t, 1, st.ProgressStats.Completed)
	assert.Equal(t, 1, st.ProgressStats.InProgress)
	assert.Equal(t, 1, st.ProgressStats.Blocked)
	assert.Equal(t, 1, st.AchievementStats.Hidden)
	assert.Equal(t, 1, st.AchievementStats.Visible)
	assert.Equal(t, 1, st.RewardStats.Applicable)
	assert.Equal(t, 1, st.RewardStats.Total)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	c, _ := seedAchievement(t, s, "copies", 0)

	got, err := s.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	got.Name["en"] = "mutated"
	got.Achievements[0].Target = 99

	again, err := s.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cat copies", again.Name["en"])
	assert.Equal(t, 0, again.Achievements[0].Target)
}

func TestMemoryListingsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return fixed }

	_, a := seedAchievement(t, s, "order", 10)
	var ids []string
	for _, user := range []string{"c", "a", "b"} {
		p := &progress.Record{UserID: user, AchievementID: a.ID, Status: progress.StatusInProgress}
		require.NoError(t, s.CreateProgress(ctx, p))
		ids = append(ids, p.ID)
	}

	list, err := s.ListProgressByAchievement(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, p := range list {
		assert.Equal(t, ids[i], p.ID)
	}
}

func TestSchemaRewardApplicableDefault(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`is_applicable\s+BOOLEAN NOT NULL DEFAULT FALSE`), schema)
	assert.Contains(t, schema, "ALTER TABLE rewards ALTER COLUMN is_applicable SET DEFAULT FALSE;")

	r := &achievement.Reward{
		Type: achievement.RewardBadge, Title: translation.Normalize(nil), Description: translation.Normalize(nil),
	}
	s := NewMemory()
	_, a := seedAchievement(t, s, "applicable-default", 1)
	r.AchievementID = a.ID
	require.NoError(t, s.CreateReward(context.Background(), r))

	got, err := s.GetReward(context.Background(), r.ID)
	require.NoError(t, err)
	assert.False(t, got.IsApplicable)
}

func TestPostgresContract(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := OpenPostgres(ctx, PoolConfig{URL: dbURL, MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Migrate(ctx))
	_, err = s.db.Exec(ctx, `TRUNCATE achievement_categories, achievements, rewards, user_achievement_progress CASCADE`)
	require.NoError(t, err)

	runContract(t, s)
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"achievementsAPI/internal/stats"
	"achievementsAPI/internal/translation"
	"achievementsAPI/internal/types/achievement"
	"achievementsAPI/internal/types/progress"
)

// Memory is a map backed Store with the same constraints as the Postgres
// schema: unique keys, foreign keys and cascading deletes. Returned values are
// copies.
type Memory struct {
	mu           sync.RWMutex
	categories   map[string]*achievement.Category
	achievements map[string]*achievement.Achievement
	rewards      map[string]*achievement.Reward
	progress     map[string]*progress.Record
	clock        func() time.Time
	last         time.Time
}

func NewMemory() *Memory {
	return &Memory{
		categories:   make(map[string]*achievement.Category),
		achievements: make(map[string]*achievement.Achievement),
		rewards:      make(map[string]*achievement.Reward),
		progress:     make(map[string]*progress.Record),
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// now returns strictly increasing timestamps so listings keep insertion order.
// Callers hold m.mu for writing.
func (m *Memory) now() time.Time {
	t := m.clock()
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() {}

func copyTranslations(t translation.Translations) translation.Translations {
	out := make(translation.Translations, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

func copyDetails(d map[string]any) map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func cloneCategory(c *achievement.Category) *achievement.Category {
	out := *c
	out.Name = copyTranslations(c.Name)
	out.Achievements = nil
	return &out
}

func cloneAchievement(a *achievement.Achievement) *achievement.Achievement {
	out := *a
	out.Title = copyTranslations(a.Title)
	out.Description = copyTranslations(a.Description)
	out.Category = nil
	out.Reward = nil
	return &out
}

func cloneReward(r *achievement.Reward) *achievement.Reward {
	out := *r
	out.Title = copyTranslations(r.Title)
	out.Description = copyTranslations(r.Description)
	out.Details = copyDetails(r.Details)
	out.Achievement = nil
	return &out
}

func cloneProgress(p *progress.Record) *progress.Record {
	out := *p
	out.Achievement = nil
	return &out
}

func byCreated[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return id(items[i]) < id(items[j])
	})
}

// Relation loaders. Callers hold m.mu.

func (m *Memory) rewardFor(achievementID string) *achievement.Reward {
	for _, r := range m.rewards {
		if r.AchievementID == achievementID {
			return r
		}
	}
	return nil
}

func (m *Memory) loadAchievement(a *achievement.Achievement, withCategory bool) *achievement.Achievement {
	out := cloneAchievement(a)
	if withCategory {
		if c, ok := m.categories[a.CategoryID]; ok {
			out.Category = cloneCategory(c)
		}
	}
	if r := m.rewardFor(a.ID); r != nil {
		out.Reward = cloneReward(r)
	}
	return out
}

func (m *Memory) loadCategory(c *achievement.Category) *achievement.Category {
	out := cloneCategory(c)
	out.Achievements = []*achievement.Achievement{}
	for _, a := range m.achievements {
		if a.CategoryID == c.ID {
			out.Achievements = append(out.Achievements, m.loadAchievement(a, false))
		}
	}
	byCreated(out.Achievements,
		func(a *achievement.Achievement) time.Time { return a.CreatedAt },
		func(a *achievement.Achievement) string { return a.ID })
	return out
}

func (m *Memory) loadReward(r *achievement.Reward) *achievement.Reward {
	out := cloneReward(r)
	if a, ok := m.achievements[r.AchievementID]; ok {
		out.Achievement = cloneAchievement(a)
	}
	return out
}

func (m *Memory) loadProgress(p *progress.Record) *progress.Record {
	out := cloneProgress(p)
	if a, ok := m.achievements[p.AchievementID]; ok {
		out.Achievement = m.loadAchievement(a, true)
	}
	return out
}

func (m *Memory) sortedProgress(keep func(*progress.Record) bool) []*progress.Record {
	records := []*progress.Record{}
	for _, p := range m.progress {
		if keep(p) {
			records = append(records, m.loadProgress(p))
		}
	}
	byCreated(records,
		func(p *progress.Record) time.Time { return p.CreatedAt },
		func(p *progress.Record) string { return p.ID })
	return records
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

func (m *Memory) ListCategories(ctx context.Context) ([]*achievement.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	categories := make([]*achievement.Category, 0, len(m.categories))
	for _, c := range m.categories {
		categories = append(categories, m.loadCategory(c))
	}
	byCreated(categories,
		func(c *achievement.Category) time.Time { return c.CreatedAt },
		func(c *achievement.Category) string { return c.ID })
	return categories, nil
}

func (m *Memory) GetCategory(ctx context.Context, id string) (*achievement.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.loadCategory(c), nil
}

func (m *Memory) keyTaken(key, exceptID string) bool {
	for _, c := range m.categories {
		if c.Key == key && c.ID != exceptID {
			return true
		}
	}
	return false
}

func (m *Memory) CreateCategory(ctx context.Context, c *achievement.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = newID()
	}
	if _, exists := m.categories[c.ID]; exists {
		return fmt.Errorf("%w: category id", ErrConflict)
	}
	if m.keyTaken(c.Key, "") {
		return fmt.Errorf("%w: category key", ErrConflict)
	}
	now := m.now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.categories[c.ID] = cloneCategory(c)
	return nil
}

func (m *Memory) UpdateCategory(ctx context.Context, c *achievement.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.categories[c.ID]
	if !ok {
		return ErrNotFound
	}
	if m.keyTaken(c.Key, c.ID) {
		return fmt.Errorf("%w: category key", ErrConflict)
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = m.now()
	m.categories[c.ID] = cloneCategory(c)
	return nil
}

func (m *Memory) DeleteCategory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[id]; !ok {
		return ErrNotFound
	}
	delete(m.categories, id)
	for aid, a := range m.achievements {
		if a.CategoryID == id {
			m.deleteAchievementLocked(aid)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Achievements
// ---------------------------------------------------------------------------

func (m *Memory) ListAchievements(ctx context.Context) ([]*achievement.Achievement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	achievements := make([]*achievement.Achievement, 0, len(m.achievements))
	for _, a := range m.achievements {
		achievements = append(achievements, m.loadAchievement(a, true))
	}
	byCreated(achievements,
		func(a *achievement.Achievement) time.Time { return a.CreatedAt },
		func(a *achievement.Achievement) string { return a.ID })
	return achievements, nil
}

func (m *Memory) GetAchievement(ctx context.Context, id string) (*achievement.Achievement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.achievements[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.loadAchievement(a, true), nil
}

func (m *Memory) CreateAchievement(ctx context.Context, a *achievement.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == "" {
		a.ID = newID()
	}
	if _, exists := m.achievements[a.ID]; exists {
		return fmt.Errorf("%w: achievement id", ErrConflict)
	}
	if _, ok := m.categories[a.CategoryID]; !ok {
		return fmt.Errorf("%w: category", ErrNotFound)
	}
	now := m.now()
	a.CreatedAt, a.UpdatedAt = now, now
	m.achievements[a.ID] = cloneAchievement(a)
	return nil
}

func (m *Memory) UpdateAchievement(ctx context.Context, a *achievement.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.achievements[a.ID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.categories[a.CategoryID]; !ok {
		return fmt.Errorf("%w: category", ErrNotFound)
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = m.now()
	m.achievements[a.ID] = cloneAchievement(a)
	return nil
}

func (m *Memory) DeleteAchievement(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.achievements[id]; !ok {
		return ErrNotFound
	}
	m.deleteAchievementLocked(id)
	return nil
}

func (m *Memory) deleteAchievementLocked(id string) {
	delete(m.achievements, id)
	for rid, r := range m.rewards {
		if r.AchievementID == id {
			delete(m.rewards, rid)
		}
	}
	for pid, p := range m.progress {
		if p.AchievementID == id {
			delete(m.progress, pid)
		}
	}
}

// ---------------------------------------------------------------------------
// Rewards
// ---------------------------------------------------------------------------

func (m *Memory) ListRewards(ctx context.Context) ([]*achievement.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rewards := make([]*achievement.Reward, 0, len(m.rewards))
	for _, r := range m.rewards {
		rewards = append(rewards, m.loadReward(r))
	}
	byCreated(rewards,
		func(r *achievement.Reward) time.Time { return r.CreatedAt },
		func(r *achievement.Reward) string { return r.ID })
	return rewards, nil
}

func (m *Memory) GetReward(ctx context.Context, id string) (*achievement.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rewards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.loadReward(r), nil
}

func (m *Memory) GetRewardByAchievement(ctx context.Context, achievementID string) (*achievement.Reward, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := m.rewardFor(achievementID)
	if r == nil {
		return nil, ErrNotFound
	}
	return m.loadReward(r), nil
}

func (m *Memory) checkReward(r *achievement.Reward) error {
	if _, ok := m.achievements[r.AchievementID]; !ok {
		return fmt.Errorf("%w: achievement", ErrNotFound)
	}
	if other := m.rewardFor(r.AchievementID); other != nil && other.ID != r.ID {
		return fmt.Errorf("%w: reward achievement", ErrConflict)
	}
	return nil
}

func (m *Memory) CreateReward(ctx context.Context, r *achievement.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		r.ID = newID()
	}
	if _, exists := m.rewards[r.ID]; exists {
		return fmt.Errorf("%w: reward id", ErrConflict)
	}
	if err := m.checkReward(r); err != nil {
		return err
	}
	if r.Details == nil {
		r.Details = map[string]any{}
	}
	now := m.now()
	r.CreatedAt, r.UpdatedAt = now, now
	m.rewards[r.ID] = cloneReward(r)
	return nil
}

func (m *Memory) UpdateReward(ctx context.Context, r *achievement.Reward) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.rewards[r.ID]
	if !ok {
		return ErrNotFound
	}
	if err := m.checkReward(r); err != nil {
		return err
	}
	if r.Details == nil {
		r.Details = map[string]any{}
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = m.now()
	m.rewards[r.ID] = cloneReward(r)
	return nil
}

func (m *Memory) DeleteReward(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rewards[id]; !ok {
		return ErrNotFound
	}
	delete(m.rewards, id)
	return nil
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

func (m *Memory) ListProgress(ctx context.Context) ([]*progress.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedProgress(func(*progress.Record) bool { return true }), nil
}

func (m *Memory) ListProgressByUser(ctx context.Context, userID string) ([]*progress.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedProgress(func(p *progress.Record) bool { return p.UserID == userID }), nil
}

func (m *Memory) ListProgressByAchievement(ctx context.Context, achievementID string) ([]*progress.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedProgress(func(p *progress.Record) bool { return p.AchievementID == achievementID }), nil
}

func (m *Memory) GetProgress(ctx context.Context, id string) (*progress.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.progress[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.loadProgress(p), nil
}

func (m *Memory) FindProgress(ctx context.Context, userID, achievementID string) (*progress.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.progress {
		if p.UserID == userID && p.AchievementID == achievementID {
			return m.loadProgress(p), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) checkProgress(p *progress.Record) error {
	if _, ok := m.achievements[p.AchievementID]; !ok {
		return fmt.Errorf("%w: achievement", ErrNotFound)
	}
	for _, other := range m.progress {
		if other.ID != p.ID && other.UserID == p.UserID && other.AchievementID == p.AchievementID {
			return fmt.Errorf("%w: user achievement progress", ErrConflict)
		}
	}
	return nil
}

func (m *Memory) CreateProgress(ctx context.Context, p *progress.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	if _, exists := m.progress[p.ID]; exists {
		return fmt.Errorf("%w: progress id", ErrConflict)
	}
	if err := m.checkProgress(p); err != nil {
		return err
	}
	now := m.now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.progress[p.ID] = cloneProgress(p)
	return nil
}

func (m *Memory) UpdateProgress(ctx context.Context, p *progress.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.progress[p.ID]
	if !ok {
		return ErrNotFound
	}
	if err := m.checkProgress(p); err != nil {
		return err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = m.now()
	m.progress[p.ID] = cloneProgress(p)
	return nil
}

func (m *Memory) DeleteProgress(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.progress[id]; !ok {
		return ErrNotFound
	}
	delete(m.progress, id)
	return nil
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

func (m *Memory) Stats(ctx context.Context) (*stats.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := &stats.Stats{
		Categories:   len(m.categories),
		Achievements: len(m.achievements),
		Rewards:      len(m.rewards),
		Progress:     len(m.progress),
	}
	for _, p := range m.progress {
		switch p.Status {
		case progress.StatusFinished:
			st.ProgressStats.Completed++
		case progress.StatusInProgress:
			st.ProgressStats.InProgress++
		case progress.StatusBlocked:
			st.ProgressStats.Blocked++
		}
	}
	for _, a := range m.achievements {
		if a.Hidden {
			st.AchievementStats.Hidden++
		} else {
			st.AchievementStats.Visible++
		}
	}
	for _, r := range m.rewards {
		if r.IsApplicable {
			st.RewardStats.Applicable++
		}
	}
	st.RewardStats.Total = len(m.rewards)
	return st, nil
}

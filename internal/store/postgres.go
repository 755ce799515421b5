package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"achievementsAPI/internal/stats"
	"achievementsAPI/internal/translation"
	"achievementsAPI/internal/types/achievement"
	"achievementsAPI/internal/types/progress"
)

//go:embed schema.sql
var schema string

type PoolConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// OpenPostgres builds a pool from cfg and verifies it with a ping.
func OpenPostgres(ctx context.Context, cfg PoolConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to Postgres")
	return &Postgres{db: pool}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Postgres) Close() {
	s.db.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

func decodeDetails(raw []byte) map[string]any {
	details := map[string]any{}
	if len(raw) == 0 {
		return details
	}
	if err := json.Unmarshal(raw, &details); err != nil || details == nil {
		return map[string]any{}
	}
	return details
}

type scanner interface {
	Scan(dest ...any) error
}

// ---------------------------------------------------------------------------
// Achievements
// ---------------------------------------------------------------------------

const achievementColumns = `
	a.id, a.title, a.description, a.icon, a.hidden, COALESCE(a.target, 0), a.category_id, a.created_at, a.updated_at,
	c.id, c.key, c.name, c.created_at, c.updated_at,
	r.id, r.type, r.title, r.description, r.icon, r.is_applicable, r.details, r.created_at, r.updated_at`

const achievementJoins = `
	JOIN achievement_categories c ON c.id = a.category_id
	LEFT JOIN rewards r ON r.achievement_id = a.id`

// achievementRow collects one achievement joined with its category and
// optional reward.
type achievementRow struct {
	a            achievement.Achievement
	c            achievement.Category
	title        []byte
	description  []byte
	categoryName []byte

	rewardID          *string
	rewardType        *string
	rewardTitle       []byte
	rewardDescription []byte
	rewardIcon        *string
	rewardApplicable  *bool
	rewardDetails     []byte
	rewardCreatedAt   *time.Time
	rewardUpdatedAt   *time.Time
}

func (r *achievementRow) dest() []any {
	return []any{
		&r.a.ID, &r.title, &r.description, &r.a.Icon, &r.a.Hidden, &r.a.Target, &r.a.CategoryID, &r.a.CreatedAt, &r.a.UpdatedAt,
		&r.c.ID, &r.c.Key, &r.categoryName, &r.c.CreatedAt, &r.c.UpdatedAt,
		&r.rewardID, &r.rewardType, &r.rewardTitle, &r.rewardDescription, &r.rewardIcon, &r.rewardApplicable,
		&r.rewardDetails, &r.rewardCreatedAt, &r.rewardUpdatedAt,
	}
}

func (r *achievementRow) result() *achievement.Achievement {
	a := r.a
	a.Title = translation.Decode(r.title)
	a.Description = translation.Decode(r.description)

	c := r.c
	c.Name = translation.Decode(r.categoryName)
	a.Category = &c

	if r.rewardID != nil {
		reward := &achievement.Reward{
			ID:            *r.rewardID,
			Title:         translation.Decode(r.rewardTitle),
			Description:   translation.Decode(r.rewardDescription),
			Icon:          r.rewardIcon,
			Details:       decodeDetails(r.rewardDetails),
			AchievementID: a.ID,
		}
		if r.rewardType != nil {
			reward.Type = achievement.RewardType(*r.rewardType)
		}
		if r.rewardApplicable != nil {
			reward.IsApplicable = *r.rewardApplicable
		}
		if r.rewardCreatedAt != nil {
			reward.CreatedAt = *r.rewardCreatedAt
		}
		if r.rewardUpdatedAt != nil {
			reward.UpdatedAt = *r.rewardUpdatedAt
		}
		a.Reward = reward
	}
	return &a
}

func scanAchievement(row scanner) (*achievement.Achievement, error) {
	var r achievementRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.result(), nil
}

func (s *Postgres) queryAchievements(ctx context.Context, query string, args ...any) ([]*achievement.Achievement, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	achievements := []*achievement.Achievement{}
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		achievements = append(achievements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievements: %w", err)
	}
	return achievements, nil
}

func (s *Postgres) ListAchievements(ctx context.Context) ([]*achievement.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements a` + achievementJoins + `
	ORDER BY a.created_at, a.id`
	return s.queryAchievements(ctx, query)
}

func (s *Postgres) GetAchievement(ctx context.Context, id string) (*achievement.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements a` + achievementJoins + `
	WHERE a.id = $1`
	a, err := scanAchievement(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (s *Postgres) CreateAchievement(ctx context.Context, a *achievement.Achievement) error {
	if a.ID == "" {
		a.ID = newID()
	}
	query := `
		INSERT INTO achievements (id, title, description, icon, hidden, target, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query,
		a.ID, a.Title, a.Description, a.Icon, a.Hidden, a.Target, a.CategoryID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) UpdateAchievement(ctx context.Context, a *achievement.Achievement) error {
	query := `
		UPDATE achievements
		SET title = $2, description = $3, icon = $4, hidden = $5, target = $6, category_id = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query,
		a.ID, a.Title, a.Description, a.Icon, a.Hidden, a.Target, a.CategoryID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) DeleteAchievement(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "achievements", id)
}

// deleteByID runs a delete against one of the fixed table names above.
func (s *Postgres) deleteByID(ctx context.Context, table, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

func scanCategory(row scanner) (*achievement.Category, error) {
	var c achievement.Category
	var name []byte
	if err := row.Scan(&c.ID, &c.Key, &name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Name = translation.Decode(name)
	c.Achievements = []*achievement.Achievement{}
	return &c, nil
}

// attachAchievements loads the achievements (with rewards) of the given
// categories in one query.
func (s *Postgres) attachAchievements(ctx context.Context, categories []*achievement.Category) error {
	if len(categories) == 0 {
		return nil
	}
	byID := make(map[string]*achievement.Category, len(categories))
	ids := make([]string, 0, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	query := `SELECT ` + achievementColumns + ` FROM achievements a` + achievementJoins + `
	WHERE a.category_id = ANY($1)
	ORDER BY a.created_at, a.id`
	achievements, err := s.queryAchievements(ctx, query, ids)
	if err != nil {
		return err
	}
	for _, a := range achievements {
		a.Category = nil
		if c, ok := byID[a.CategoryID]; ok {
			c.Achievements = append(c.Achievements, a)
		}
	}
	return nil
}

func (s *Postgres) ListCategories(ctx context.Context) ([]*achievement.Category, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, key, name, created_at, updated_at
		FROM achievement_categories
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []*achievement.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	if err := s.attachAchievements(ctx, categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Postgres) GetCategory(ctx context.Context, id string) (*achievement.Category, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, key, name, created_at, updated_at
		FROM achievement_categories
		WHERE id = $1
	`, id)
	c, err := scanCategory(row)
	if err != nil {
		return nil, mapError(err)
	}
	if err := s.attachAchievements(ctx, []*achievement.Category{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Postgres) CreateCategory(ctx context.Context, c *achievement.Category) error {
	if c.ID == "" {
		c.ID = newID()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO achievement_categories (id, key, name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, c.ID, c.Key, c.Name).Scan(&c.CreatedAt, &c.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) UpdateCategory(ctx context.Context, c *achievement.Category) error {
	err := s.db.QueryRow(ctx, `
		UPDATE achievement_categories
		SET key = $2, name = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, c.ID, c.Key, c.Name).Scan(&c.CreatedAt, &c.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) DeleteCategory(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "achievement_categories", id)
}

// ---------------------------------------------------------------------------
// Rewards
// ---------------------------------------------------------------------------

const rewardQuery = `
	SELECT r.id, r.type, r.title, r.description, r.icon, r.is_applicable, r.details, r.achievement_id, r.created_at, r.updated_at,
		a.id, a.title, a.description, a.icon, a.hidden, COALESCE(a.target, 0), a.category_id, a.created_at, a.updated_at
	FROM rewards r
	JOIN achievements a ON a.id = r.achievement_id`

func scanReward(row scanner) (*achievement.Reward, error) {
	var (
		r                                  achievement.Reward
		a                                  achievement.Achievement
		title, description, details        []byte
		achievementTitle, achievementDescr []byte
	)
	err := row.Scan(
		&r.ID, &r.Type, &title, &description, &r.Icon, &r.IsApplicable, &details, &r.AchievementID, &r.CreatedAt, &r.UpdatedAt,
		&a.ID, &achievementTitle, &achievementDescr, &a.Icon, &a.Hidden, &a.Target, &a.CategoryID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Title = translation.Decode(title)
	r.Description = translation.Decode(description)
	r.Details = decodeDetails(details)
	a.Title = translation.Decode(achievementTitle)
	a.Description = translation.Decode(achievementDescr)
	r.Achievement = &a
	return &r, nil
}

func (s *Postgres) ListRewards(ctx context.Context) ([]*achievement.Reward, error) {
	rows, err := s.db.Query(ctx, rewardQuery+` ORDER BY r.created_at, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	rewards := []*achievement.Reward{}
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		rewards = append(rewards, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rewards: %w", err)
	}
	return rewards, nil
}

func (s *Postgres) GetReward(ctx context.Context, id string) (*achievement.Reward, error) {
	r, err := scanReward(s.db.QueryRow(ctx, rewardQuery+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

func (s *Postgres) GetRewardByAchievement(ctx context.Context, achievementID string) (*achievement.Reward, error) {
	r, err := scanReward(s.db.QueryRow(ctx, rewardQuery+` WHERE r.achievement_id = $1`, achievementID))
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

func (s *Postgres) CreateReward(ctx context.Context, r *achievement.Reward) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.Details == nil {
		r.Details = map[string]any{}
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO rewards (id, type, title, description, icon, is_applicable, details, achievement_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, r.ID, string(r.Type), r.Title, r.Description, r.Icon, r.IsApplicable, r.Details, r.AchievementID,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) UpdateReward(ctx context.Context, r *achievement.Reward) error {
	if r.Details == nil {
		r.Details = map[string]any{}
	}
	err := s.db.QueryRow(ctx, `
		UPDATE rewards
		SET type = $2, title = $3, description = $4, icon = $5, is_applicable = $6, details = $7,
			achievement_id = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, r.ID, string(r.Type), r.Title, r.Description, r.Icon, r.IsApplicable, r.Details, r.AchievementID,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) DeleteReward(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "rewards", id)
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

const progressQuery = `
	SELECT p.id, p.user_id, p.achievement_id, p.progress, p.current_step, p.created_at, p.updated_at,` + achievementColumns + `
	FROM user_achievement_progress p
	JOIN achievements a ON a.id = p.achievement_id` + achievementJoins

func scanProgress(row scanner) (*progress.Record, error) {
	var p progress.Record
	var a achievementRow
	dest := append([]any{
		&p.ID, &p.UserID, &p.AchievementID, &p.Status, &p.CurrentStep, &p.CreatedAt, &p.UpdatedAt,
	}, a.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p.Achievement = a.result()
	return &p, nil
}

func (s *Postgres) queryProgress(ctx context.Context, query string, args ...any) ([]*progress.Record, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	records := []*progress.Record{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress: %w", err)
	}
	return records, nil
}

func (s *Postgres) ListProgress(ctx context.Context) ([]*progress.Record, error) {
	return s.queryProgress(ctx, progressQuery+` ORDER BY p.created_at, p.id`)
}

func (s *Postgres) ListProgressByUser(ctx context.Context, userID string) ([]*progress.Record, error) {
	return s.queryProgress(ctx, progressQuery+` WHERE p.user_id = $1 ORDER BY p.created_at, p.id`, userID)
}

func (s *Postgres) ListProgressByAchievement(ctx context.Context, achievementID string) ([]*progress.Record, error) {
	return s.queryProgress(ctx, progressQuery+` WHERE p.achievement_id = $1 ORDER BY p.created_at, p.id`, achievementID)
}

func (s *Postgres) GetProgress(ctx context.Context, id string) (*progress.Record, error) {
	p, err := scanProgress(s.db.QueryRow(ctx, progressQuery+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

func (s *Postgres) FindProgress(ctx context.Context, userID, achievementID string) (*progress.Record, error) {
	p, err := scanProgress(s.db.QueryRow(ctx,
		progressQuery+` WHERE p.user_id = $1 AND p.achievement_id = $2`, userID, achievementID))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// CreateProgress relies on the (user_id, achievement_id) unique constraint to
// reject a concurrent duplicate with ErrConflict.
func (s *Postgres) CreateProgress(ctx context.Context, p *progress.Record) error {
	if p.ID == "" {
		p.ID = newID()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO user_achievement_progress (id, user_id, achievement_id, progress, current_step)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, p.ID, p.UserID, p.AchievementID, string(p.Status), p.CurrentStep).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) UpdateProgress(ctx context.Context, p *progress.Record) error {
	err := s.db.QueryRow(ctx, `
		UPDATE user_achievement_progress
		SET user_id = $2, achievement_id = $3, progress = $4, current_step = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, p.ID, p.UserID, p.AchievementID, string(p.Status), p.CurrentStep).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

func (s *Postgres) DeleteProgress(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "user_achievement_progress", id)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

func (s *Postgres) Stats(ctx context.Context) (*stats.Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM achievement_categories),
			(SELECT COUNT(*) FROM achievements),
			(SELECT COUNT(*) FROM rewards),
			(SELECT COUNT(*) FROM user_achievement_progress),
			(SELECT COUNT(*) FROM user_achievement_progress WHERE progress = 'FINISHED'),
			(SELECT COUNT(*) FROM user_achievement_progress WHERE progress = 'INPROGRESS'),
			(SELECT COUNT(*) FROM user_achievement_progress WHERE progress = 'BLOCKED'),
			(SELECT COUNT(*) FROM achievements WHERE hidden),
			(SELECT COUNT(*) FROM achievements WHERE NOT hidden),
			(SELECT COUNT(*) FROM rewards WHERE is_applicable)
	`
	var st stats.Stats
	err := s.db.QueryRow(ctx, query).Scan(
		&st.Categories,
		&st.Achievements,
		&st.Rewards,
		&st.Progress,
		&st.ProgressStats.Completed,
		&st.ProgressStats.InProgress,
		&st.ProgressStats.Blocked,
		&st.AchievementStats.Hidden,
		&st.AchievementStats.Visible,
		&st.RewardStats.Applicable,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	st.RewardStats.Total = st.Rewards
	return &st, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"achievementsAPI/internal/apperror"
	"achievementsAPI/internal/progression"
	"achievementsAPI/internal/store"
	"achievementsAPI/internal/types/achievement"
	"achievementsAPI/internal/types/progress"
)

var progressTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "progress_transitions_total",
		Help: "Committed progress writes by previous and resulting status",
	},
	[]string{"from", "to"},
)

// MetricsCollectors returns the service level metrics for registration.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{progressTransitions, pushResults}
}

type ProgressRepository interface {
	GetAchievement(ctx context.Context, id string) (*achievement.Achievement, error)
	ListProgress(ctx context.Context) ([]*progress.Record, error)
	ListProgressByUser(ctx context.Context, userID string) ([]*progress.Record, error)
	GetProgress(ctx context.Context, id string) (*progress.Record, error)
	FindProgress(ctx context.Context, userID, achievementID string) (*progress.Record, error)
	CreateProgress(ctx context.Context, p *progress.Record) error
	UpdateProgress(ctx context.Context, p *progress.Record) error
	DeleteProgress(ctx context.Context, id string) error
}

// ProgressChange describes a committed progress write. Previous is nil for a
// newly created record. View is the payload returned to the caller.
type ProgressChange struct {
	Record   *progress.Record
	Previous *progress.Record
	View     *progress.View
}

// ProgressNotifier runs after a progress write is committed. It must not
// block for long and cannot fail the request.
type ProgressNotifier interface {
	ProgressChanged(ctx context.Context, change ProgressChange)
}

type ProgressService struct {
	repo      ProgressRepository
	notifiers []ProgressNotifier
}

func NewProgressService(repo ProgressRepository, notifiers ...ProgressNotifier) *ProgressService {
	return &ProgressService{repo: repo, notifiers: notifiers}
}

func localizeRecords(records []*progress.Record, lang string) []*progress.View {
	views := make([]*progress.View, 0, len(records))
	for _, r := range records {
		views = append(views, progress.Localize(r, lang))
	}
	return views
}

func (s *ProgressService) List(ctx context.Context, lang string) ([]*progress.View, error) {
	records, err := s.repo.ListProgress(ctx)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("failed to list progress: %w", err))
	}
	return localizeRecords(records, lang), nil
}

func (s *ProgressService) ListByUser(ctx context.Context, userID, lang string) ([]*progress.View, error) {
	records, err := s.repo.ListProgressByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("failed to list progress for user %s: %w", userID, err))
	}
	return localizeRecords(records, lang), nil
}

func (s *ProgressService) Get(ctx context.Context, id, lang string) (*progress.View, error) {
	record, err := s.repo.GetProgress(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Progress not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to get progress: %w", err))
	}
	return progress.Localize(record, lang), nil
}

func parseRequestedStatus(raw *string) (*progress.Status, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	status, ok := progress.ParseStatus(*raw)
	if !ok {
		return nil, apperror.Validation("Invalid progress value. Must be one of: %s", progress.StatusList())
	}
	return &status, nil
}

func validateStep(step *int) error {
	return validateCount(step, "currentStep")
}

func (s *ProgressService) loadAchievement(ctx context.Context, id string) (*achievement.Achievement, error) {
	a, err := s.repo.GetAchievement(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Achievement not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to get achievement: %w", err))
	}
	return a, nil
}

func resolveState(in progression.Input) (progression.State, error) {
	state, err := progression.Resolve(in)
	if err != nil {
		var notReached *progression.TargetNotReachedError
		if errors.As(err, &notReached) {
			return state, apperror.Validation("Cannot set progress to FINISHED when target is not reached").
				With("currentStep", notReached.Step).
				With("target", notReached.Target)
		}
		return state, apperror.Internal(err)
	}
	return state, nil
}

// Create starts tracking a user's progress toward an achievement.
func (s *ProgressService) Create(ctx context.Context, req *progress.CreateRequest, lang string) (*progress.View, error) {
	if req.UserID == nil || req.AchievementID == nil ||
		strings.TrimSpace(*req.UserID) == "" || strings.TrimSpace(*req.AchievementID) == "" {
		return nil, apperror.Validation("userId and achievementId are required")
	}
	if err := validateStep(req.CurrentStep); err != nil {
		return nil, err
	}
	requested, err := parseRequestedStatus(req.RequestedStatus())
	if err != nil {
		return nil, err
	}

	userID, achievementID := *req.UserID, *req.AchievementID

	a, err := s.loadAchievement(ctx, achievementID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindProgress(ctx, userID, achievementID)
	switch {
	case err == nil:
		return nil, duplicateProgress(existing)
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperror.Internal(fmt.Errorf("failed to check existing progress: %w", err))
	}

	state, err := resolveState(progression.Input{
		Target:    a.Target,
		Requested: requested,
		Step:      req.CurrentStep,
	})
	if err != nil {
		return nil, err
	}

	record := &progress.Record{
		UserID:        userID,
		AchievementID: achievementID,
		Status:        state.Status,
		CurrentStep:   state.Step,
	}
	if err := s.repo.CreateProgress(ctx, record); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a race with a concurrent create for the same pair.
			existing, findErr := s.repo.FindProgress(ctx, userID, achievementID)
			if findErr != nil {
				existing = nil
			}
			return nil, duplicateProgress(existing)
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Achievement not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to create progress: %w", err))
	}

	record.Achievement = a
	return s.committed(ctx, record, nil, lang), nil
}

func duplicateProgress(existing *progress.Record) error {
	appErr := apperror.Conflict("Progress record already exists for this user and achievement")
	if existing != nil {
		existing.Achievement = nil
		appErr = appErr.With("existingProgress", existing)
	}
	return appErr
}

// Update applies a partial change. Omitted fields keep their stored values; a
// new achievementId is validated and its target drives the derivation.
func (s *ProgressService) Update(ctx context.Context, id string, req *progress.UpdateRequest, lang string) (*progress.View, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.Validation("id is required")
	}
	if req.UserID != nil && strings.TrimSpace(*req.UserID) == "" {
		return nil, apperror.Validation("userId must be a non-empty string")
	}
	if req.AchievementID != nil && strings.TrimSpace(*req.AchievementID) == "" {
		return nil, apperror.Validation("achievementId must be a non-empty string")
	}
	if err := validateStep(req.CurrentStep); err != nil {
		return nil, err
	}
	requested, err := parseRequestedStatus(req.RequestedStatus())
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetProgress(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Progress record not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to get progress: %w", err))
	}

	a := existing.Achievement
	achievementID := existing.AchievementID
	if req.AchievementID != nil && *req.AchievementID != existing.AchievementID {
		achievementID = *req.AchievementID
		a = nil
	}
	if a == nil {
		if a, err = s.loadAchievement(ctx, achievementID); err != nil {
			return nil, err
		}
	}

	state, err := resolveState(progression.Input{
		Target:    a.Target,
		Requested: requested,
		Step:      req.CurrentStep,
		Existing:  &progression.State{Status: existing.Status, Step: existing.CurrentStep},
	})
	if err != nil {
		return nil, err
	}

	userID := existing.UserID
	if req.UserID != nil {
		userID = *req.UserID
	}

	record := &progress.Record{
		ID:            existing.ID,
		UserID:        userID,
		AchievementID: achievementID,
		Status:        state.Status,
		CurrentStep:   state.Step,
	}
	if err := s.repo.UpdateProgress(ctx, record); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, apperror.Conflict("Progress record already exists for this user and achievement")
		case errors.Is(err, store.ErrNotFound):
			return nil, apperror.NotFound("Progress record not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to update progress: %w", err))
	}

	record.Achievement = a
	return s.committed(ctx, record, existing, lang), nil
}

// committed reloads the stored record with its relations, builds the response
// and runs the post-commit notifiers. The write has already succeeded, so a
// failed reload falls back to the written record.
func (s *ProgressService) committed(ctx context.Context, record, previous *progress.Record, lang string) *progress.View {
	stored, err := s.repo.GetProgress(ctx, record.ID)
	if err != nil {
		log.Printf("Failed to reload progress %s after write: %v", record.ID, err)
		stored = record
	}

	from := "NONE"
	if previous != nil {
		from = string(previous.Status)
	}
	progressTransitions.WithLabelValues(from, string(stored.Status)).Inc()

	view := progress.Localize(stored, lang)
	s.notify(ctx, ProgressChange{Record: stored, Previous: previous, View: view})
	return view
}

func (s *ProgressService) notify(ctx context.Context, change ProgressChange) {
	for _, n := range s.notifiers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("Progress notifier panic for %s: %v\n%s", change.Record.ID, rec, debug.Stack())
				}
			}()
			n.ProgressChanged(ctx, change)
		}()
	}
}

func (s *ProgressService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.Validation("id is required")
	}
	if err := s.repo.DeleteProgress(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NotFound("Progress record not found")
		}
		return apperror.Internal(fmt.Errorf("failed to delete progress: %w", err))
	}
	return nil
}

// GetForUserAchievement answers whether a user has progress on an achievement.
// An unknown achievement is an error; a missing record is a normal answer.
func (s *ProgressService) GetForUserAchievement(ctx context.Context, userID, achievementID, lang string) (*progress.Lookup, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(achievementID) == "" {
		return nil, apperror.Validation("userId and achievementId are required")
	}

	if _, err := s.repo.GetAchievement(ctx, achievementID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Achievement not found").With("status", false)
		}
		return nil, apperror.Internal(fmt.Errorf("failed to get achievement: %w", err))
	}

	record, err := s.repo.FindProgress(ctx, userID, achievementID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &progress.Lookup{
				Found:         false,
				Status:        false,
				Message:       "Progress not found",
				UserID:        userID,
				AchievementID: achievementID,
			}, nil
		}
		return nil, apperror.Internal(fmt.Errorf("failed to find progress: %w", err))
	}

	return &progress.Lookup{
		Found:    true,
		Status:   true,
		Progress: progress.Localize(record, lang),
	}, nil
}

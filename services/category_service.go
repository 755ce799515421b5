package services

import (
	"context"
	"errors"
	"fmt"

	"achievementsAPI/internal/apperror"
	"achievementsAPI/internal/store"
	"achievementsAPI/internal/translation"
	"achievementsAPI/internal/types/achievement"
)

type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]*achievement.Category, error)
	GetCategory(ctx context.Context, id string) (*achievement.Category, error)
	CreateCategory(ctx context.Context, c *achievement.Category) error
	UpdateCategory(ctx context.Context, c *achievement.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

type CategoryService struct {
	repo CategoryRepository
}

func NewCategoryService(repo CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context, lang string) ([]*achievement.CategoryView, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("failed to list categories: %w", err))
	}
	views := make([]*achievement.CategoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, achievement.LocalizeCategory(c, lang))
	}
	return views, nil
}

func (s *CategoryService) Get(ctx context.Context, id, lang string) (*achievement.CategoryView, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Category not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to get category: %w", err))
	}
	return achievement.LocalizeCategory(c, lang), nil
}

func validateKey(raw string) (string, error) {
	key := sanitizeString(raw)
	if len(key) < minKeyLength || len(key) > maxKeyLength {
		return "", apperror.Validation("key must be between %d and %d characters", minKeyLength, maxKeyLength)
	}
	return key, nil
}

func (s *CategoryService) Create(ctx context.Context, req *achievement.CreateCategoryRequest, lang string) (*achievement.CategoryView, error) {
	if req.Key == nil || *req.Key == "" || !req.Name.IsSet() {
		return nil, apperror.Validation("key and name are required")
	}
	key, err := validateKey(*req.Key)
	if err != nil {
		return nil, err
	}
	name := req.Name.Resolve()
	if !translation.HasContent(name) {
		return nil, apperror.Validation("At least one translation must be provided")
	}

	c := &achievement.Category{Key: key, Name: name}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperror.Conflict("Category with this key already exists")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to create category: %w", err))
	}
	return achievement.LocalizeCategory(c, lang), nil
}

func (s *CategoryService) Update(ctx context.Context, id string, req *achievement.UpdateCategoryRequest, lang string) (*achievement.CategoryView, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("Category not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to get category: %w", err))
	}

	if req.Key != nil {
		if c.Key, err = validateKey(*req.Key); err != nil {
			return nil, err
		}
	}
	if req.Name.IsSet() {
		name := req.Name.Resolve()
		if !translation.HasContent(name) {
			return nil, apperror.Validation("At least one translation must be provided")
		}
		c.Name = name
	}

	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, apperror.Conflict("Category with this key already exists")
		case errors.Is(err, store.ErrNotFound):
			return nil, apperror.NotFound("Category not found")
		}
		return nil, apperror.Internal(fmt.Errorf("failed to update category: %w", err))
	}
	return achievement.LocalizeCategory(c, lang), nil
}

func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NotFound("Category not found")
		}
		return apperror.Internal(fmt.Errorf("failed to delete category: %w", err))
	}
	return nil
}

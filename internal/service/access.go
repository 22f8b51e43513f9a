package service

import (
	"context"
	"fmt"

	"github.com/aasim911-prog/department/internal/models"
	"github.com/aasim911-prog/department/internal/repository"
)

// authorizeStudentAccess lets teachers read any student and students read
// only themselves.
func authorizeStudentAccess(ctx context.Context, users repository.UserRepository, actor models.Identity, studentID string) error {
	switch actor.Role {
	case models.RoleTeacher:
		return nil
	case models.RoleStudent:
		profile, err := users.GetBySubject(ctx, actor.Subject)
		if err != nil {
			return fmt.Errorf("failed to load caller profile: %w", err)
		}
		if profile == nil || profile.StudentID == nil || *profile.StudentID != studentID {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

// actorUserID resolves the directory id of the caller, or nil when the caller
// has not registered a profile.
func actorUserID(ctx context.Context, users repository.UserRepository, actor models.Identity) (*string, error) {
	profile, err := users.GetBySubject(ctx, actor.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to load caller profile: %w", err)
	}
	if profile == nil {
		return nil, nil
	}
	return &profile.ID, nil
}

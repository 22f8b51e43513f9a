package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aasim911-prog/department/internal/models"
	"github.com/aasim911-prog/department/internal/repository"
)

const (
	defaultStudentLimit = 50
	maxStudentLimit     = 200
)

type UserService interface {
	Register(ctx context.Context, actor models.Identity, req *models.CreateUserRequest) (*models.User, error)
	GetProfile(ctx context.Context, actor models.Identity) (*models.User, error)
	ListStudents(ctx context.Context, filter models.StudentFilter) (*models.StudentsResponse, error)
}

type userService struct {
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

func NewUserService(userRepo repository.UserRepository, logger zerolog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger,
	}
}

func (s *userService) Register(ctx context.Context, actor models.Identity, req *models.CreateUserRequest) (*models.User, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user := &models.User{
		ID:          uuid.New().String(),
		AuthSubject: actor.Subject,
		Name:        strings.TrimSpace(req.Name),
		Role:        actor.Role,
		Department:  strings.TrimSpace(req.Department),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	switch actor.Role {
	case models.RoleTeacher:
		if req.Email == nil {
			return nil, fieldError("email", "email is required for teachers")
		}
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		user.Email = &email
	case models.RoleStudent:
		if req.StudentID == nil || strings.TrimSpace(*req.StudentID) == "" {
			return nil, fieldError("student_id", "student_id is required for students")
		}
		if req.Semester == nil {
			return nil, fieldError("semester", "semester is required for students")
		}
		sid := strings.TrimSpace(*req.StudentID)
		user.StudentID = &sid
		user.Semester = req.Semester
		user.Email = req.Email
	default:
		return nil, ErrForbidden
	}

	existing, err := s.userRepo.GetBySubject(ctx, actor.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing profile: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrUserExists, err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("role", user.Role.String()).
		Str("department", user.Department).
		Msg("User registered")

	return user, nil
}

func (s *userService) GetProfile(ctx context.Context, actor models.Identity) (*models.User, error) {
	user, err := s.userRepo.GetBySubject(ctx, actor.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) ListStudents(ctx context.Context, filter models.StudentFilter) (*models.StudentsResponse, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultStudentLimit
	}
	if filter.Limit > maxStudentLimit {
		filter.Limit = maxStudentLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	students, total, err := s.userRepo.ListStudents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	return &models.StudentsResponse{
		Students: students,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/repository"
)

// ErrTeacherNotFound is returned when a teacher lookup misses.
var ErrTeacherNotFound = errors.New("teacher not found")

// TeacherService handles teacher accounts and authentication.
type TeacherService struct {
	teacherRepo *repository.TeacherRepository
	authService *AuthService
}

// NewTeacherService creates a new TeacherService.
func NewTeacherService(teacherRepo *repository.TeacherRepository, authService *AuthService) *TeacherService {
	return &TeacherService{teacherRepo: teacherRepo, authService: authService}
}

// Login authenticates a teacher by email and password.
func (s *TeacherService) Login(ctx context.Context, req *model.TeacherLoginRequest) (*model.TeacherLoginResponse, error) {
	teacher, err := s.teacherRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get teacher: %w", err)
	}

	if err := s.authService.CheckPassword(teacher.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.authService.GenerateTeacherToken(teacher.ID)
	if err != nil {
		return nil, err
	}

	return &model.TeacherLoginResponse{Token: token, Teacher: *teacher}, nil
}

// GetByID retrieves one teacher.
func (s *TeacherService) GetByID(ctx context.Context, id int) (*model.Teacher, error) {
	teacher, err := s.teacherRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTeacherNotFound
		}
		return nil, err
	}
	return teacher, nil
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/notify"
	"github.com/stemsi/bimbel-backend/internal/repository"
)

// Student management errors.
var (
	ErrStudentNotFound = errors.New("student not found")
	ErrNISNTaken       = errors.New("nisn already registered")
)

// StudentService handles student accounts. Creating a student seeds their
// progression: the first exam of the foundation group and of group 1 start
// unlocked, everything else stays locked until earned or opened by a
// teacher.
type StudentService struct {
	studentRepo  *repository.StudentRepository
	examRepo     *repository.ExamRepository
	progressRepo *repository.ProgressRepository
	authService  *AuthService
	bus          *notify.Bus
	log          zerolog.Logger
}

// NewStudentService creates a new StudentService.
func NewStudentService(
	studentRepo *repository.StudentRepository,
	examRepo *repository.ExamRepository,
	progressRepo *repository.ProgressRepository,
	authService *AuthService,
	bus *notify.Bus,
	log zerolog.Logger,
) *StudentService {
	return &StudentService{
		studentRepo:  studentRepo,
		examRepo:     examRepo,
		progressRepo: progressRepo,
		authService:  authService,
		bus:          bus,
		log:          log,
	}
}

// Login authenticates a student by NISN and password.
func (s *StudentService) Login(ctx context.Context, req *model.StudentLoginRequest) (*model.StudentLoginResponse, error) {
	student, err := s.studentRepo.GetByNISN(ctx, req.NISN)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get student: %w", err)
	}

	if err := s.authService.CheckPassword(student.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.authService.GenerateStudentToken(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	return &model.StudentLoginResponse{Token: token, Student: *student}, nil
}

// Create registers a student account and unlocks their entry points: the
// first published exam of the foundation group and of group 1.
func (s *StudentService) Create(ctx context.Context, req *model.CreateStudentRequest) (*model.Student, error) {
	if _, err := s.studentRepo.GetByNISN(ctx, req.NISN); err == nil {
		return nil, ErrNISNTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check nisn: %w", err)
	}

	hash, err := s.authService.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	student := &model.Student{
		NISN:         req.NISN,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := s.studentRepo.Create(ctx, student); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}

	s.unlockEntryExams(ctx, student.ID)
	s.bus.StudentAdded(ctx, student.ID)

	return student, nil
}

// unlockEntryExams seeds the initial unlocks. A group without a published
// first exam is skipped silently: the unlock happens later, when the exam
// service publishes one.
func (s *StudentService) unlockEntryExams(ctx context.Context, studentID int) {
	for _, group := range []int{model.FoundationGroup, 1} {
		exam, err := s.examRepo.GetFirstInGroup(ctx, group)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				s.log.Error().Err(err).Int("student_id", studentID).Int("group", group).
					Msg("lookup first exam for unlock")
			}
			continue
		}
		if _, err := s.progressRepo.EnsureUnlocked(ctx, exam.ID, studentID); err != nil &&
			!errors.Is(err, repository.ErrNoTransition) {
			s.log.Error().Err(err).Int("student_id", studentID).
				Str("exam_id", exam.ID.String()).Msg("unlock entry exam")
		}
	}
}

// GetByID retrieves one student.
func (s *StudentService) GetByID(ctx context.Context, id int) (*model.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

// List retrieves students with pagination.
func (s *StudentService) List(ctx context.Context, limit, offset int) ([]model.Student, int, error) {
	return s.studentRepo.ListPaginated(ctx, limit, offset)
}

// Update modifies a student account. An empty password keeps the current one.
func (s *StudentService) Update(ctx context.Context, id int, req *model.UpdateStudentRequest) (*model.Student, error) {
	student, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	student.NISN = req.NISN
	student.Name = req.Name
	student.PasswordHash = ""
	if req.Password != "" {
		hash, err := s.authService.HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		student.PasswordHash = hash
	}

	if err := s.studentRepo.Update(ctx, student); err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}
	return s.studentRepo.GetByID(ctx, id)
}

// Delete removes a student account together with their progression and
// review exams (FK cascades), and clears any active session.
func (s *StudentService) Delete(ctx context.Context, id int) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.studentRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}

	if err := s.authService.ResetStudentSession(ctx, id); err != nil {
		s.log.Warn().Err(err).Int("student_id", id).Msg("reset session on delete")
	}

	s.bus.StudentRemoved(ctx, id)
	return nil
}

// ResetSession clears a student's single-device session so they can log in
// again from a new device.
func (s *StudentService) ResetSession(ctx context.Context, id int) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.authService.ResetStudentSession(ctx, id)
}

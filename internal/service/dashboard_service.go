package service

import (
	"context"

	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/repository"
)

// DashboardData consolidates all metrics for the teacher dashboard.
type DashboardData struct {
	TotalStudents     int                                    `json:"total_students"`
	TotalExams        int                                    `json:"total_exams"`
	TotalQuestions    int                                    `json:"total_questions"`
	TotalReviewExams  int                                    `json:"total_review_exams"`
	ExamStatusCounts  map[model.ExamStatus]int               `json:"exam_status_counts"`
	RecentSubmissions []repository.DashboardRecentSubmission `json:"recent_submissions"`
}

// DashboardService handles teacher dashboard business logic.
type DashboardService struct {
	repo *repository.DashboardRepository
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo *repository.DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

// GetDashboardData fetches all dashboard metrics.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	students, exams, questions, reviews, err := s.repo.SummaryCounts(ctx)
	if err != nil {
		return nil, err
	}

	statusCounts, err := s.repo.ExamStatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.RecentSubmissions(ctx, 10)
	if err != nil {
		return nil, err
	}

	return &DashboardData{
		TotalStudents:     students,
		TotalExams:        exams,
		TotalQuestions:    questions,
		TotalReviewExams:  reviews,
		ExamStatusCounts:  statusCounts,
		RecentSubmissions: recent,
	}, nil
}

package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the domain events fanned out to listener rooms.
type EventType string

const (
	EventExamSubmitted  EventType = "exam-submitted"
	EventStudentAdded   EventType = "student-added"
	EventStudentRemoved EventType = "student-removed"
)

// Event is a domain event. Events are hints: listeners that need the
// authoritative state must re-fetch it through the pull API, tolerating
// the small window before a write becomes visible.
type Event struct {
	Type       EventType  `json:"type"`
	StudentID  int        `json:"student_id"`
	ExamID     *uuid.UUID `json:"exam_id,omitempty"`
	Percentage *float64   `json:"percentage,omitempty"`
	EmittedAt  time.Time  `json:"emitted_at"`
}

// Envelope pairs an event with its target rooms for queueing.
type Envelope struct {
	Rooms []string `json:"rooms"`
	Event Event    `json:"event"`
}

// TeacherRoom is the shared room every teacher listener joins.
func TeacherRoom() string {
	return "teachers"
}

// StudentRoom is the private room of one student.
func StudentRoom(studentID int) string {
	return fmt.Sprintf("student:%d", studentID)
}

package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/bimbel-backend/internal/config"
)

// Bus enqueues domain events for at-least-once delivery. Producers push
// envelopes onto a Redis list; the event worker drains the list and
// publishes to the room Pub/Sub channels, requeueing on failure. A bus
// failure is never fatal to the state transition that produced the event.
type Bus struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewBus creates a new Bus.
func NewBus(rdb *redis.Client, log zerolog.Logger) *Bus {
	return &Bus{
		rdb: rdb,
		log: log.With().Str("component", "notify_bus").Logger(),
	}
}

// Emit queues one event for the given rooms. Errors are logged and
// swallowed: delivery is best-effort by contract.
func (b *Bus) Emit(ctx context.Context, ev Event, rooms ...string) {
	if len(rooms) == 0 {
		return
	}
	if ev.EmittedAt.IsZero() {
		ev.EmittedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(Envelope{Rooms: rooms, Event: ev})
	if err != nil {
		b.log.Error().Err(err).Str("type", string(ev.Type)).Msg("Marshal event failed")
		return
	}

	if err := b.rdb.RPush(ctx, config.WorkerKey.NotifyEventsQueue, raw).Err(); err != nil {
		b.log.Error().Err(err).Str("type", string(ev.Type)).Msg("Enqueue event failed")
	}
}

// ExamSubmitted notifies the teacher room and the student's own room that
// a submission was graded.
func (b *Bus) ExamSubmitted(ctx context.Context, studentID int, examID uuid.UUID, percentage float64) {
	b.Emit(ctx, Event{
		Type:       EventExamSubmitted,
		StudentID:  studentID,
		ExamID:     &examID,
		Percentage: &percentage,
	}, TeacherRoom(), StudentRoom(studentID))
}

// StudentAdded notifies the teacher room about a new student account.
func (b *Bus) StudentAdded(ctx context.Context, studentID int) {
	b.Emit(ctx, Event{Type: EventStudentAdded, StudentID: studentID}, TeacherRoom())
}

// StudentRemoved notifies the teacher room about a removed student account.
func (b *Bus) StudentRemoved(ctx context.Context, studentID int) {
	b.Emit(ctx, Event{Type: EventStudentRemoved, StudentID: studentID}, TeacherRoom())
}

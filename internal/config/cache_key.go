package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session (JTI).
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// AttemptStartKey returns the cache key for a student's exam attempt start time.
func (r *CacheKeyStruct) AttemptStartKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:attempt_start", studentID, examID)
}

// StudentAnswersKey returns the cache key for a student's autosaved answers.
func (r *CacheKeyStruct) StudentAnswersKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:answers", studentID, examID)
}

// ReviewShuffleKey returns the cache key for the shuffle order of a student's
// current review attempt. The value lives for exactly one attempt.
func (r *CacheKeyStruct) ReviewShuffleKey(reviewExamID string, studentID int) string {
	return fmt.Sprintf("student:%d:review:%s:shuffle", studentID, reviewExamID)
}

// ExamPayloadKey returns the cache key for a published exam's student payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamDurationKey returns the cache key for an exam's time limit in seconds.
func (r *CacheKeyStruct) ExamDurationKey(examID string) string {
	return fmt.Sprintf("exam:%s:duration", examID)
}

// RoomChannel returns the Redis Pub/Sub channel name for a notification room.
func (r *CacheKeyStruct) RoomChannel(room string) string {
	return fmt.Sprintf("notify:%s", room)
}

var CacheKey = NewCacheKeyStruct()

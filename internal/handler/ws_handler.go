package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/bimbel-backend/internal/config"
	"github.com/stemsi/bimbel-backend/internal/middleware"
	"github.com/stemsi/bimbel-backend/internal/model"
	"github.com/stemsi/bimbel-backend/internal/notify"
	"github.com/stemsi/bimbel-backend/internal/progression"
	"github.com/stemsi/bimbel-backend/internal/service"
	ws "github.com/stemsi/bimbel-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the student WebSocket surfaces: the attempt stream
// (live autosave) and the personal notification stream.
type WSHandler struct {
	rdb                *redis.Client
	progressionService *service.ProgressionService
	log                zerolog.Logger
	upgrader           websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, progressionService *service.ProgressionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:                rdb,
		progressionService: progressionService,
		log:                log.With().Str("component", "ws_handler").Logger(),
		upgrader:           buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket for real-time answer autosave during an attempt.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	studentID := claims.UserID

	// Only an open attempt may stream. Completed and locked exams are
	// rejected before the upgrade.
	progress, err := h.progressionService.GetProgress(c.Request.Context(), examID, studentID)
	if err != nil || progress.Status != model.ProgressStatusInProgress {
		status := http.StatusForbidden
		if err != nil && !errors.Is(err, progression.ErrExamLocked) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": "no active attempt for this exam"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	answersKey := config.CacheKey.StudentAnswersKey(examID.String(), studentID)

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.AutosaveRequest
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, answersKey, studentID, examID, &msg)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

// handleAutosave saves a single answer to Redis and queues it for durable
// persistence.
func (h *WSHandler) handleAutosave(conn *websocket.Conn, answersKey string, studentID int, examID uuid.UUID, msg *ws.AutosaveRequest) {
	ctx := context.Background()

	if msg.QID == "" {
		ws.WriteError(conn, "q_id is required")
		return
	}

	// Validate QID is a well-formed UUID to prevent Redis key injection.
	if _, err := uuid.Parse(msg.QID); err != nil {
		ws.WriteError(conn, "invalid q_id format")
		return
	}
	if msg.Answer != "" && !model.AnswerOption(msg.Answer).Valid() {
		ws.WriteError(conn, "invalid answer option")
		return
	}

	if err := h.rdb.HSet(ctx, answersKey, msg.QID, msg.Answer).Err(); err != nil {
		h.log.Error().Err(err).Int("student_id", studentID).Msg("Autosave Redis error")
		ws.WriteError(conn, "save failed")
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"student_id": studentID,
		"exam_id":    examID.String(),
		"q_id":       msg.QID,
		"answer":     msg.Answer,
	})
	h.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)

	ws.WriteTyped(conn, ws.AutosaveResponse{Event: ws.EventSuccess, Status: "saved"})
}

// NotificationStream godoc
// WS /ws/v1/student/notifications
// Pushes the student's room events (graded submissions) over WebSocket.
func (h *WSHandler) NotificationStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	studentID := claims.UserID
	channel := config.CacheKey.RoomChannel(notify.StudentRoom(studentID))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.rdb.Subscribe(ctx, channel)
	defer pubsub.Close()

	wsLog := h.log.With().Int("student_id", studentID).Logger()
	wsLog.Info().Msg("Notification stream connected")

	// Reader goroutine only reads: it detects client ping/close and hands
	// pong requests to the select loop below, which stays the
	// connection's single writer.
	pings := make(chan struct{}, 1)
	go func() {
		defer cancel()
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				return
			}
			if msg.Action == ws.ActionPing {
				select {
				case pings <- struct{}{}:
				default: // a pong is already pending
				}
			}
		}
	}()

	if err := notifyLoop(ctx, conn, pubsub.Channel(), pings); err != nil {
		wsLog.Debug().Err(err).Msg("Write failed, closing stream")
		return
	}
	wsLog.Info().Msg("Notification stream closed")
}

// notifyLoop serializes all writes on a notification connection: room
// event forwarding and pong replies go through this one goroutine.
// Writing to the connection from anywhere else races on its write state.
func notifyLoop(ctx context.Context, conn *websocket.Conn, events <-chan *redis.Message, pings <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return err
			}
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			if err := ws.WriteTyped(conn, ws.NotifyResponse{
				Event:   ws.EventNotify,
				Payload: msg.Payload,
			}); err != nil {
				return err
			}
		}
	}
}

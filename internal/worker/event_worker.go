package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/bimbel-backend/internal/config"
	"github.com/stemsi/bimbel-backend/internal/notify"
)

// EventWorker drains the notify events queue and fans each event out to
// its room Pub/Sub channels. Delivery is at-least-once: a failed fan-out
// requeues the whole envelope, so listeners must tolerate duplicates.
type EventWorker struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewEventWorker creates a new EventWorker.
func NewEventWorker(rdb *redis.Client, log zerolog.Logger) *EventWorker {
	return &EventWorker{
		rdb: rdb,
		log: log.With().Str("component", "event_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *EventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *EventWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.NotifyEventsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	if err := w.fanOut(ctx, []byte(result[1])); err != nil {
		w.log.Error().Err(err).Msg("Fan-out error, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.NotifyEventsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

// fanOut publishes the envelope's event to every target room channel.
// Publishing to a channel with no subscribers is a successful no-op:
// events are hints, not mail.
func (w *EventWorker) fanOut(ctx context.Context, raw []byte) error {
	var env notify.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// A poison message would loop forever; log and drop it instead.
		w.log.Error().Err(err).Msg("Unmarshal error, dropping event")
		return nil
	}

	eventJSON, err := json.Marshal(env.Event)
	if err != nil {
		w.log.Error().Err(err).Msg("Marshal event error, dropping event")
		return nil
	}

	for _, room := range env.Rooms {
		channel := config.CacheKey.RoomChannel(room)
		if err := w.rdb.Publish(ctx, channel, eventJSON).Err(); err != nil {
			return err
		}
	}

	w.log.Debug().
		Str("type", string(env.Event.Type)).
		Int("rooms", len(env.Rooms)).
		Msg("Event fanned out")
	return nil
}

// drain fans out all remaining queued events before shutdown.
func (w *EventWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.NotifyEventsQueue).Result()
		if err != nil {
			break
		}

		if err := w.fanOut(ctx, []byte(result)); err != nil {
			w.log.Error().Err(err).Msg("Drain fan-out error")
			w.rdb.RPush(ctx, config.WorkerKey.NotifyEventsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining events")
	}
}

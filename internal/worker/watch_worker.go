package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/motionforge/api/internal/model"
	"github.com/motionforge/api/internal/poller"
	"go.uber.org/zap"
)

// Error codes sent to websocket subscribers
const (
	CodeWatchTimeout = "WATCH_TIMEOUT"
	CodeWatchFailed  = "WATCH_FAILED"
)

// StatusFetcher polls one job through the orchestrator
type StatusFetcher interface {
	Poll(ctx context.Context, handle model.JobHandle) (*model.NormalizedStatus, error)
}

// RecordStore persists watcher observations
type RecordStore interface {
	SaveRecord(ctx context.Context, rec *model.WatchRecord) error
}

// Broadcaster pushes watcher observations to live subscribers
type Broadcaster interface {
	BroadcastStatus(jobID string, status *model.NormalizedStatus)
	BroadcastError(jobID string, code, message string)
}

// WatchWorker follows a provider job on the server and records every status it sees
type WatchWorker struct {
	fetcher StatusFetcher
	records RecordStore
	hub     Broadcaster
	poller  poller.Poller
	logger  *zap.Logger
}

// NewWatchWorker creates a new watch worker
func NewWatchWorker(fetcher StatusFetcher, records RecordStore, hub Broadcaster, p poller.Poller, logger *zap.Logger) *WatchWorker {
	return &WatchWorker{
		fetcher: fetcher,
		records: records,
		hub:     hub,
		poller:  p,
		logger:  logger.With(zap.String("component", "watch-worker")),
	}
}

// ProcessTask handles generation:watch tasks
func (w *WatchWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.WatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w: %w", err, asynq.SkipRetry)
	}

	logger := w.logger.With(
		zap.String("job_id", payload.JobID),
		zap.String("adapter", payload.AdapterID),
	)
	logger.Info("watch started")

	handle := model.JobHandle{JobID: payload.JobID, AdapterID: payload.AdapterID}
	rec := &model.WatchRecord{JobID: payload.JobID, AdapterID: payload.AdapterID}

	fetch := func(ctx context.Context) (*model.NormalizedStatus, error) {
		return w.fetcher.Poll(ctx, handle)
	}
	onUpdate := func(attempt int, status *model.NormalizedStatus) {
		rec.Status = status
		rec.Polls = attempt
		w.save(ctx, rec, logger)
		w.hub.BroadcastStatus(payload.JobID, status)
	}

	status, err := w.poller.Wait(ctx, fetch, onUpdate)
	if err == nil {
		logger.Info("watch finished", zap.String("state", string(status.State)), zap.Int("polls", rec.Polls))
		return nil
	}

	var timeoutErr *poller.TimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		rec.TimedOut = true
		rec.Polls = timeoutErr.Attempts
		w.save(ctx, rec, logger)
		w.hub.BroadcastError(payload.JobID, CodeWatchTimeout, timeoutErr.Error())
		logger.Warn("watch timed out", zap.Duration("after", timeoutErr.After))
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// server shutdown; asynq re-queues the task
		return err
	default:
		rec.Error = err.Error()
		w.save(context.WithoutCancel(ctx), rec, logger)
		w.hub.BroadcastError(payload.JobID, CodeWatchFailed, err.Error())
		logger.Warn("watch failed", zap.Error(err))
		return fmt.Errorf("watch %s: %w: %w", payload.JobID, err, asynq.SkipRetry)
	}
}

func (w *WatchWorker) save(ctx context.Context, rec *model.WatchRecord, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.records.SaveRecord(ctx, rec); err != nil {
		logger.Error("failed to save watch record", zap.Error(err))
	}
}

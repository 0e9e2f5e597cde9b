package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/motionforge/api/internal/model"
	"github.com/motionforge/api/internal/provider"
	"github.com/redis/go-redis/v9"
)

const (
	TaskTypeWatch = "generation:watch"
	QueueWatch    = "watch"

	watchRecordTTL = 24 * time.Hour
)

// AdapterLookup resolves adapter ids for the watcher
type AdapterLookup interface {
	Has(adapterID string) bool
	Primary() string
}

// TaskEnqueuer is the part of asynq.Client the watch service needs
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// WatchService queues server-side watchers and stores what they observe.
// A nil enqueuer means the watcher is disabled; records can still be read.
type WatchService struct {
	redis    *redis.Client
	enqueuer TaskEnqueuer
	adapters AdapterLookup
	timeout  time.Duration
	now      func() time.Time
}

// NewWatchService creates a watch service. timeout bounds one watcher run.
func NewWatchService(redisClient *redis.Client, enqueuer TaskEnqueuer, adapters AdapterLookup, timeout time.Duration) *WatchService {
	return &WatchService{
		redis:    redisClient,
		enqueuer: enqueuer,
		adapters: adapters,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether watchers can be started
func (s *WatchService) Enabled() bool {
	return s.enqueuer != nil
}

// StartWatch queues a watcher for the job. Starting a watcher that is
// already queued or running is not an error.
func (s *WatchService) StartWatch(ctx context.Context, req *model.WatchRequest) (*model.WatchStartResponse, error) {
	if !s.Enabled() {
		return nil, ErrWatcherDisabled
	}

	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		return nil, &ValidationError{Field: "jobId", Message: "is required"}
	}
	adapterID := strings.TrimSpace(req.AdapterID)
	if adapterID == "" {
		adapterID = s.adapters.Primary()
	}
	if !s.adapters.Has(adapterID) {
		return nil, &provider.UnknownAdapterError{AdapterID: adapterID}
	}

	payload := &model.WatchPayload{
		JobID:     jobID,
		AdapterID: adapterID,
		CreatedAt: s.now(),
	}
	task, err := newWatchTask(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	taskID := WatchTaskID(adapterID, jobID)
	_, err = s.enqueuer.EnqueueContext(ctx, task,
		asynq.TaskID(taskID),
		asynq.Queue(QueueWatch),
		asynq.MaxRetry(0),
		asynq.Timeout(s.timeout+time.Minute),
		asynq.Retention(watchRecordTTL),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.WatchStartResponse{
		Success:   true,
		JobID:     jobID,
		AdapterID: adapterID,
		TaskID:    taskID,
	}, nil
}

// SaveRecord stores the latest watcher observation for a job
func (s *WatchService) SaveRecord(ctx context.Context, rec *model.WatchRecord) error {
	rec.UpdatedAt = s.now()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, watchKey(rec.AdapterID, rec.JobID), data, watchRecordTTL).Err()
}

// GetRecord returns the latest watcher observation for a job. Job ids are
// only unique per adapter; an empty adapter id selects the primary adapter.
func (s *WatchService) GetRecord(ctx context.Context, adapterID, jobID string) (*model.WatchRecord, error) {
	adapterID = strings.TrimSpace(adapterID)
	if adapterID == "" {
		adapterID = s.adapters.Primary()
	}
	if !s.adapters.Has(adapterID) {
		return nil, &provider.UnknownAdapterError{AdapterID: adapterID}
	}

	data, err := s.redis.Get(ctx, watchKey(adapterID, jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrWatchNotFound
		}
		return nil, err
	}

	var rec model.WatchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Ping checks the record store
func (s *WatchService) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// WatchTaskID is the asynq task id of the watcher for a job, so a job is
// watched at most once at a time.
func WatchTaskID(adapterID, jobID string) string {
	return fmt.Sprintf("watch:%s:%s", adapterID, jobID)
}

func watchKey(adapterID, jobID string) string {
	return fmt.Sprintf("watch:record:%s:%s", adapterID, jobID)
}

func newWatchTask(payload *model.WatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWatch, data), nil
}

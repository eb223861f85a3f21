// Package training runs model training as background jobs: callers submit a
// spec and dataset, poll job status, and receive the registry bundle id once
// the run completes.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"paycast/internal/config"
	"paycast/internal/dataset"
	apperrors "paycast/internal/errors"
	"paycast/internal/forecast"
	"paycast/internal/infrastructure"
	"paycast/internal/registry"
)

// Status is a job lifecycle state
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Event types mirror the training progress observer
const (
	EventStart     = "start"
	EventCVStart   = "cv_start"
	EventCVEnd     = "cv_end"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// ProgressEvent is one training lifecycle event, kept in the job history
// and forwarded to the broadcaster
type ProgressEvent struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Quantile  float64   `json:"quantile,omitempty"`
	BestRound int       `json:"best_round,omitempty"`
	BestScore float64   `json:"best_score,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Job is the observable state of one training run
type Job struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	Status     Status                `json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
	StartedAt  *time.Time            `json:"started_at,omitempty"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
	ModelID    string                `json:"model_id,omitempty"`
	Error      string                `json:"error,omitempty"`
	Events     []ProgressEvent       `json:"events"`
	Result     *forecast.TrainResult `json:"result,omitempty"`
}

// Broadcaster receives progress events as they happen, e.g. to push them
// over websockets. It must not block.
type Broadcaster func(jobID string, event ProgressEvent)

// Manager owns the job table and runs training goroutines
type Manager struct {
	registry  *registry.Registry
	logger    *slog.Logger
	metrics   *infrastructure.Metrics
	timeout   time.Duration
	broadcast Broadcaster

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewManager creates a job manager. metrics and broadcaster may be nil.
func NewManager(reg *registry.Registry, logger *slog.Logger, metrics *infrastructure.Metrics, timeout time.Duration) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Hour
	}
	return &Manager{
		registry: reg,
		logger:   logger,
		metrics:  metrics,
		timeout:  timeout,
		jobs:     map[string]*Job{},
	}
}

// SetBroadcaster installs the progress event sink. Call before Start.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcast = b
}

// Start submits a training run and returns immediately with the pending job
func (m *Manager) Start(spec *config.ModelSpec, datasetPath, name string) (*Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, apperrors.NewConfigurationError("invalid model spec", err)
	}

	job := &Job{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
		Events:    []ProgressEvent{},
	}
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	go m.run(job.ID, spec, datasetPath, name)
	return m.snapshot(job.ID), nil
}

// Get returns a copy of the job state
func (m *Manager) Get(id string) (*Job, error) {
	job := m.snapshot(id)
	if job == nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeNotFound,
			fmt.Sprintf("training job %q not found", id), nil)
	}
	return job, nil
}

// List returns copies of all jobs, newest first
func (m *Manager) List() []*Job {
	m.mu.RLock()
	ids := make([]string, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		if job := m.snapshot(id); job != nil {
			jobs = append(jobs, job)
		}
	}
	sortJobs(jobs)
	return jobs
}

func (m *Manager) run(jobID string, spec *config.ModelSpec, datasetPath, name string) {
	start := time.Now()
	m.update(jobID, func(j *Job) {
		now := time.Now().UTC()
		j.Status = StatusRunning
		j.StartedAt = &now
	})

	// job id doubles as the trace id so all training logs correlate
	ctx, cancel := context.WithTimeout(infrastructure.WithTraceID(context.Background(), jobID), m.timeout)
	defer cancel()

	modelID, result, err := m.train(ctx, jobID, spec, datasetPath, name)

	now := time.Now().UTC()
	if err != nil {
		m.logger.Error("training job failed", "job", jobID, "error", err)
		m.update(jobID, func(j *Job) {
			j.Status = StatusFailed
			j.FinishedAt = &now
			j.Error = err.Error()
		})
		m.emit(jobID, ProgressEvent{Type: EventFailed, Message: err.Error(), At: now})
	} else {
		m.update(jobID, func(j *Job) {
			j.Status = StatusCompleted
			j.FinishedAt = &now
			j.ModelID = modelID
			j.Result = result
		})
		m.emit(jobID, ProgressEvent{Type: EventCompleted, Message: modelID, At: now})
	}

	m.observeTraining(time.Since(start), result, err)
}

func (m *Manager) train(ctx context.Context, jobID string, spec *config.ModelSpec, datasetPath, name string) (string, *forecast.TrainResult, error) {
	tbl, err := dataset.Load(datasetPath)
	if err != nil {
		return "", nil, err
	}

	f, err := forecast.New(spec, m.logger)
	if err != nil {
		return "", nil, err
	}

	result, err := f.Train(ctx, tbl, &jobObserver{manager: m, jobID: jobID})
	if err != nil {
		return "", result, err
	}

	manifest, err := m.registry.Save(f, name)
	if err != nil {
		return "", result, err
	}
	return manifest.ID, result, nil
}

// jobObserver forwards forecaster progress into the job event history
type jobObserver struct {
	manager *Manager
	jobID   string
}

func (o *jobObserver) TrainingStarted(targets []string, quantiles []float64) {
	o.manager.emit(o.jobID, ProgressEvent{
		Type:    EventStart,
		Message: fmt.Sprintf("training %d models", len(targets)*len(quantiles)),
		At:      time.Now().UTC(),
	})
}

func (o *jobObserver) CVStarted(target string, quantile float64) {
	o.manager.emit(o.jobID, ProgressEvent{
		Type:     EventCVStart,
		Target:   target,
		Quantile: quantile,
		At:       time.Now().UTC(),
	})
}

func (o *jobObserver) CVFinished(target string, quantile float64, bestRound int, bestScore float64) {
	o.manager.emit(o.jobID, ProgressEvent{
		Type:      EventCVEnd,
		Target:    target,
		Quantile:  quantile,
		BestRound: bestRound,
		BestScore: bestScore,
		At:        time.Now().UTC(),
	})
}

func (m *Manager) emit(jobID string, event ProgressEvent) {
	m.update(jobID, func(j *Job) {
		j.Events = append(j.Events, event)
	})
	if m.broadcast != nil {
		m.broadcast(jobID, event)
	}
}

func (m *Manager) update(jobID string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		fn(job)
	}
}

func (m *Manager) snapshot(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	copied := *job
	copied.Events = append([]ProgressEvent(nil), job.Events...)
	return &copied
}

func (m *Manager) observeTraining(elapsed time.Duration, result *forecast.TrainResult, err error) {
	if m.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	ctx := context.Background()
	m.metrics.TrainingDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("status", status)))
	if err == nil && result != nil {
		m.metrics.ModelsTrained.Add(ctx, int64(len(result.Models)))
	}
}

func sortJobs(jobs []*Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}

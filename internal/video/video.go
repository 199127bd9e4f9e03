package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/codec"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/google/uuid"
	"github.com/jon4hz/movin/internal/cache"
	"github.com/jon4hz/movin/internal/gemini"
	"github.com/jon4hz/movin/internal/metrics"
	"github.com/mergestat/timediff"
	"github.com/samber/lo"
)

const (
	// CachePrefix is the key prefix of video jobs in the cache.
	CachePrefix = "video-job:"
	// IndexPrefix is the key prefix of the pending job index.
	IndexPrefix = "video-jobs:"

	pendingKey = "pending"
)

var (
	ErrJobNotFound = errors.New("video job not found")
	ErrJobNotReady = errors.New("video is not ready")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is a video generation started by a user.
type Job struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Prompt    string    `json:"prompt"`
	Operation string    `json:"operation"`
	Status    Status    `json:"status"`
	VideoURI  string    `json:"videoUri,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Age describes how long ago the job was started, e.g. "3 minutes ago".
func (j Job) Age(now time.Time) string {
	return timediff.TimeDiff(j.CreatedAt, timediff.WithStartTime(now))
}

// Manager starts video generations and tracks them until they finish.
// Jobs are kept in the cache and expire after the configured ttl. The ids of
// unfinished jobs are kept next to them so a new manager can resume polling.
type Manager struct {
	ai    gemini.Service
	jobs  *cache.PrefixedCache[Job]
	index *cache.PrefixedCache[[]string]
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	pending  map[string]struct{}
	restored bool
}

// NewManager creates a job manager.
func NewManager(ai gemini.Service, jobs *cache.PrefixedCache[Job], ttl time.Duration) *Manager {
	return &Manager{
		ai:      ai,
		jobs:    jobs,
		index:   cache.Derive[[]string](jobs, IndexPrefix),
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[string]struct{}),
	}
}

// Restore loads the pending job ids persisted by a previous manager.
func (m *Manager) Restore(ctx context.Context) error {
	ids, err := m.index.Get(ctx, pendingKey)
	if err != nil && !cache.IsNotFound(err) {
		return fmt.Errorf("failed to load pending video jobs: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.pending[id] = struct{}{}
	}
	m.restored = true
	if len(ids) > 0 {
		log.Info("restored pending video jobs", "count", len(ids))
	}
	return nil
}

// Start begins animating img and stores a pending job for it.
func (m *Manager) Start(ctx context.Context, handle string, img gemini.Image, prompt string) (Job, error) {
	operation, err := m.ai.StartVideo(ctx, img, prompt)
	if err != nil {
		return Job{}, err
	}

	now := m.now()
	job := Job{
		ID:        uuid.NewString(),
		Handle:    handle,
		Prompt:    prompt,
		Operation: operation,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.save(ctx, job); err != nil {
		return Job{}, err
	}

	m.mu.Lock()
	m.pending[job.ID] = struct{}{}
	m.persistLocked(ctx)
	m.mu.Unlock()

	log.Info("started video job", "id", job.ID, "handle", handle, "operation", operation)
	return job, nil
}

// Get returns a job by id.
func (m *Manager) Get(ctx context.Context, id string) (Job, error) {
	job, err := m.jobs.Get(ctx, id)
	if cache.IsNotFound(err) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to load video job: %w", err)
	}
	return job, nil
}

// Pending returns the ids of the jobs that are still being generated.
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := lo.Keys(m.pending)
	sort.Strings(ids)
	return ids
}

// CacheStats returns the hit and miss counters of the job cache.
func (m *Manager) CacheStats() *codec.Stats {
	return m.jobs.GetStats()
}

// Poll checks every pending job once and records the finished ones.
// A failing poll leaves the job pending for the next run.
func (m *Manager) Poll(ctx context.Context) error {
	m.mu.Lock()
	restored := m.restored
	m.mu.Unlock()
	if !restored {
		if err := m.Restore(ctx); err != nil {
			return err
		}
	}

	var errs []error
	for _, id := range m.Pending() {
		if err := m.pollOne(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) pollOne(ctx context.Context, id string) error {
	job, err := m.Get(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		log.Warn("dropping expired video job", "id", id)
		m.forget(ctx, id)
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status != StatusPending {
		// finished by another manager sharing the cache
		m.forget(ctx, id)
		return nil
	}

	status, err := m.ai.PollVideo(ctx, job.Operation)
	if err != nil {
		return err
	}
	if !status.Done {
		return nil
	}

	job.UpdatedAt = m.now()
	if status.Error != "" {
		job.Status = StatusFailed
		job.Error = status.Error
		log.Warn("video job failed", "id", id, "error", status.Error)
	} else {
		job.Status = StatusDone
		job.VideoURI = status.URI
		log.Info("video job finished", "id", id, "took", job.UpdatedAt.Sub(job.CreatedAt).Round(time.Second))
	}
	if err := m.save(ctx, job); err != nil {
		return err
	}
	m.forget(ctx, id)
	metrics.RecordVideoJob(string(job.Status))
	return nil
}

// Content streams the generated video of a finished job.
func (m *Manager) Content(ctx context.Context, id string) (io.ReadCloser, string, error) {
	job, err := m.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if job.Status != StatusDone {
		return nil, "", ErrJobNotReady
	}
	return m.ai.FetchVideo(ctx, job.VideoURI)
}

func (m *Manager) save(ctx context.Context, job Job) error {
	if err := m.jobs.Set(ctx, job.ID, job, store.WithExpiration(m.ttl)); err != nil {
		return fmt.Errorf("failed to store video job: %w", err)
	}
	return nil
}

func (m *Manager) forget(ctx context.Context, id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.persistLocked(ctx)
	m.mu.Unlock()
}

// persistLocked writes the pending ids to the index. m.mu must be held.
// A failed write only costs the resume after a restart, so it is logged.
func (m *Manager) persistLocked(ctx context.Context) {
	ids := lo.Keys(m.pending)
	sort.Strings(ids)

	var err error
	if len(ids) == 0 {
		err = m.index.Delete(ctx, pendingKey)
	} else {
		err = m.index.Set(ctx, pendingKey, ids, store.WithExpiration(m.ttl))
	}
	if err != nil && !cache.IsNotFound(err) {
		log.Warn("failed to persist pending video jobs", "error", err)
	}
}

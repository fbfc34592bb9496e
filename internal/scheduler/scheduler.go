package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flash-promo-service/internal/config"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/metrics"
	"flash-promo-service/internal/redis"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// ErrUnknownJob возвращается RunOnce для незарегистрированной задачи
var ErrUnknownJob = errors.New("unknown job")

// JobFunc выполняет одну итерацию задачи и возвращает краткий итог для лога.
type JobFunc func(ctx context.Context) (string, error)

// Job: периодическая задача. Нулевой интервал отключает запуск по таймеру, RunOnce остаётся доступен.
type Job struct {
	Name     string
	Interval time.Duration
	Run      JobFunc
}

// Locker: распределённая блокировка, чтобы задачу в кластере выполнял один экземпляр.
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// Result: исход одного запуска задачи.
type Result struct {
	Job      string        `json:"job"`
	Status   string        `json:"status"`
	Summary  string        `json:"summary,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// JobState: последний исход задачи, как его видит /health.
type JobState struct {
	Name       string     `json:"name"`
	Interval   string     `json:"interval,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
}

// Scheduler запускает зарегистрированные задачи по интервалам gocron.
// Ошибки и паники задач превращаются в отчёт и не останавливают цикл.
type Scheduler struct {
	log        *logger.Logger
	locker     Locker
	metrics    metrics.Recorder
	lockTTL    time.Duration
	jobTimeout time.Duration

	mu     sync.RWMutex
	jobs   map[string]Job
	order  []string
	last   map[string]Result
	ranAt  map[string]time.Time
	cron   gocron.Scheduler
	cancel context.CancelFunc
}

// New создает планировщик. locker может быть nil: тогда задачи идут без блокировки.
func New(log *logger.Logger, locker Locker, cfg *config.SchedulerConfig) *Scheduler {
	s := &Scheduler{
		log:        log,
		locker:     locker,
		lockTTL:    55 * time.Second,
		jobTimeout: 50 * time.Second,
		jobs:       make(map[string]Job),
		last:       make(map[string]Result),
		ranAt:      make(map[string]time.Time),
	}
	if cfg != nil {
		if cfg.LockTTLSeconds > 0 {
			s.lockTTL = time.Duration(cfg.LockTTLSeconds) * time.Second
		}
		if cfg.JobTimeoutSeconds > 0 {
			s.jobTimeout = time.Duration(cfg.JobTimeoutSeconds) * time.Second
		}
		if cfg.DisableDistributedLock {
			s.locker = nil
		}
	}
	return s
}

// Register добавляет задачу. Повторная регистрация имени заменяет задачу.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; !exists {
		s.order = append(s.order, job.Name)
	}
	s.jobs[job.Name] = job
}

// Jobs возвращает имена задач в порядке регистрации.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Running: таймеры запущены и Stop ещё не вызван.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cron != nil
}

// Snapshot возвращает последние исходы задач в порядке регистрации.
func (s *Scheduler) Snapshot() []JobState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]JobState, 0, len(s.order))
	for _, name := range s.order {
		st := JobState{Name: name}
		if iv := s.jobs[name].Interval; iv > 0 {
			st.Interval = iv.String()
		}
		if res, ok := s.last[name]; ok {
			at := s.ranAt[name]
			st.LastStatus = res.Status
			st.LastError = res.Error
			st.LastRunAt = &at
		}
		states = append(states, st)
	}
	return states
}

// Start ставит в gocron все задачи с ненулевым интервалом.
// Запуски одной задачи не пересекаются: пока идёт предыдущий, следующий переносится.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	cron, err := gocron.NewScheduler(gocron.WithStopTimeout(s.jobTimeout + 5*time.Second))
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	s.mu.RLock()
	jobs := make([]Job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.RUnlock()

	scheduled := 0
	for _, job := range jobs {
		if job.Interval <= 0 {
			s.log.WithJob(job.Name).Info("Job has no interval, timer disabled")
			continue
		}
		job := job
		_, err := cron.NewJob(
			gocron.DurationJob(job.Interval),
			gocron.NewTask(func() { s.execute(ctx, job) }),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			cancel()
			_ = cron.Shutdown()
			return fmt.Errorf("failed to schedule job %s: %w", job.Name, err)
		}
		scheduled++
	}

	s.mu.Lock()
	s.cron = cron
	s.cancel = cancel
	s.mu.Unlock()

	cron.Start()
	s.log.WithField("jobs", scheduled).Info("Scheduler started")
	return nil
}

// Stop отменяет текущие запуски и ждёт их завершения.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cron, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cron == nil {
		return
	}
	if err := cron.Shutdown(); err != nil {
		s.log.WithError(err).Warn("Scheduler shutdown timed out")
	}
	s.log.Info("Scheduler stopped")
}

// RunOnce выполняет задачу немедленно, минуя таймер (CLI, ручной запуск).
func (s *Scheduler) RunOnce(ctx context.Context, name string) (Result, error) {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, job), nil
}

// execute выполняет задачу под блокировкой, с таймаутом и защитой от паник.
func (s *Scheduler) execute(ctx context.Context, job Job) Result {
	started := time.Now()
	result := Result{Job: job.Name}

	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	release, acquired, err := s.lock(ctx, job.Name)
	switch {
	case err != nil:
		result.Status = metrics.JobStatusFailed
		result.Error = err.Error()
	case !acquired:
		result.Status = metrics.JobStatusSkipped
		result.Summary = "lock held by another instance"
	default:
		defer release()
		summary, status, runErr := s.safeRun(ctx, job)
		result.Status = status
		result.Summary = summary
		if runErr != nil {
			result.Error = runErr.Error()
		}
	}

	result.Duration = time.Since(started)
	s.report(result)
	return result
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (summary, status string, err error) {
	defer func() {
		if r := recover(); r != nil {
			summary, status, err = "", metrics.JobStatusPanic, fmt.Errorf("job panicked: %v", r)
		}
	}()

	summary, err = job.Run(ctx)
	if err != nil {
		return summary, metrics.JobStatusFailed, err
	}
	return summary, metrics.JobStatusOK, nil
}

func (s *Scheduler) lock(ctx context.Context, name string) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}

	key := redis.GenerateKey(redis.KeyPrefixLock, "job", name)
	token := uuid.NewString()

	ok, err := s.locker.AcquireLock(ctx, key, token, s.lockTTL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// отдельный контекст: основной мог истечь вместе с задачей
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.ReleaseLock(releaseCtx, key, token); err != nil {
			s.log.WithJob(name).WithError(err).Warn("Failed to release job lock")
		}
	}
	return release, true, nil
}

func (s *Scheduler) report(r Result) {
	s.mu.Lock()
	s.last[r.Job] = r
	s.ranAt[r.Job] = time.Now()
	s.mu.Unlock()

	s.metrics.JobRun(r.Job, r.Status, r.Duration.Seconds())

	entry := s.log.WithJob(r.Job).WithFields(map[string]interface{}{
		"status":      r.Status,
		"duration_ms": r.Duration.Milliseconds(),
	})
	switch r.Status {
	case metrics.JobStatusOK:
		entry.Info(r.Summary)
	case metrics.JobStatusSkipped:
		entry.Debug(r.Summary)
	default:
		entry.WithField("error", r.Error).Error("Job failed")
	}
}

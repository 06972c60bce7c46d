package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/pkg/metrics"
	"github.com/google/uuid"
)

const lockPrefix = "ivisit:job:"

// Locker - распределенная блокировка прогона (redis SET NX PX + compare-and-delete)
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

// Schedule вычисляет момент следующего запуска
type Schedule interface {
	Next(now time.Time) time.Time
	// RunOnStart - запускать ли задачу сразу после старта
	RunOnStart() bool
}

// Every - запуск с фиксированным периодом, первый прогон сразу при старте
type Every time.Duration

func (e Every) Next(now time.Time) time.Time { return now.Add(time.Duration(e)) }
func (e Every) RunOnStart() bool             { return true }

// Daily - запуск раз в сутки в HH:MM по локальному времени now
type Daily struct {
	Hour   int
	Minute int
}

func (d Daily) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), d.Hour, d.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (d Daily) RunOnStart() bool { return false }

// Job - фоновая задача
type Job struct {
	Name     string
	Schedule Schedule
	Run      func(ctx context.Context) error
}

// Scheduler запускает задачи по расписанию
// На каждую задачу - своя горутина; прогон одной задачи на нескольких репликах
// исключается блокировкой в redis
type Scheduler struct {
	jobs    []Job
	locker  Locker
	lockTTL time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	logger  logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New создает планировщик, но не запускает его
// locker == nil - без распределенной блокировки (одна реплика)
func New(locker Locker, lockTTL time.Duration, m *metrics.Metrics, logger logger.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:    jobs,
		locker:  locker,
		lockTTL: lockTTL,
		now:     time.Now,
		metrics: m,
		logger:  logger,
	}
}

// Start запускает циклы всех задач; они завершаются по ctx или Stop
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}

	s.logger.Info("Scheduler started", map[string]interface{}{
		"jobs": len(s.jobs),
	})
}

// Stop останавливает планировщик и ждет, пока завершатся текущие прогоны
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	if job.Schedule.RunOnStart() {
		s.run(ctx, job)
	}

	for {
		timer := time.NewTimer(job.Schedule.Next(s.now()).Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.run(ctx, job)
		}
	}
}

// run выполняет один прогон; начатый прогон доводится до конца даже после Stop
func (s *Scheduler) run(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	runCtx := context.WithoutCancel(ctx)

	release, ok := s.acquire(runCtx, job.Name)
	if !ok {
		return
	}
	defer release()

	start := s.now()
	err := job.Run(runCtx)
	took := s.now().Sub(start)
	s.metrics.ObserveJob(job.Name, took, err)

	if err != nil {
		s.logger.Error("Job failed", map[string]interface{}{
			"job":   job.Name,
			"took":  took.String(),
			"error": err.Error(),
		})
		return
	}
	s.logger.Debug("Job finished", map[string]interface{}{
		"job":  job.Name,
		"took": took.String(),
	})
}

// acquire берет блокировку задачи
// Если redis недоступен, задача все равно выполняется: обе задачи идемпотентны
func (s *Scheduler) acquire(ctx context.Context, name string) (func(), bool) {
	if s.locker == nil {
		return func() {}, true
	}

	key := lockPrefix + name
	token := uuid.NewString()

	ok, err := s.locker.SetNX(ctx, key, token, s.lockTTL)
	if err != nil {
		s.logger.Warn("Job lock unavailable, running without it", map[string]interface{}{
			"job":   name,
			"error": err.Error(),
		})
		return func() {}, true
	}
	if !ok {
		s.logger.Debug("Job is running on another replica", map[string]interface{}{
			"job": name,
		})
		return nil, false
	}

	return func() {
		if _, err := s.locker.CompareAndDelete(ctx, key, token); err != nil {
			s.logger.Warn("Failed to release job lock", map[string]interface{}{
				"job":   name,
				"error": err.Error(),
			})
		}
	}, true
}

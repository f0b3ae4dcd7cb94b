// Package dispatch is the single choke-point for outbound geospatial
// provider calls. It absorbs 429-style failures by queueing the failed
// work and replaying it at a fixed cadence once a cool-down elapses.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/panoview/internal/domain"
	"github.com/kailas-cloud/panoview/internal/metrics"
)

// Task is a unit of deferred provider work. Tasks queued for replay run
// detached from the submitting caller's context.
type Task func(ctx context.Context) error

// Service serializes rate-limit recovery. First attempts run
// concurrently without coordination; only queued replays are spaced.
type Service struct {
	cooldown time.Duration
	spacing  time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	queue    []Task
	limited  bool
	draining bool
}

// New creates a dispatcher. cooldown is the wait before draining starts
// after a 429; spacing is the minimum gap between replay starts.
func New(cooldown, spacing time.Duration, logger *zap.Logger) *Service {
	if cooldown <= 0 {
		cooldown = 2 * time.Second
	}
	if spacing <= 0 {
		spacing = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cooldown: cooldown, spacing: spacing, logger: logger}
}

// Execute runs task immediately unless the dispatcher is limited, in
// which case the task is queued and domain.ErrDeferred is returned.
// Deferred means queued for replay, not failed. A task failing with a
// rate-limit signal enters the limited state and is itself queued; any
// other error propagates unchanged.
func (s *Service) Execute(ctx context.Context, task Task) error {
	s.mu.Lock()
	if s.limited {
		s.enqueueLocked(task)
		s.mu.Unlock()
		return domain.ErrDeferred
	}
	s.mu.Unlock()

	err := task(ctx)
	if err == nil {
		return nil
	}
	if !isRateLimited(err) {
		return err
	}

	s.logger.Warn("provider rate limit hit, queueing for replay", zap.Error(err))

	s.mu.Lock()
	s.limited = true
	metrics.DispatchLimited.Set(1)
	s.enqueueLocked(task)
	startDrain := !s.draining
	if startDrain {
		s.draining = true
	}
	s.mu.Unlock()

	if startDrain {
		go s.drain()
	}
	return domain.ErrDeferred
}

// Call routes fn through the dispatcher and returns its typed result.
// A deferred dispatch returns the zero value and domain.ErrDeferred;
// the replayed call later runs for effect only.
func Call[T any](ctx context.Context, s *Service, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := s.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Limited reports whether the dispatcher is currently rate limited.
func (s *Service) Limited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limited
}

// QueueDepth returns the number of tasks awaiting replay.
func (s *Service) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// drain waits out the cool-down, clears the limited state, and replays
// queued tasks in FIFO order with fixed spacing between starts. Replay
// failures are logged and never abort the loop; it always reaches the
// empty-queue state. At most one drain loop runs at a time.
func (s *Service) drain() {
	for {
		time.Sleep(s.cooldown)

		s.mu.Lock()
		s.limited = false
		metrics.DispatchLimited.Set(0)
		s.mu.Unlock()

		limiter := rate.NewLimiter(rate.Every(s.spacing), 1)
		ctx := context.Background()

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				// A replay may have re-entered the limited state; run
				// another cool-down cycle instead of releasing the guard
				// with the flag still set.
				if s.limited {
					s.mu.Unlock()
					break
				}
				s.draining = false
				s.mu.Unlock()
				return
			}
			task := s.queue[0]
			s.queue = s.queue[1:]
			metrics.DispatchQueueDepth.Set(float64(len(s.queue)))
			s.mu.Unlock()

			_ = limiter.Wait(ctx)

			if err := task(ctx); err != nil {
				metrics.DispatchReplaysTotal.WithLabelValues("error").Inc()
				s.logger.Error("queued replay failed", zap.Error(err))
				if isRateLimited(err) {
					s.mu.Lock()
					s.limited = true
					metrics.DispatchLimited.Set(1)
					s.mu.Unlock()
				}
				continue
			}
			metrics.DispatchReplaysTotal.WithLabelValues("success").Inc()
		}
	}
}

func (s *Service) enqueueLocked(task Task) {
	s.queue = append(s.queue, task)
	metrics.DispatchQueueDepth.Set(float64(len(s.queue)))
}

// isRateLimited classifies an error as a 429. The sentinel covers
// status-code classification; the substring match keeps malformed
// provider errors behaving as they always have.
func isRateLimited(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	return strings.Contains(err.Error(), "429")
}

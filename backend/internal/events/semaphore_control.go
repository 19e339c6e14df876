package events

import (
	"context"
	"errors"
)

// DefaultMaxInFlight 是未配置 kafka.maxInFlight 时的并发上限
const DefaultMaxInFlight = 100

var (
	ErrAcquireTimeout = errors.New("ACQUIRE_TIMEOUT")
	ErrNotAcquired    = errors.New("SEMAPHORE_NOT_ACQUIRED")
)

// SemaphoreControl 限制同时发往 sink 的请求数。
type SemaphoreControl struct {
	slots chan struct{}
}

func NewSemaphoreControl(maxInFlight int) *SemaphoreControl {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	return &SemaphoreControl{slots: make(chan struct{}, maxInFlight)}
}

// Acquire 阻塞到拿到名额或 ctx 结束
func (s *SemaphoreControl) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ErrAcquireTimeout
	}
}

func (s *SemaphoreControl) Release() error {
	select {
	case <-s.slots:
		return nil
	default:
		return ErrNotAcquired
	}
}

func (s *SemaphoreControl) InUse() int    { return len(s.slots) }
func (s *SemaphoreControl) Capacity() int { return cap(s.slots) }

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"blood-connect/backend/internal/model"
	pkgerrors "blood-connect/backend/pkg/errors"
)

// ── per-request lock ──

// keyedMutex serializes mutators of the same request inside this process.
// Entries are reference counted and dropped when the last holder leaves.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// ── read-modify-write ──

// writeKind tells mutateRequest how to persist the mutated record.
type writeKind int

const (
	writeNone writeKind = iota
	writeUpdate
	writeDelete
)

// mutateRequest runs fn on a freshly loaded copy of the request and
// persists the result with a versioned write. The per-request lock keeps
// local mutators in line; a version mismatch (another instance won) reloads
// and re-applies fn, up to engine.max_retries attempts.
func (s *bloodRequestService) mutateRequest(
	ctx context.Context,
	id string,
	fn func(req *model.BloodRequest) (writeKind, error),
) (*model.BloodRequest, writeKind, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	maxAttempts := s.cfg.Engine.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := s.repo.BloodRequest.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, writeNone, ErrBloodRequestNotFound
			}
			s.logger.Error("load blood request failed", zap.String("id", id), zap.Error(err))
			return nil, writeNone, err
		}

		kind, err := fn(req)
		if err != nil {
			return nil, writeNone, err
		}

		switch kind {
		case writeUpdate:
			err = s.repo.BloodRequest.Update(ctx, req)
		case writeDelete:
			err = s.repo.BloodRequest.Delete(ctx, req)
		}
		if err == nil {
			return req, kind, nil
		}
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("persist blood request failed", zap.String("id", id), zap.Error(err))
			return nil, writeNone, err
		}

		s.metrics.OptimisticRetries.Inc()
		s.logger.Debug("blood request version moved, retrying",
			zap.String("id", id),
			zap.Int("attempt", attempt),
		)
		if attempt < maxAttempts {
			if err := sleepCtx(ctx, s.cfg.Engine.RetryBackoff*time.Duration(attempt)); err != nil {
				return nil, writeNone, err
			}
		}
	}

	s.metrics.OptimisticConflicts.Inc()
	s.logger.Warn("blood request mutation gave up after retries",
		zap.String("id", id),
		zap.Int("attempts", maxAttempts),
	)
	return nil, writeNone, ErrConcurrentModification
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

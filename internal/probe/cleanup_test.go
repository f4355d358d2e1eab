package probe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReaperSucceedsFirstAttempt(t *testing.T) {
	reaper := NewReaper(3, time.Millisecond)

	var calls int32
	reaper.Schedule("container abc", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	reaper.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestReaperRetriesUntilSuccess(t *testing.T) {
	reaper := NewReaper(3, time.Millisecond)

	var calls int32
	reaper.Schedule("container abc", func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("still there")
		}
		return nil
	})
	reaper.Wait()

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestReaperGivesUpAfterMaxRetries(t *testing.T) {
	reaper := NewReaper(3, time.Millisecond)

	var calls int32
	reaper.Schedule("container abc", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("still there")
	})
	reaper.Wait()

	// Exactly maxRetries attempts, then the leak is logged and abandoned.
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestReaperScheduleDoesNotBlock(t *testing.T) {
	reaper := NewReaper(3, 50*time.Millisecond)

	start := time.Now()
	reaper.Schedule("container abc", func(ctx context.Context) error {
		return nil
	})
	assert.Less(t, time.Since(start), 25*time.Millisecond)
	reaper.Wait()
}

func TestReaperDefaults(t *testing.T) {
	reaper := NewReaper(0, 0)
	assert.Equal(t, 3, reaper.maxRetries)
	assert.Equal(t, time.Second, reaper.baseDelay)
}

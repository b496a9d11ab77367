package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidWorkerCount(t *testing.T) {
	_, err := New(func(int) error { return nil }, 0)
	assert.ErrorIs(t, err, ErrInvalidWorkerCount)

	_, err = New(func(int) error { return nil }, -3)
	assert.ErrorIs(t, err, ErrInvalidWorkerCount)
}

func TestSingleWorkerRunsJobsInSubmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var started []string

	p, err := New(func(job string) error {
		mu.Lock()
		started = append(started, job)
		mu.Unlock()
		return nil
	}, 1)
	require.NoError(t, err)

	require.NoError(t, p.Submit("J1"))
	require.NoError(t, p.Submit("J2"))
	require.NoError(t, p.Submit("J3"))
	p.Close()

	assert.Equal(t, []string{"J1", "J2", "J3"}, started)
}

func TestCloseDrainsQueuedJobs(t *testing.T) {
	const n = 200
	var done atomic.Int64

	p, err := New(func(int) error {
		time.Sleep(time.Millisecond)
		done.Add(1)
		return nil
	}, DefaultWorkers)
	require.NoError(t, err)

	for i := range n {
		require.NoError(t, p.Submit(i))
	}
	p.Close()

	assert.Equal(t, int64(n), done.Load())
	stats := p.Stats()
	assert.Equal(t, 0, stats.Queued)
	assert.Equal(t, int64(n), stats.Completed)
	assert.Equal(t, int64(0), stats.Active)
}

func TestSubmitAfterClose(t *testing.T) {
	p, err := New(func(int) error { return nil }, 2)
	require.NoError(t, err)

	p.Close()
	p.Close()

	assert.ErrorIs(t, p.Submit(1), ErrClosed)
}

func TestHandlerFailuresDoNotKillWorker(t *testing.T) {
	var mu sync.Mutex
	var reported []error
	var ran []int

	p, err := New(func(job int) error {
		switch job {
		case 1:
			panic("boom")
		case 2:
			return errors.New("bad job")
		}
		mu.Lock()
		ran = append(ran, job)
		mu.Unlock()
		return nil
	}, 1, WithErrorHandler(func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))
	require.NoError(t, err)

	require.NoError(t, p.Submit(1))
	require.NoError(t, p.Submit(2))
	require.NoError(t, p.Submit(3))
	p.Close()

	assert.Equal(t, []int{3}, ran)
	require.Len(t, reported, 2)

	var pe *PanicError
	require.ErrorAs(t, reported[0], &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.EqualError(t, reported[1], "bad job")

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.Completed)
	assert.Equal(t, int64(2), stats.Failed)
}

func TestHandlersRunOutsideQueueLock(t *testing.T) {
	release := make(chan struct{})
	second := make(chan struct{})

	p, err := New(func(job int) error {
		if job == 1 {
			<-release
			return nil
		}
		close(second)
		return nil
	}, 2)
	require.NoError(t, err)

	require.NoError(t, p.Submit(1))
	require.NoError(t, p.Submit(2))

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("second job never started while the first was running")
	}

	close(release)
	p.Close()
}

func TestShutdownHonoursContext(t *testing.T) {
	release := make(chan struct{})

	p, err := New(func(int) error {
		<-release
		return nil
	}, 1)
	require.NoError(t, err)
	require.NoError(t, p.Submit(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestIdleWorkersWakeForLateJobs(t *testing.T) {
	got := make(chan int, 1)
	p, err := New(func(job int) error {
		got <- job
		return nil
	}, 3)
	require.NoError(t, err)
	defer p.Close()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Submit(42))

	select {
	case job := <-got:
		assert.Equal(t, 42, job)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not picked up")
	}
}

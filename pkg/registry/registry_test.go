package registry

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

func TestPublishLookup(t *testing.T) {
	r := New[string]()

	_, ok := r.Lookup("geo")
	assert.False(t, ok)

	require.NoError(t, r.Publish("geo", "backend-1"))
	v, ok := r.Lookup("geo")
	require.True(t, ok)
	assert.Equal(t, "backend-1", v)

	assert.ErrorIs(t, r.Publish("geo", "backend-2"), ErrAlreadyPublished)
	v, _ = r.Lookup("geo")
	assert.Equal(t, "backend-1", v, "first publication must stick")

	assert.ErrorIs(t, r.Publish("", "x"), ErrEmptyName)
}

func TestWaitReturnsPromptlyWhenPublished(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Publish("n", 7))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	v, err := r.Wait(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitWakesOnPublish(t *testing.T) {
	r := New[int]()

	done := make(chan int, 1)
	go func() {
		v, err := r.Wait(context.Background(), "late")
		if err != nil {
			done <- -1
			return
		}
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, r.Publish("late", 42))

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Publish")
	}
}

func TestWaitCancelled(t *testing.T) {
	r := New[int]()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Wait(ctx, "never")
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

func TestWaitEmptyName(t *testing.T) {
	r := New[int]()
	_, err := r.Wait(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestProvideConstructsOnce(t *testing.T) {
	r := New[*int]()
	var calls atomic.Int32

	construct := func(context.Context) (*int, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		v := 1
		return &v, nil
	}

	const workers = 16
	results := make([]*int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := r.Provide(context.Background(), "shared", construct)
			if err == nil {
				results[i] = v
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 1; i < workers; i++ {
		require.NotNil(t, results[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestProvideRetriesAfterFailure(t *testing.T) {
	r := New[string]()
	boom := errors.New("boom")

	_, err := r.Provide(context.Background(), "x", func(context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := r.Lookup("x")
	assert.False(t, ok)

	v, err := r.Provide(context.Background(), "x", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestProvideWaiterCancelled(t *testing.T) {
	r := New[string]()
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = r.Provide(context.Background(), "slow", func(context.Context) (string, error) {
			close(started)
			<-release
			return "v", nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Provide(ctx, "slow", func(context.Context) (string, error) {
		t.Error("second constructor must not run")
		return "", nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := r.Wait(context.Background(), "slow")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestProvideRetriesAfterPanic(t *testing.T) {
	r := New[string]()

	func() {
		defer func() {
			assert.Equal(t, "boom", recover())
		}()
		_, _ = r.Provide(context.Background(), "x", func(context.Context) (string, error) {
			panic("boom")
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	v, err := r.Provide(ctx, "x", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestProvideWaiterRetriesAfterPanic(t *testing.T) {
	r := New[string]()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		defer func() { recover() }()
		_, _ = r.Provide(context.Background(), "x", func(context.Context) (string, error) {
			close(started)
			<-release
			panic("boom")
		})
	}()
	<-started

	done := make(chan string, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		v, err := r.Provide(ctx, "x", func(context.Context) (string, error) {
			return "second", nil
		})
		if err != nil {
			v = err.Error()
		}
		done <- v
	}()

	close(release)
	assert.Equal(t, "second", <-done)
}

type closer struct {
	closed atomic.Bool
}

func (c *closer) Close() error {
	c.closed.Store(true)
	return nil
}

func TestProvideClosesValueLosingToPublish(t *testing.T) {
	r := New[*closer]()
	winner := &closer{}
	built := &closer{}

	v, err := r.Provide(context.Background(), "x", func(context.Context) (*closer, error) {
		require.NoError(t, r.Publish("x", winner))
		return built, nil
	})
	assert.ErrorIs(t, err, ErrAlreadyPublished)
	assert.Same(t, winner, v)
	assert.True(t, built.closed.Load())
	assert.False(t, winner.closed.Load())
}

func TestRemoveAndNames(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Publish("b", 2))
	require.NoError(t, r.Publish("a", 1))
	_ = r.Ready("pending")

	assert.Equal(t, []string{"a", "b"}, r.Names())

	assert.False(t, r.Remove("pending"))
	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	assert.Equal(t, []string{"b"}, r.Names())

	require.NoError(t, r.Publish("a", 10))
	v, _ := r.Lookup("a")
	assert.Equal(t, 10, v)
}

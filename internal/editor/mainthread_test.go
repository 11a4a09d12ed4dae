package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMainThreadQueue_SerializesExecution(t *testing.T) {
	q := NewMainThreadQueue(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Submit(ctx, func(ctx context.Context) (any, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return i, nil
			})
			if err != nil {
				t.Errorf("Submit(%d): %v", i, err)
			}
		}()
	}
	wg.Wait()

	if len(order) != 10 {
		t.Fatalf("got %d completions, want 10", len(order))
	}
}

func TestMainThreadQueue_TimesOutWhenNotRunning(t *testing.T) {
	q := NewMainThreadQueue(20 * time.Millisecond)
	_, err := q.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, ErrMainThreadBusy) {
		t.Fatalf("Submit() error = %v, want ErrMainThreadBusy", err)
	}
}

func TestMainThreadQueue_ReturnsErrorFromJob(t *testing.T) {
	q := NewMainThreadQueue(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	wantErr := errors.New("boom")
	_, err := q.Submit(ctx, func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Submit() error = %v, want %v", err, wantErr)
	}
}

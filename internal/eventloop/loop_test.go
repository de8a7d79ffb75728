package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"btdmx/internal/logger"
)

func startLoop(t *testing.T, size int) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(logger.Discard(), size)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestPostRunsInOrder(t *testing.T) {
	l, _ := startLoop(t, 4)
	var got []int
	var wg sync.WaitGroup
	wg.Add(1)
	for i := 0; i < 10; i++ {
		i := i
		if err := l.Post(context.Background(), func() { got = append(got, i) }); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Post(context.Background(), wg.Done); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	for i, v := range got {
		if v != i {
			t.Fatalf("got %v, want ascending", got)
		}
	}
	if len(got) != 10 {
		t.Errorf("ran %d functions, want 10", len(got))
	}
}

func TestTryPostWhenFull(t *testing.T) {
	l := New(logger.Discard(), 1)
	if !l.TryPost(func() {}) {
		t.Fatal("first TryPost failed")
	}
	if l.TryPost(func() {}) {
		t.Error("TryPost succeeded on a full queue")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Post(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Post on full queue = %v, want deadline exceeded", err)
	}
}

func TestPostAfterStop(t *testing.T) {
	l := New(logger.Discard(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v", err)
	}
	if err := l.Post(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Post() = %v, want ErrClosed", err)
	}
	if l.TryPost(func() {}) {
		t.Error("TryPost succeeded after stop")
	}
}

func TestAfterFunc(t *testing.T) {
	l, _ := startLoop(t, 4)
	fired := make(chan time.Time, 1)
	start := time.Now()
	l.AfterFunc(20*time.Millisecond, func() { fired <- time.Now() })
	select {
	case at := <-fired:
		if at.Sub(start) < 20*time.Millisecond {
			t.Errorf("fired after %v", at.Sub(start))
		}
	case <-time.After(time.Second):
		t.Fatal("AfterFunc never fired")
	}
}

func TestAfterFuncCancel(t *testing.T) {
	l, _ := startLoop(t, 4)
	fired := make(chan struct{}, 1)
	ticket := l.AfterFunc(10*time.Millisecond, func() { fired <- struct{}{} })
	ticket.Cancel()
	select {
	case <-fired:
		t.Error("canceled ticket fired")
	case <-time.After(50 * time.Millisecond):
	}
	var nilTicket *Ticket
	nilTicket.Cancel()
}

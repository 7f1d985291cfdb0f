package ctrlqueue

import (
	"context"
	"testing"
	"time"
)

func TestRunSync_ReturnsResult(t *testing.T) {
	q := New(4)
	q.Start()
	defer q.Close()

	err := q.RunSync(func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunSync_SerializesAgainstEnqueue(t *testing.T) {
	q := New(4)
	q.Start()
	defer q.Close()

	order := make(chan int, 2)
	first := make(chan struct{})
	if err := q.Enqueue(Func(func(ctx context.Context) error {
		<-first
		order <- 1
		return nil
	})); err != nil {
		t.Fatal(err)
	}

	go func() { time.Sleep(10 * time.Millisecond); close(first) }()

	if err := q.RunSync(func(ctx context.Context) error {
		order <- 2
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if got := <-order; got != 1 {
		t.Fatalf("expected op 1 first, got %d", got)
	}
	if got := <-order; got != 2 {
		t.Fatalf("expected op 2 second, got %d", got)
	}
}

func TestClose_UnblocksPending(t *testing.T) {
	q := New(1)
	q.Start()
	q.Close()

	if err := q.Enqueue(Func(func(ctx context.Context) error { return nil })); err == nil {
		t.Fatal("expected error enqueuing to a closed queue")
	}
}

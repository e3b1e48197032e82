package miniaudio

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestQueueDrainsInOrder(t *testing.T) {
	var queue pcmQueue
	queue.push([]byte{1, 2, 3})
	first := queue.drained()
	queue.push([]byte{4, 5})
	second := queue.drained()

	out := make([]byte, 4)
	if n := queue.fill(out); n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}
	if !bytes.Equal(out, []byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected output %v", out)
	}
	if !isClosed(first) {
		t.Fatalf("expected first waiter to be released")
	}
	if isClosed(second) {
		t.Fatalf("expected second waiter to still wait for the last byte")
	}

	if n := queue.fill(out); n != 1 {
		t.Fatalf("expected 1 byte, got %d", n)
	}
	if !bytes.Equal(out, []byte{5, 0, 0, 0}) {
		t.Fatalf("expected silence after the queued audio, got %v", out)
	}
	if !isClosed(second) {
		t.Fatalf("expected second waiter to be released")
	}
}

func TestDrainedOnEmptyQueueIsImmediate(t *testing.T) {
	var queue pcmQueue
	if !isClosed(queue.drained()) {
		t.Fatalf("expected empty queue to be drained")
	}
}

func TestResetReleasesWaiters(t *testing.T) {
	var queue pcmQueue
	queue.push(make([]byte, 100))
	waiter := queue.drained()

	queue.reset()
	if !isClosed(waiter) {
		t.Fatalf("expected reset to release waiters")
	}
	if n := queue.fill(make([]byte, 10)); n != 0 {
		t.Fatalf("expected reset to drop queued audio, got %d bytes", n)
	}
}

func TestAwaitMarkWaitsForDeviceLatency(t *testing.T) {
	client := &playbackClient{latency: 50 * time.Millisecond}
	client.queue.push([]byte{1, 2})
	client.queue.fill(make([]byte, 2))

	start := time.Now()
	if err := client.AwaitMark(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected to wait for the device buffer, returned after %s", elapsed)
	}
}

func TestAwaitMarkWithoutPlaybackIsImmediate(t *testing.T) {
	client := &playbackClient{latency: time.Second}

	start := time.Now()
	if err := client.AwaitMark(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("expected an idle device to be done at once, took %s", elapsed)
	}
}

func TestAwaitMarkHonorsCancellationDuringLatency(t *testing.T) {
	client := &playbackClient{latency: time.Minute}
	client.queue.push([]byte{1})
	client.queue.fill(make([]byte, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := client.AwaitMark(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

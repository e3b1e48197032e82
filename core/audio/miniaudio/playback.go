package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/lingting/rehab-core/core/audio"
)

var errDeviceNotStarted = errors.New("playback device not started")

// pcmQueue holds speech waiting for the device callback, along with the
// callers waiting for it to drain.
type pcmQueue struct {
	mu       sync.Mutex
	pending  []byte
	waiters  []drainWaiter
	consumed time.Time
}

// drainWaiter is released once remaining more bytes have been consumed.
type drainWaiter struct {
	remaining int
	done      chan struct{}
}

func (q *pcmQueue) push(pcm []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, pcm...)
}

// drained returns a channel closed when everything pushed so far has been
// consumed.
func (q *pcmQueue) drained() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()

	done := make(chan struct{})
	if len(q.pending) == 0 {
		close(done)
		return done
	}
	q.waiters = append(q.waiters, drainWaiter{remaining: len(q.pending), done: done})
	return done
}

// fill copies queued audio into out and zeroes whatever is left.
func (q *pcmQueue) fill(out []byte) int {
	q.mu.Lock()
	n := copy(out, q.pending)
	q.pending = q.pending[n:]
	if n > 0 {
		q.consumed = time.Now()
	}
	if len(q.pending) == 0 {
		q.pending = nil
	}

	kept := q.waiters[:0]
	for _, waiter := range q.waiters {
		waiter.remaining -= n
		if waiter.remaining <= 0 {
			close(waiter.done)
			continue
		}
		kept = append(kept, waiter)
	}
	q.waiters = kept
	q.mu.Unlock()

	clear(out[n:])
	return n
}

// lastConsumed reports when the device last took queued audio.
func (q *pcmQueue) lastConsumed() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.consumed
}

// reset drops queued audio and releases every waiter.
func (q *pcmQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, waiter := range q.waiters {
		close(waiter.done)
	}
	q.pending = nil
	q.waiters = nil
	q.consumed = time.Time{}
}

type playbackClient struct {
	mu     sync.Mutex
	device *malgo.Device
	queue  pcmQueue
	// latency is how much audio the device buffers ahead of the speaker.
	latency time.Duration
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format)

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = audio.PlaybackSampleRate
	config.Playback.Format = format
	config.Playback.Channels = 1
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = audio.PlaybackSampleRate / 10
	config.Periods = 4

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			c.queue.fill(out[:int(frameCount)*bytesPerFrame])
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	c.device = device
	c.latency = time.Duration(config.PeriodSizeInFrames*config.Periods) * time.Second / time.Duration(config.SampleRate)
	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return errDeviceNotStarted
	}
	if c.device.IsStarted() {
		return nil
	}
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

// SendAudio queues linear16 speech behind everything already queued.
func (c *playbackClient) SendAudio(pcm []byte) error {
	c.mu.Lock()
	started := c.device != nil && c.device.IsStarted()
	c.mu.Unlock()
	if !started {
		return errDeviceNotStarted
	}

	c.queue.push(pcm)
	return nil
}

// AwaitMark blocks until everything queued so far has been played out of
// the device buffer, or ctx is done.
func (c *playbackClient) AwaitMark(ctx context.Context) error {
	select {
	case <-c.queue.drained():
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	latency := c.latency
	c.mu.Unlock()

	consumed := c.queue.lastConsumed()
	if consumed.IsZero() {
		return nil
	}
	wait := latency - time.Since(consumed)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}
	c.device.Uninit()
	c.device = nil
	c.queue.reset()
	return nil
}

// Package exercises contains the listening drills: picking a spoken
// character out of four and telling where a sound came from. Each round
// speaks or plays a prompt, listens for one sentence and records the graded
// answer.
package exercises

import (
	"context"
	"math/rand/v2"

	"github.com/lingting/rehab-core/core/reports"
)

// Listener returns the next sentence the user says.
type Listener interface {
	ListenOnce(ctx context.Context) (string, error)
}

type Speaker interface {
	SendText(ctx context.Context, text string) error
}

type Broadcaster interface {
	Broadcast(message string)
}

// CuePlayer plays a WAV file and returns when playback ends.
type CuePlayer interface {
	Play(ctx context.Context, path string) error
}

type Log interface {
	Append(ctx context.Context, detail reports.Detail) error
}

type Option func(*options)

type options struct {
	rand        *rand.Rand
	speaker     Speaker
	broadcaster Broadcaster
	log         Log
}

func defaultOptions() options {
	return options{rand: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// WithRand fixes the source of questions, mainly for tests.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		if r != nil {
			o.rand = r
		}
	}
}

func WithSpeaker(speaker Speaker) Option {
	return func(o *options) { o.speaker = speaker }
}

func WithBroadcaster(broadcaster Broadcaster) Option {
	return func(o *options) { o.broadcaster = broadcaster }
}

func WithLog(log Log) Option {
	return func(o *options) { o.log = log }
}

func (o options) broadcast(message string) {
	if o.broadcaster != nil {
		o.broadcaster.Broadcast(message)
	}
}

func (o options) speak(ctx context.Context, text string) error {
	if o.speaker == nil {
		return nil
	}
	return o.speaker.SendText(ctx, text)
}

func (o options) record(ctx context.Context, detail reports.Detail) {
	if o.log == nil {
		return
	}
	if err := o.log.Append(ctx, detail); err != nil {
		logger.Warn("failed to record exercise item", "error", err)
	}
}

// runRounds repeats round until ctx is done, rounds are exhausted, or a round
// fails. A non-positive rounds runs forever.
func runRounds(ctx context.Context, rounds int, round func(context.Context) error) error {
	for i := 0; rounds <= 0 || i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := round(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

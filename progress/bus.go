package progress

import (
	"context"

	"github.com/redis/go-redis/v9"

	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/log"
)

// Bus is the per-job publish/subscribe event stream. Delivery is best
// effort and ordered per job; subscribers joining mid-job reconcile missed
// state from the status cache.
type Bus struct {
	rdb redis.UniversalClient
}

func NewBus(rdb redis.UniversalClient) *Bus {
	return &Bus{rdb: rdb}
}

// ChannelName is the pub/sub channel carrying a job's events.
func ChannelName(jobID string) string {
	return "progress:" + jobID
}

// Publish sends one event on the job's channel.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	payload, err := event.Encode()
	if err != nil {
		return xerrors.InputValidation("encoding progress event", err)
	}
	if err := b.rdb.Publish(ctx, ChannelName(event.JobID), payload).Err(); err != nil {
		return xerrors.Transient("publishing progress event", err)
	}
	return nil
}

// Convenience emitters for the event taxonomy.

func (b *Bus) Log(ctx context.Context, jobID, message string) error {
	return b.Publish(ctx, Event{JobID: jobID, Type: EventLog, Message: message})
}

func (b *Bus) Progress(ctx context.Context, jobID string, value int) error {
	return b.Publish(ctx, Event{JobID: jobID, Type: EventProgress, Progress: value})
}

func (b *Bus) SceneStarted(ctx context.Context, jobID string, sceneID uint32, title string, styles []string, startSec, duration float64) error {
	return b.Publish(ctx, Event{
		JobID: jobID, Type: EventSceneStarted,
		SceneID: sceneID, SceneTitle: title, Styles: styles,
		StartSec: startSec, Duration: duration,
	})
}

func (b *Bus) SceneCompleted(ctx context.Context, jobID string, sceneID uint32, completed, total uint32) error {
	return b.Publish(ctx, Event{
		JobID: jobID, Type: EventSceneCompleted,
		SceneID: sceneID, Completed: completed, Total: total,
	})
}

func (b *Bus) ClipUploaded(ctx context.Context, jobID, videoID string, clipCount, total uint32) error {
	return b.Publish(ctx, Event{
		JobID: jobID, Type: EventClipUploaded,
		VideoID: videoID, ClipCount: clipCount, Total: total,
	})
}

func (b *Bus) Done(ctx context.Context, jobID, videoID string) error {
	return b.Publish(ctx, Event{JobID: jobID, Type: EventDone, VideoID: videoID})
}

func (b *Bus) Error(ctx context.Context, jobID, message string) error {
	return b.Publish(ctx, Event{JobID: jobID, Type: EventError, Message: message})
}

// Subscribe delivers future events for one job in publish order until the
// context is cancelled. Malformed payloads are dropped.
func (b *Bus) Subscribe(ctx context.Context, jobID string) (<-chan Event, func(), error) {
	pubsub := b.rdb.Subscribe(ctx, ChannelName(jobID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, xerrors.Transient("subscribing to progress channel", err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			event, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				log.Log(jobID, "dropping malformed progress event", "err", err)
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}

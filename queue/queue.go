package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vmatresu/vclip/config"
	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/log"
	"github.com/vmatresu/vclip/models"
)

// Config holds the stream topology for one queue.
type Config struct {
	Stream            string
	Group             string
	DLQStream         string
	DedupTTL          time.Duration
	VisibilityTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Stream:            config.DefaultJobStream,
		Group:             config.DefaultConsumerGroup,
		DLQStream:         config.DefaultDLQStream,
		DedupTTL:          config.DedupTTL,
		VisibilityTimeout: config.VisibilityTimeout,
	}
}

// Queue is the durable job queue over a Redis stream with a consumer group.
// Delivery is at-least-once; downstream idempotency makes duplicates safe.
type Queue struct {
	rdb redis.UniversalClient
	cfg Config
}

// Message is one leased queue entry.
type Message struct {
	ID  string
	Key string
	Job models.Job
}

func New(rdb redis.UniversalClient, cfg Config) *Queue {
	return &Queue{rdb: rdb, cfg: cfg}
}

// Init creates the consumer group, tolerating a pre-existing one.
func (q *Queue) Init(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "$").Err()
	if err != nil && !isBusyGroup(err) {
		return xerrors.Transient("creating consumer group", err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

func dedupKey(idempotencyKey string) string {
	return "vclip:dedup:" + idempotencyKey
}

// Enqueue publishes the job and sets its dedup marker. The marker is
// claimed first with SET NX so two racing enqueues cannot both publish; if
// the stream append then fails, the marker is released.
func (q *Queue) Enqueue(ctx context.Context, job models.Job) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", xerrors.InputValidation("serializing job", err)
	}
	if err := ValidatePayload(payload); err != nil {
		return "", err
	}

	key := job.IdempotencyKey()
	claimed, err := q.rdb.SetNX(ctx, dedupKey(key), "1", q.cfg.DedupTTL).Result()
	if err != nil {
		return "", xerrors.Transient("setting dedup marker", err)
	}
	if !claimed {
		log.Log(job.JobID, "duplicate job rejected", "idempotency_key", key)
		return "", xerrors.ErrDuplicateJob
	}

	messageID, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		Values: map[string]interface{}{"job": string(payload), "key": key},
	}).Result()
	if err != nil {
		q.rdb.Del(ctx, dedupKey(key))
		return "", xerrors.Transient("appending to job stream", err)
	}

	log.Log(job.JobID, "enqueued job", "message_id", messageID, "idempotency_key", key)
	return messageID, nil
}

// Consume returns up to count pending messages for the consumer, blocking up
// to block if none are available. A delivered message stays invisible to the
// group until acked or reclaimed after the visibility timeout.
func (q *Queue) Consume(ctx context.Context, consumer string, block time.Duration, count int64) ([]Message, error) {
	streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: consumer,
		Streams:  []string{q.cfg.Stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, xerrors.ErrNoMessages
	}
	if err != nil {
		return nil, xerrors.Transient("reading from job stream", err)
	}

	var out []Message
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			msg, err := parseEntry(entry)
			if err != nil {
				// A malformed payload can never succeed; dead-letter it
				// here rather than bouncing it between consumers.
				log.LogNoJobID("dead-lettering malformed queue entry", "message_id", entry.ID, "err", err)
				_ = q.deadLetterRaw(ctx, entry, err.Error())
				continue
			}
			out = append(out, msg)
		}
	}
	if len(out) == 0 {
		return nil, xerrors.ErrNoMessages
	}
	return out, nil
}

func parseEntry(entry redis.XMessage) (Message, error) {
	raw, ok := entry.Values["job"].(string)
	if !ok {
		return Message{}, fmt.Errorf("queue entry %s has no job field", entry.ID)
	}
	if err := ValidatePayload([]byte(raw)); err != nil {
		return Message{}, err
	}
	var job models.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return Message{}, xerrors.InputValidation("parsing job payload", err)
	}
	if err := job.Validate(); err != nil {
		return Message{}, xerrors.InputValidation("validating job payload", err)
	}
	key, _ := entry.Values["key"].(string)
	return Message{ID: entry.ID, Key: key, Job: job}, nil
}

// Ack removes the message from the stream.
func (q *Queue) Ack(ctx context.Context, messageID string) error {
	if err := q.rdb.XAck(ctx, q.cfg.Stream, q.cfg.Group, messageID).Err(); err != nil {
		return xerrors.Transient("acking message", err)
	}
	if err := q.rdb.XDel(ctx, q.cfg.Stream, messageID).Err(); err != nil {
		return xerrors.Transient("deleting acked message", err)
	}
	return nil
}

// DLQ appends the message to the dead-letter stream then acks the original.
// The DLQ has no consumers; operators inspect it out-of-band.
func (q *Queue) DLQ(ctx context.Context, msg Message, reason string) error {
	payload, err := json.Marshal(msg.Job)
	if err != nil {
		payload = []byte("{}")
	}
	err = q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.DLQStream,
		Values: map[string]interface{}{
			"job":         string(payload),
			"error":       reason,
			"original_id": msg.ID,
		},
	}).Err()
	if err != nil {
		return xerrors.Transient("appending to DLQ", err)
	}
	log.Log(msg.Job.JobID, "moved job to DLQ", "reason", reason, "message_id", msg.ID)
	return q.Ack(ctx, msg.ID)
}

func (q *Queue) deadLetterRaw(ctx context.Context, entry redis.XMessage, reason string) error {
	raw, _ := entry.Values["job"].(string)
	err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.DLQStream,
		Values: map[string]interface{}{"job": raw, "error": reason, "original_id": entry.ID},
	}).Err()
	if err != nil {
		return err
	}
	return q.Ack(ctx, entry.ID)
}

// ClaimOrphans transfers messages whose lease has been idle longer than
// minIdle to this consumer. Used both for crash takeover and for the
// owning consumer to refresh its own lease.
func (q *Queue) ClaimOrphans(ctx context.Context, consumer string, minIdle time.Duration) ([]Message, error) {
	entries, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.cfg.Stream,
		Group:    q.cfg.Group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil {
		return nil, xerrors.Transient("auto-claiming orphans", err)
	}

	// Poison pills bounce between consumers forever unless we stop them:
	// anything delivered more than MaxDeliveryAttempts times goes to the
	// DLQ instead of being handed back out.
	retries := q.retryCounts(ctx, entries)

	var out []Message
	for _, entry := range entries {
		msg, err := parseEntry(entry)
		if err != nil {
			log.LogNoJobID("dead-lettering malformed orphan", "message_id", entry.ID, "err", err)
			_ = q.deadLetterRaw(ctx, entry, err.Error())
			continue
		}
		if retries[entry.ID] > config.MaxDeliveryAttempts {
			log.Log(msg.Job.JobID, "dead-lettering job after too many delivery attempts",
				"message_id", entry.ID, "attempts", retries[entry.ID])
			_ = q.DLQ(ctx, msg, "exceeded max delivery attempts")
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (q *Queue) retryCounts(ctx context.Context, entries []redis.XMessage) map[string]int64 {
	counts := map[string]int64{}
	if len(entries) == 0 {
		return counts
	}
	pending, err := q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.cfg.Stream,
		Group:  q.cfg.Group,
		Start:  entries[0].ID,
		End:    entries[len(entries)-1].ID,
		Count:  int64(len(entries)),
	}).Result()
	if err != nil {
		log.LogNoJobID("could not read pending retry counts", "err", err)
		return counts
	}
	for _, p := range pending {
		counts[p.ID] = p.RetryCount
	}
	return counts
}

// RefreshLease resets the idle clock on a message this consumer owns so the
// visibility timeout does not expire mid-processing.
func (q *Queue) RefreshLease(ctx context.Context, consumer, messageID string) error {
	_, err := q.rdb.XClaimJustID(ctx, &redis.XClaimArgs{
		Stream:   q.cfg.Stream,
		Group:    q.cfg.Group,
		Consumer: consumer,
		MinIdle:  0,
		Messages: []string{messageID},
	}).Result()
	if err != nil && err != redis.Nil {
		return xerrors.Transient("refreshing lease", err)
	}
	return nil
}

// Len returns the job stream depth.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.XLen(ctx, q.cfg.Stream).Result()
	if err != nil {
		return 0, xerrors.Transient("reading stream length", err)
	}
	return n, nil
}

// DLQLen returns the dead-letter stream depth.
func (q *Queue) DLQLen(ctx context.Context) (int64, error) {
	n, err := q.rdb.XLen(ctx, q.cfg.DLQStream).Result()
	if err != nil {
		return 0, xerrors.Transient("reading DLQ length", err)
	}
	return n, nil
}

// Package log is the worker's structured logging: logfmt to stderr, keyed
// by job id. A job's context (video, kind, consumer) is attached when the
// job is leased and dropped when it reaches a terminal state; anything
// URL-shaped is stripped of credentials before it is written, since blob
// store and Redis URLs carry secrets in their userinfo.
package log

import (
	"net/url"
	"os"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"

	"github.com/vmatresu/vclip/config"
)

var base kitlog.Logger

// jobContexts holds per-job key/values for the job's lifetime. Release is
// explicit at terminal state; the TTL matches the status cache so context
// for a job that died without terminating is reaped on the same schedule
// its status expires.
var jobContexts *cache.Cache

func init() {
	base = kitlog.With(
		kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr)),
		"ts", kitlog.DefaultTimestampUTC,
	)
	jobContexts = cache.New(config.StatusTTL, 30*time.Minute)
}

// AddContext attaches key/values to every future log line for this job.
// Called at lease time; re-adding a key replaces its previous value, so a
// re-leased job does not accumulate duplicates.
func AddContext(jobID string, keyvals ...interface{}) {
	incoming := redactKeyvals(keyvals)
	replacing := map[string]bool{}
	for i := 0; i+1 < len(incoming); i += 2 {
		if k, ok := incoming[i].(string); ok {
			replacing[k] = true
		}
	}

	existing := contextFor(jobID)
	merged := make([]interface{}, 0, len(existing)+len(incoming))
	for i := 0; i+1 < len(existing); i += 2 {
		if k, ok := existing[i].(string); ok && replacing[k] {
			continue
		}
		merged = append(merged, existing[i], existing[i+1])
	}
	merged = append(merged, incoming...)
	jobContexts.Set(jobID, merged, cache.DefaultExpiration)
}

// ReleaseContext drops a job's context once it reaches a terminal state.
func ReleaseContext(jobID string) {
	jobContexts.Delete(jobID)
}

func contextFor(jobID string) []interface{} {
	v, found := jobContexts.Get(jobID)
	if !found {
		return nil
	}
	kv, _ := v.([]interface{})
	return kv
}

func Log(jobID string, message string, keyvals ...interface{}) {
	line := append([]interface{}{"job_id", jobID}, contextFor(jobID)...)
	line = append(line, "msg", message)
	_ = base.Log(append(line, redactKeyvals(keyvals)...)...)
}

func LogError(jobID string, message string, err error, keyvals ...interface{}) {
	line := append([]interface{}{"job_id", jobID}, contextFor(jobID)...)
	line = append(line, "msg", message, "err", err.Error())
	_ = base.Log(append(line, redactKeyvals(keyvals)...)...)
}

// Log in situations where no job owns the event: startup, sweeps, queue
// plumbing. Put as much context into the message as possible.
func LogNoJobID(message string, keyvals ...interface{}) {
	_ = base.Log(append([]interface{}{"msg", message}, redactKeyvals(keyvals)...)...)
}

// sensitiveKey reports whether a key conventionally names a location whose
// credentials must never reach the logs, regardless of the value's shape.
func sensitiveKey(key interface{}) bool {
	k, ok := key.(string)
	if !ok {
		return false
	}
	k = strings.ToLower(k)
	return k == "url" || k == "source" || k == "dest" ||
		strings.HasSuffix(k, "_url") || strings.HasSuffix(k, "_store")
}

// redactKeyvals scrubs values pairwise: values under sensitive keys and
// URL-shaped strings are credential-stripped. Trailing unpaired keys pass
// through for the logger to flag.
func redactKeyvals(keyvals []interface{}) []interface{} {
	out := make([]interface{}, 0, len(keyvals))
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, v := keyvals[i], keyvals[i+1]
		out = append(out, k)
		switch s := v.(type) {
		case string:
			if sensitiveKey(k) || hasURLScheme(s) {
				out = append(out, RedactURL(s))
			} else {
				out = append(out, s)
			}
		case url.URL:
			out = append(out, s.Redacted())
		case *url.URL:
			if s != nil {
				out = append(out, s.Redacted())
			} else {
				out = append(out, v)
			}
		default:
			out = append(out, v)
		}
	}
	if len(keyvals)%2 == 1 {
		out = append(out, keyvals[len(keyvals)-1])
	}
	return out
}

// The URL shapes this system actually passes around: object-store URLs
// (s3, s3+https, gs), Redis connection URLs, and plain http(s) sources.
var urlSchemes = []string{"http://", "https://", "s3://", "s3+", "gs://", "redis://", "rediss://"}

func hasURLScheme(s string) bool {
	lower := strings.ToLower(s)
	for _, scheme := range urlSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// RedactURL strips embedded credentials from URL-shaped strings so they can
// be logged safely. Non-URL strings pass through; unparseable URLs are
// replaced wholesale since their secrets cannot be located.
func RedactURL(str string) string {
	if !hasURLScheme(str) {
		return str
	}
	u, err := url.Parse(str)
	if err != nil {
		return "REDACTED"
	}
	return u.Redacted()
}

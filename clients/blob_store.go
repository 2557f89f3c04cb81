package clients

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/livepeer/go-tools/drivers"

	"github.com/vmatresu/vclip/config"
	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/log"
	"github.com/vmatresu/vclip/metrics"
)

// PresignDuration bounds how long a delivery URL stays valid.
const PresignDuration = 24 * time.Hour

// maxTransferDuration gives up on transfers that run absurdly long; a
// source that slow is not worth processing locally.
const maxTransferDuration = 2 * time.Hour

// BlobStore is the worker's view of the object store, spoken in the
// module's deterministic key scheme: source videos, clips, thumbnails, raw
// segments and neural-analysis artifacts all hang off one base URL, with
// keys produced by models.SourceKey, models.ClipKey and friends.
type BlobStore struct {
	base *url.URL
}

func NewBlobStore(base *url.URL) *BlobStore {
	return &BlobStore{base: base}
}

// URLFor resolves a blob key against the store base.
func (b *BlobStore) URLFor(key string) string {
	return b.base.JoinPath(key).String()
}

// keyClass buckets a key by the key scheme. Metrics and transfer policy
// (the source size cap, download byte accounting) are expressed per class.
func keyClass(key string) string {
	switch {
	case strings.HasPrefix(key, "sources/"):
		return "source"
	case strings.Contains(key, "/raw/"):
		return "raw"
	case strings.Contains(key, "/neural/"):
		return "neural"
	case strings.HasSuffix(key, ".jpg"):
		return "thumbnail"
	case strings.Contains(key, "/clips/"):
		return "clip"
	default:
		return "other"
	}
}

func observeBlob(operation, class string, start time.Time, err error) {
	metrics.Metrics.Blob.RequestDuration.WithLabelValues(operation, class).
		Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Metrics.Blob.FailureCount.WithLabelValues(operation, class).Inc()
	}
}

// Open returns a reader on one blob. The base may be an object-store URL
// or a plain http(s) endpoint; both read paths land here.
func (b *BlobStore) Open(ctx context.Context, jobID, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := FetchURL(ctx, b.URLFor(key))
	observeBlob("read", keyClass(key), start, err)
	return rc, err
}

// Put streams data to a key. Uploads always target the object store;
// there is no http write path.
func (b *BlobStore) Put(ctx context.Context, jobID, key string, data io.Reader, timeout time.Duration) error {
	dir := b.base.JoinPath(path.Dir(key)).String()
	driver, err := drivers.ParseOSURL(dir, true)
	if err != nil {
		return xerrors.InputValidation("blob store base is not an object-store URL: "+log.RedactURL(dir), err)
	}
	start := time.Now()
	_, err = driver.NewSession("").SaveData(ctx, path.Base(key), data, nil, timeout)
	observeBlob("write", keyClass(key), start, err)
	if err != nil {
		return xerrors.Transient("failed to store blob "+key, err)
	}
	return nil
}

// PutFile uploads a rendered local file to its deterministic key, retrying
// transient store errors. Returns the uploaded size for storage accounting.
func (b *BlobStore) PutFile(ctx context.Context, jobID, localPath, key string) (int64, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return 0, xerrors.NotFound("local file missing before upload", err)
	}

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			metrics.Metrics.Blob.RetryCount.WithLabelValues("write", keyClass(key)).
				Set(float64(attempt - 1))
		}
		f, err := os.Open(localPath)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer f.Close()

		err = b.Put(ctx, jobID, key, f, maxTransferDuration)
		if err != nil {
			log.Log(jobID, "blob upload attempt failed", "key", key, "attempt", attempt, "err", err)
			if xerrors.IsUnretriable(err) {
				return backoff.Permanent(err)
			}
		}
		return err
	}, transferBackoff(5))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// FetchToFile streams a blob to a local path. The write lands in a sibling
// temp file first so partial downloads are never mistaken for complete
// ones, and source videos are capped at the input size limit.
func (b *BlobStore) FetchToFile(ctx context.Context, jobID, key, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create destination dir: %w", err)
	}
	tmpPath := destPath + ".download"
	class := keyClass(key)

	var written int64
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			metrics.Metrics.Blob.RetryCount.WithLabelValues("read", class).
				Set(float64(attempt - 1))
		}
		ctx, cancel := context.WithTimeout(ctx, maxTransferDuration)
		defer cancel()

		rc, err := b.Open(ctx, jobID, key)
		if err != nil {
			if xerrors.IsUnretriable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer rc.Close()

		out, err := os.Create(tmpPath)
		if err != nil {
			return backoff.Permanent(err)
		}
		src := io.Reader(rc)
		if class == "source" {
			src = io.LimitReader(rc, config.MaxInputFileSizeBytes+1)
		}
		n, err := io.Copy(out, src)
		closeErr := out.Close()
		if err != nil {
			log.Log(jobID, "blob download attempt failed", "key", key, "attempt", attempt, "err", err)
			return err
		}
		if closeErr != nil {
			return closeErr
		}
		if class == "source" && n > config.MaxInputFileSizeBytes {
			return backoff.Permanent(xerrors.InputValidation(
				fmt.Sprintf("source video exceeds the %d byte limit", int64(config.MaxInputFileSizeBytes)), nil))
		}
		written = n
		return nil
	}, transferBackoff(config.DownloadOSURLRetries))
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("failed to finalize download: %w", err)
	}
	if class == "source" {
		metrics.Metrics.SourceDownloadBytes.Add(float64(written))
	}
	return written, nil
}

// Delete removes one blob, used for partial-output cleanup.
func (b *BlobStore) Delete(ctx context.Context, jobID, key string) error {
	driver, err := drivers.ParseOSURL(b.URLFor(key), true)
	if err != nil {
		return xerrors.InputValidation("blob store base is not an object-store URL", err)
	}
	start := time.Now()
	err = driver.NewSession("").DeleteFile(ctx, "")
	observeBlob("delete", keyClass(key), start, err)
	if err != nil {
		return xerrors.Transient("failed to delete blob "+key, err)
	}
	return nil
}

// Presign produces a time-bounded delivery URL for one key. Plain
// http(s)/file bases serve their URLs as-is.
func (b *BlobStore) Presign(key string) (string, error) {
	u := b.base.JoinPath(key)
	if u.Scheme == "" || u.Scheme == "file" || u.Scheme == "http" || u.Scheme == "https" {
		return u.String(), nil
	}
	driver, err := drivers.ParseOSURL(u.String(), true)
	if err != nil {
		return "", fmt.Errorf("failed to parse blob URL: %w", err)
	}
	signed, err := driver.NewSession("").Presign("", PresignDuration)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed url: %w", err)
	}
	return signed, nil
}

func transferBackoff(maxRetries uint64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0 // retries are bounded by count, not wall clock
	b.Reset()
	return backoff.WithMaxRetries(b, maxRetries)
}

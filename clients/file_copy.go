package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/livepeer/go-tools/drivers"

	xerrors "github.com/vmatresu/vclip/errors"
	"github.com/vmatresu/vclip/log"
)

// FetchURL opens a readable stream on either an object-store URL or a
// plain http(s) URL — the two shapes blob reads arrive as, since sources
// can be handed over as presigned links.
func FetchURL(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	driver, err := drivers.ParseOSURL(rawURL, true)
	if err == nil {
		info, err := driver.NewSession("").ReadData(ctx, "")
		if err != nil {
			if errors.Is(err, drivers.ErrNotExist) {
				return nil, xerrors.NotFound("no blob at "+log.RedactURL(rawURL), err)
			}
			return nil, xerrors.Transient("failed to read "+log.RedactURL(rawURL), err)
		}
		return info.Body, nil
	}
	return fetchHTTP(ctx, rawURL)
}

var retryableHttpClient = newRetryableHttpClient()

func newRetryableHttpClient() *http.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 5                          // Retry at most this many times (this+1 attempts)
	client.RetryWaitMin = 200 * time.Millisecond // Wait at least this long between retries
	client.RetryWaitMax = 5 * time.Second        // Wait at most this long between retries (exponential backoff)
	client.HTTPClient = &http.Client{
		// Give up on requests that take longer than the transfer budget -
		// the source is too big to process locally or the request is hung
		Timeout: maxTransferDuration,
	}

	return client.StandardClient()
}

func fetchHTTP(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, xerrors.InputValidation("error creating http request", err)
	}
	resp, err := retryableHttpClient.Do(req)
	if err != nil {
		return nil, xerrors.Transient("error on download request", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		err := fmt.Errorf("bad status code from download request: %d %s", resp.StatusCode, resp.Status)
		if resp.StatusCode == http.StatusNotFound {
			return nil, xerrors.NotFound("source not found", err)
		}
		if resp.StatusCode < 500 {
			return nil, xerrors.InputValidation("download rejected", err)
		}
		return nil, xerrors.Transient("download failed", err)
	}
	return resp.Body, nil
}

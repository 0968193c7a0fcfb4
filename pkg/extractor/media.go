package extractor

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"rednote/internal/downloader"
	errs "rednote/pkg/errors"
	"rednote/pkg/logger"
	"rednote/pkg/ratelimit"
	"rednote/pkg/retry"
)

// MediaClient downloads note media over plain HTTP.
type MediaClient struct {
	httpClient *http.Client
	headers    map[string]string
	retry      *retry.Config
	logger     logger.Logger
}

// NewMediaClient creates a client. A nil retry config makes one attempt.
func NewMediaClient(timeout time.Duration, userAgent string, rc *retry.Config, log logger.Logger) *MediaClient {
	if log == nil {
		log = logger.GetLogger()
	}
	if rc == nil {
		rc = &retry.Config{MaxAttempts: 1}
	}
	if rc.Logger == nil {
		rc.Logger = log
	}
	headers := map[string]string{
		"Accept":          "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		"Referer":         "https://www.xiaohongshu.com/",
	}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}
	return &MediaClient{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		retry:      rc,
		logger:     log,
	}
}

// Fetch downloads url, retrying network failures and retryable statuses.
func (c *MediaClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context, attempt int) ([]byte, error) {
		return c.fetchOnce(ctx, url)
	}, c.retry)
}

func (c *MediaClient) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("invalid media url %q: %w", url, err))
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "media request failed")
	}
	defer resp.Body.Close()

	if err := checkResponseStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read media body")
	}

	c.logger.DebugWithFields("media downloaded", map[string]interface{}{
		"url":      url,
		"size":     len(data),
		"duration": time.Since(start),
	})
	return data, nil
}

// checkResponseStatus maps HTTP failures onto classified errors so the
// retry predicate can tell transient from permanent ones.
func checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	t := errs.ErrorTypeContentNotFound
	if errs.IsRetryableStatusCode(resp.StatusCode) {
		t = errs.ErrorTypeNetwork
	}
	return &errs.Error{
		Type:    t,
		Message: fmt.Sprintf("unexpected status fetching %s", resp.Request.URL),
		Code:    resp.StatusCode,
	}
}

// MediaFetcher resolves media URLs to base64 payloads through a bounded,
// rate-limited worker pool.
type MediaFetcher struct {
	client      downloader.Fetcher
	limiter     ratelimit.Limiter
	concurrency int
	logger      logger.Logger
}

// NewMediaFetcher creates a fetcher running at most concurrency requests
// at once.
func NewMediaFetcher(client downloader.Fetcher, limiter ratelimit.Limiter, concurrency int, log logger.Logger) *MediaFetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &MediaFetcher{client: client, limiter: limiter, concurrency: concurrency, logger: log}
}

// FetchEncoded returns the base64 payload of each URL in input order.
// URLs that fail are logged and left out.
func (f *MediaFetcher) FetchEncoded(ctx context.Context, urls []string) ([]string, error) {
	results := downloader.FetchAll(ctx, f.concurrency, f.client, f.limiter, f.logger, urls)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encoded := make([]string, 0, len(results))
	for _, r := range results {
		if !r.Success {
			f.logger.WithError(r.Error).WarnWithFields("dropping media that failed to download", map[string]interface{}{
				"url": r.Job.URL,
			})
			continue
		}
		encoded = append(encoded, base64.StdEncoding.EncodeToString(r.Data))
	}
	return encoded, nil
}

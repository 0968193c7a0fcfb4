// Package ratelimit throttles the media requests made while extracting
// notes, so a crawl with images does not hammer the image CDN.
//
// Available Implementations:
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - Absorbs the burst of image URLs a single note produces
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - Caps the sustained rate over a rolling minute
//
// Chain combines limiters; ForMedia builds the bucket+window chain from
// the media section of the configuration.
//
// Usage:
//
//	limiter := ratelimit.ForMedia(cfg.Media.RequestsPerMinute, cfg.Media.BurstSize)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//	// Proceed with request
package ratelimit

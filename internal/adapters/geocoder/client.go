// internal/adapters/geocoder/client.go
package geocoder

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"comps_dedup/internal/adapters/observability"
	"comps_dedup/internal/domain"
)

const DefaultUserAgent = "comps-dedup/1.0"

// Client talks to a Nominatim-compatible search endpoint.
type Client struct {
	base string
	ua   string
	hc   *http.Client
	rl   *rate.Limiter
}

// New builds a client limited to rps requests per second. Public Nominatim
// allows one.
func New(base, userAgent string, rps float64) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("geocoder base URL is required")
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		ua:   userAgent,
		hc:   &http.Client{Timeout: 10 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns the first match for address. ok=false when the service
// knows no such place.
func (c *Client) Geocode(ctx context.Context, address string) (domain.Coords, bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Coords{}, false, nil
	}
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", address)

	var out []place
	start := time.Now()
	status, err := c.get(ctx, c.base+"/search?"+q.Encode(), &out)
	observability.ObserveExternal("geocoder", "/search", status, time.Since(start))
	if err != nil {
		return domain.Coords{}, false, err
	}
	if len(out) == 0 {
		return domain.Coords{}, false, nil
	}
	lat, err1 := strconv.ParseFloat(out[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(out[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return domain.Coords{}, false, fmt.Errorf("geocoder: bad coordinates %q,%q", out[0].Lat, out[0].Lon)
	}
	return domain.Coords{Lat: lat, Lon: lon}, true, nil
}

var (
	ErrForbidden = errors.New("geocoder: forbidden")
)

// get performs a GET with retries and JSON decode into out. Every attempt,
// retries included, takes a limiter token. Retries on 429 and transient 5xx,
// honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, url string, out any) (int, error) {
	var lastErr error
	var lastStatus int
	for i := 0; i < 4; i++ {
		if err := c.rl.Wait(ctx); err != nil {
			return lastStatus, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.ua)

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", domain.ErrGeocodeUnavailable, err)
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, lastErr
		}
		lastStatus = resp.StatusCode

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return resp.StatusCode, err

		case http.StatusNotFound:
			// no match
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return resp.StatusCode, nil

		case http.StatusForbidden:
			// Nominatim answers 403 to blocked user agents
			resp.Body.Close()
			return resp.StatusCode, ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("%w: remote %d", domain.ErrGeocodeUnavailable, resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return resp.StatusCode, ctx.Err()
			}
			return resp.StatusCode, lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return resp.StatusCode, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastStatus, lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/juju/ratelimit"

	"github.com/giygas/dynamed-api/handlers"
	"github.com/giygas/dynamed-api/logging"
	"github.com/giygas/dynamed-api/metrics"
)

// RealIPMiddleware replaces RemoteAddr with the client address set by the reverse proxy
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// the first entry is the client, the rest are proxies
			client, _, _ := strings.Cut(xff, ",")
			r.RemoteAddr = strings.TrimSpace(client)
		} else if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			r.RemoteAddr = strings.TrimSpace(realIP)
		}
		next.ServeHTTP(w, r)
	})
}

// BlockDirectAccessMiddleware refuses requests that neither came through the proxy nor from localhost
func BlockDirectAccessMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Real-IP") != "" || r.Header.Get("X-Forwarded-For") != "" {
			next.ServeHTTP(w, r)
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if host == "localhost" || net.ParseIP(host).IsLoopback() {
			next.ServeHTTP(w, r)
			return
		}

		logging.Warn("Direct access blocked", "remote_addr", r.RemoteAddr, "user_agent", r.UserAgent())
		handlers.RespondWithError(w, http.StatusForbidden, "direct access not allowed")
	})
}

// RequestSizeMiddleware refuses requests whose declared body or headers exceed the limits.
// Bodies without a Content-Length are bounded again by the handlers while decoding.
func RequestSizeMiddleware(maxBody, maxHeader int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBody {
				logging.Warn("Request body too large",
					"content_length", r.ContentLength,
					"max_allowed", maxBody,
					"remote_addr", r.RemoteAddr)
				handlers.RespondWithError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body too large, maximum allowed size is %d bytes", maxBody))
				return
			}

			var headerSize int64
			for key, values := range r.Header {
				headerSize += int64(len(key))
				for _, value := range values {
					headerSize += int64(len(value))
				}
			}
			if headerSize > maxHeader {
				logging.Warn("Request headers too large",
					"header_size", headerSize,
					"max_allowed", maxHeader,
					"remote_addr", r.RemoteAddr)
				handlers.RespondWithError(w, http.StatusRequestHeaderFieldsTooLarge,
					fmt.Sprintf("request headers too large, maximum allowed size is %d bytes", maxHeader))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter holds one token bucket per client. The least recently seen clients are
// dropped once maxClients buckets exist, so an idle client comes back with a full bucket.
type RateLimiter struct {
	buckets  *lru.Cache[string, *ratelimit.Bucket]
	rate     float64
	capacity int64
}

// NewRateLimiter creates a limiter refilling rate tokens per second up to capacity
func NewRateLimiter(rate float64, capacity int64, maxClients int) (*RateLimiter, error) {
	if rate <= 0 || capacity <= 0 {
		return nil, fmt.Errorf("invalid rate limit %v/s with capacity %d", rate, capacity)
	}
	buckets, err := lru.New[string, *ratelimit.Bucket](maxClients)
	if err != nil {
		return nil, fmt.Errorf("creating bucket cache: %w", err)
	}
	return &RateLimiter{buckets: buckets, rate: rate, capacity: capacity}, nil
}

func (rl *RateLimiter) getBucket(clientIP string) *ratelimit.Bucket {
	if bucket, ok := rl.buckets.Get(clientIP); ok {
		return bucket
	}

	bucket := ratelimit.NewBucketWithRate(rl.rate, rl.capacity)
	if previous, found, _ := rl.buckets.PeekOrAdd(clientIP, bucket); found {
		return previous
	}
	metrics.RateLimiterBucketsTotal.Set(float64(rl.buckets.Len()))
	return bucket
}

// Clients returns the number of buckets currently held
func (rl *RateLimiter) Clients() int {
	return rl.buckets.Len()
}

// getTokenCost prices a request by the work its route does
func getTokenCost(r *http.Request) int64 {
	path := strings.TrimSuffix(r.URL.Path, "/")

	switch path {
	case "/metrics":
		return 0
	case "/health", "/v1/catalog/report",
		"/v1/medical-classes", "/v1/indications", "/v1/allergies",
		"/v1/antecedents", "/v1/current-medications", "/v1/precautions":
		return 5
	case "/v1/interactions/check":
		return 10
	case "/v1/recommendations", "/v1/prescriptions/lines", "/v1/molecules", "/v1/diagnostics":
		return 20
	case "/v1/recommendations/explain":
		return 30
	case "/v1/interactions":
		if r.URL.Query().Get("drug") != "" {
			return 20
		}
		return 50
	}

	if strings.HasPrefix(path, "/v1/molecules/") {
		return 5
	}
	return 10
}

// Middleware charges every request its token cost against the bucket of the client
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	limit := strconv.FormatInt(rl.capacity, 10)
	rate := strconv.FormatFloat(rl.rate, 'f', -1, 64)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := r.RemoteAddr
		if host, _, err := net.SplitHostPort(clientIP); err == nil {
			clientIP = host
		}

		bucket := rl.getBucket(clientIP)
		cost := getTokenCost(r)

		w.Header().Set("X-RateLimit-Limit", limit)
		w.Header().Set("X-RateLimit-Rate", rate)

		// a refused request takes nothing from the bucket
		if _, ok := bucket.TakeMaxDuration(cost, 0); !ok {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "60")
			logging.Warn("Rate limit exceeded", "remote_addr", clientIP, "path", r.URL.Path, "cost", cost)
			handlers.RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(bucket.Available(), 10))
		next.ServeHTTP(w, r)
	})
}

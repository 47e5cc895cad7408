package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	apperrors "courtbook/pkg/errors"
	httputil "courtbook/pkg/http"
	"courtbook/pkg/logger"
	"courtbook/pkg/sanitizer"
)

const PhoneHeader = "X-Phone-Number"

// maxPhoneProbeBytes bounds how much of a body is read to find the phone.
const maxPhoneProbeBytes = 64 * 1024

type PhoneExtractor func(r *http.Request) string

// PhoneRateLimiter keeps a sliding window of request times per phone number.
type PhoneRateLimiter struct {
	mu             sync.Mutex
	requests       map[string][]time.Time
	limit          int
	window         time.Duration
	phoneExtractor PhoneExtractor
	log            *logger.Logger
	now            func() time.Time
	stopCh         chan struct{}
	stopOnce       sync.Once
}

func NewPhoneRateLimiter(limit int, window time.Duration, extractor PhoneExtractor, log *logger.Logger) *PhoneRateLimiter {
	if extractor == nil {
		extractor = HeaderPhoneExtractor
	}

	limiter := &PhoneRateLimiter{
		requests:       make(map[string][]time.Time),
		limit:          limit,
		window:         window,
		phoneExtractor: extractor,
		log:            log,
		now:            time.Now,
		stopCh:         make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *PhoneRateLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval(rl.window))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := rl.now()
			rl.mu.Lock()
			for phone, timestamps := range rl.requests {
				if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, phone)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *PhoneRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow records an attempt for phone and reports whether it is within the limit.
func (rl *PhoneRateLimiter) Allow(phone string) bool {
	if phone == "" {
		return true
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.requests[phone]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[phone] = valid
		return false
	}

	rl.requests[phone] = append(valid, now)
	return true
}

// PhoneRateLimit throttles booking attempts per customer phone. Reads are
// never limited.
func PhoneRateLimit(limiter *PhoneRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			phone := limiter.phoneExtractor(r)
			if !limiter.Allow(phone) {
				limiter.log.Warn("Rate limit exceeded",
					"request_id", RequestIDFrom(r.Context()),
					"phone", phone,
					"path", r.URL.Path,
				)
				_ = httputil.WriteError(w, apperrors.New("RATE_LIMITED", "Rate limit exceeded", http.StatusTooManyRequests))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func HeaderPhoneExtractor(r *http.Request) string {
	return r.Header.Get(PhoneHeader)
}

// BookingPhoneExtractor uses the phone header when present and otherwise
// peeks at the customer_phone field of a JSON body. The body is restored
// for the next handler. Numbers are normalized to E.164 in region so that
// one customer maps to one bucket however the number is written.
func BookingPhoneExtractor(region string) PhoneExtractor {
	return func(r *http.Request) string {
		return sanitizer.NormalizePhone(rawBookingPhone(r), region)
	}
}

func rawBookingPhone(r *http.Request) string {
	if phone := HeaderPhoneExtractor(r); phone != "" {
		return phone
	}
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPhoneProbeBytes))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))

	var probe struct {
		CustomerPhone string `json:"customer_phone"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.CustomerPhone
}

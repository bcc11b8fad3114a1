package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/deckpress/internal/auth"
)

// RateConfig is a token bucket: Rate tokens per second, at most Burst.
type RateConfig struct {
	Rate  float64
	Burst float64
}

func (c RateConfig) enabled() bool { return c.Rate > 0 && c.Burst > 0 }

// RateLimiter throttles callers with a Redis token bucket shared by every
// replica. Deck generation draws from its own, usually smaller, bucket.
type RateLimiter struct {
	client   redis.Scripter
	read     RateConfig
	generate RateConfig
	prefix   string
	logger   *zap.Logger
	script   *redis.Script
	now      func() time.Time
}

// NewRateLimiter returns nil when client is nil; a nil limiter passes all traffic.
func NewRateLimiter(client redis.Scripter, read RateConfig, generate RateConfig, logger *zap.Logger) *RateLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		client:   client,
		read:     read,
		generate: generate,
		prefix:   "deck:rl",
		logger:   logger,
		script:   redis.NewScript(tokenBucketLua),
		now:      time.Now,
	}
}

type decision struct {
	allowed   bool
	remaining int64
	wait      time.Duration
}

// Middleware must run after auth so generation is keyed on the token subject.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil || (!l.read.enabled() && !l.generate.enabled()) {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, cfg := "generate", l.generate
		if isReadMethod(r.Method) {
			scope, cfg = "read", l.read
		}
		if !cfg.enabled() {
			next.ServeHTTP(w, r)
			return
		}

		caller := callerKey(r)
		d, err := l.take(r.Context(), scope, caller, cfg)
		if err != nil {
			// a Redis outage must not take deck generation down with it
			l.logger.Warn("rate limit check failed, allowing request", zap.String("caller", caller), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(int(cfg.Burst)))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
		if !d.allowed {
			l.logger.Debug("rate limited", zap.String("scope", scope), zap.String("caller", caller), zap.Duration("wait", d.wait))
			w.Header().Set("Retry-After", retryAfterSeconds(d.wait))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many deck requests, retry later"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) take(ctx context.Context, scope, caller string, cfg RateConfig) (decision, error) {
	key := l.prefix + ":" + scope + ":" + caller
	reply, err := l.script.Run(ctx, l.client, []string{key}, l.now().UnixMilli(), cfg.Rate, cfg.Burst).Int64Slice()
	if err != nil {
		return decision{}, err
	}
	if len(reply) != 3 {
		return decision{}, errors.New("unexpected token bucket reply")
	}
	return decision{
		allowed:   reply[0] == 1,
		remaining: reply[1],
		wait:      time.Duration(reply[2]) * time.Millisecond,
	}, nil
}

func isReadMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// callerKey prefers the authenticated subject, then an explicit client id,
// then the remote address (already rewritten by chi's RealIP).
func callerKey(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		return "sub:" + claims.Subject
	}
	if id := strings.TrimSpace(r.Header.Get("X-Client-ID")); id != "" {
		return "client:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return "anonymous"
	}
	return "ip:" + host
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// Replies are integers only: Redis truncates Lua floats, so the bucket is
// reported as whole tokens left and a wait in milliseconds.
const tokenBucketLua = `
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])

local bucket = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens = tonumber(bucket[1]) or burst
local at = tonumber(bucket[2]) or now
tokens = math.min(burst, tokens + math.max(0, now - at) * rate / 1000)

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  wait_ms = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'at', tostring(now))
redis.call('PEXPIRE', KEYS[1], math.ceil(burst * 1000 / rate) + 1000)
return {allowed, math.floor(tokens), wait_ms}
`

package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a fixed-window limiter shared by every replica.
type RedisRateLimiter struct {
	rdb    redis.Scripter
	limit  int64
	window time.Duration
	prefix string
	keyFn  KeyFunc
}

var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func NewRedisRateLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string, keyFn KeyFunc) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "rl"
	}
	if keyFn == nil {
		keyFn = ClientIP
	}
	return &RedisRateLimiter{rdb: rdb, limit: int64(limit), window: window, prefix: prefix, keyFn: keyFn}
}

// Middleware rejects requests over the limit. When Redis is unreachable the
// request passes if failOpen is set and gets a 503 otherwise.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, err := rl.hit(r.Context(), rl.prefix+":"+rl.keyFn(r))
			switch {
			case err != nil:
				logger.Warn("redis rate limiter error", "err", err)
				if !failOpen {
					WriteError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
					return
				}
			case count > rl.limit:
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RedisRateLimiter) hit(ctx context.Context, key string) (int64, error) {
	res, err := fixedWindowScript.Run(ctx, rl.rdb, []string{key}, rl.window.Milliseconds()).Result()
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected rate limit script result %T", res)
	}
}

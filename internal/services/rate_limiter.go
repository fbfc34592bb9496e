package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flash-promo-service/internal/clock"
	"flash-promo-service/internal/config"
	"flash-promo-service/internal/logger"
	"flash-promo-service/internal/redis"
)

// Заголовки идентичности вызывающего, которые выставляет шлюз
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// RateDecision: итог проверки лимита для одного ключа и области.
type RateDecision struct {
	Allowed   bool
	Limit     int64
	Used      int64
	Remaining int64
	ResetAt   time.Time
}

// RateLimiter ограничивает число запросов в фиксированном окне.
// Счётчик ведётся отдельно для каждой области (например, "reserve") и клиента.
type RateLimiter struct {
	redis   rateRedis
	log     *logger.Logger
	clock   clock.Clock
	enabled bool
	limit   int64
	window  time.Duration
	prefix  string
}

type rateRedis interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// NewRateLimiter создаёт ограничитель. Без Redis или при выключенном конфиге пропускает всё.
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, clk clock.Clock, cfg *config.RateLimitConfig) *RateLimiter {
	if clk == nil {
		clk = clock.NewRealClock(time.UTC)
	}
	if redisClient == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{clock: clk}
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = redis.KeyPrefixRateLimit
	}

	return &RateLimiter{
		redis:   redisClient,
		log:     log,
		clock:   clk,
		enabled: true,
		limit:   int64(cfg.Requests),
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		prefix:  prefix,
	}
}

// Allow засчитывает запрос клиента в области scope.
func (r *RateLimiter) Allow(ctx context.Context, scope, client string) (RateDecision, error) {
	now := r.clock.Now()
	if !r.enabled {
		return RateDecision{Allowed: true, Limit: r.limit, Remaining: r.limit, ResetAt: now.Add(r.window)}, nil
	}

	key := r.makeKey(scope, client)
	count, err := r.redis.Incr(ctx, key)
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limiter incr failed: %w", err)
	}

	// первый запрос окна запускает его отсчёт
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window); err != nil {
			r.log.WithError(err).WithField("key", key).Warn("Failed to set rate limit ttl")
		}
	}

	return RateDecision{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Used:      count,
		Remaining: r.remaining(count),
		ResetAt:   now.Add(r.ttlOrWindow(ctx, key)),
	}, nil
}

// Usage показывает состояние окна, не засчитывая запрос.
func (r *RateLimiter) Usage(ctx context.Context, scope, client string) (RateDecision, error) {
	if !r.enabled {
		return RateDecision{Allowed: true, Limit: r.limit, Remaining: r.limit}, nil
	}

	key := r.makeKey(scope, client)
	count, err := r.redis.GetInt(ctx, key)
	if err != nil {
		// ключа нет: окно ещё не начато
		return RateDecision{Allowed: true, Limit: r.limit, Remaining: r.limit}, nil
	}

	return RateDecision{
		Allowed:   count < r.limit,
		Limit:     r.limit,
		Used:      count,
		Remaining: r.remaining(count),
		ResetAt:   r.clock.Now().Add(r.ttlOrWindow(ctx, key)),
	}, nil
}

// Enabled сообщает, включено ли ограничение.
func (r *RateLimiter) Enabled() bool {
	return r.enabled
}

// Window возвращает длину окна.
func (r *RateLimiter) Window() time.Duration {
	return r.window
}

func (r *RateLimiter) remaining(count int64) int64 {
	if left := r.limit - count; left > 0 {
		return left
	}
	return 0
}

func (r *RateLimiter) ttlOrWindow(ctx context.Context, key string) time.Duration {
	ttl, err := r.redis.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		if err != nil {
			r.log.WithError(err).WithField("key", key).Warn("Failed to get rate limit ttl")
		}
		return r.window
	}
	return ttl
}

func (r *RateLimiter) makeKey(scope, client string) string {
	return redis.GenerateKey(r.prefix, scope, strings.ReplaceAll(client, ":", "_"))
}

// ClientKey выбирает ключ клиента: аутентифицированный пользователь, иначе IP.
func ClientKey(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get(HeaderUserID)); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return "user:" + strconv.FormatInt(id, 10)
		}
	}
	return "ip:" + ExtractClientIP(r)
}

// ExtractClientIP получает IP из заголовков прокси или RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

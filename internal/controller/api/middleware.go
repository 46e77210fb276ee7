package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	userIDHeader = "X-User-ID"
	userIDKey    = "user_id"
)

// Identity берёт пользователя из заголовка, аутентификация выполняется снаружи
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				Error:   "unauthorized",
				Message: "missing " + userIDHeader + " header",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// limiterIdleTTL лимитер без запросов дольше этого срока удаляется;
// к этому моменту его корзина всё равно полная
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LimiterStore лимитеры по пользователям с вытеснением простаивающих
type LimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMin    int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewLimiterStore(perMin int) *LimiterStore {
	return &LimiterStore{
		limiters:  make(map[string]*limiterEntry),
		perMin:    perMin,
		idleTTL:   limiterIdleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (s *LimiterStore) get(userID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.idleTTL {
		s.evictIdle(now)
	}

	entry, ok := s.limiters[userID]
	if !ok {
		var limiter *rate.Limiter
		if s.perMin <= 0 {
			limiter = rate.NewLimiter(rate.Inf, 0)
		} else {
			limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.perMin)), s.perMin)
		}
		entry = &limiterEntry{limiter: limiter}
		s.limiters[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (s *LimiterStore) evictIdle(now time.Time) {
	for userID, entry := range s.limiters {
		if now.Sub(entry.lastSeen) >= s.idleTTL {
			delete(s.limiters, userID)
		}
	}
	s.lastSweep = now
}

func (s *LimiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimit ограничивает частоту запросов одного пользователя
func RateLimit(store *LimiterStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUser(c)
		if !store.get(userID).Allow() {
			logger.Warn("Rate limit exceeded", zap.String("user_id", userID))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
				Error:   "rate_limited",
				Message: "too many requests, try again later",
			})
			return
		}
		c.Next()
	}
}

// RequestLogger журнал запросов в zap
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if userID := currentUser(c); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			logger.Info("HTTP request", fields...)
		default:
			logger.Debug("HTTP request", fields...)
		}
	}
}

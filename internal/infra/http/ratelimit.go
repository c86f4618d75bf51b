package http

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"nftcate/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	routeMint   = "certificate:mint"
	routeResume = "certificate:resume"
	routeVerify = "certificate:verify"
)

var subjectLimitedRoutes = map[string]bool{
	routeMint:   true,
	routeResume: true,
}

func (s *Server) enforceRateLimit(c *gin.Context, routeID string, principal domain.Principal) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	key := fmt.Sprintf("ip:%s:endpoint:%s", c.ClientIP(), routeID)
	if s.rateLimitWithSubject && subjectLimitedRoutes[routeID] && principal.Subject != "" {
		if s.rateLimitSubjectMax <= 0 || len(principal.Subject) <= s.rateLimitSubjectMax {
			subject := principal.Subject
			if s.rateLimitSubjectHash {
				sum := sha256.Sum256([]byte(subject))
				key = key + ":subject_hash:" + hex.EncodeToString(sum[:])
			} else {
				key = key + ":subject:" + subject
			}
		}
	}

	decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		if s.rateLimitFailClosed {
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
			return false
		}
		return true
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int64(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
}

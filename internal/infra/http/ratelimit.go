package http

import (
	"net/http"
	"strconv"
	"time"

	"zkcred/internal/domain"

	"github.com/gin-gonic/gin"
)

const routeProofsVerify = "proofs:verify"

// rateBucket is one limiter key with its budget.
type rateBucket struct {
	key   string
	limit int
}

// enforceRateLimit charges the calling client and the verifier id it claims.
// The verifier id is self-asserted, so the client budget bounds callers that
// rotate ids. Backend errors let the request through; the nullifier ledger,
// not the limiter, guards against replay.
func (s *Server) enforceRateLimit(c *gin.Context, routeID, verifierID string) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	buckets := []rateBucket{
		{key: routeID + "|client|" + c.ClientIP(), limit: s.rateLimitClient},
		{key: routeID + "|verifier|" + verifierID, limit: s.rateLimitRequests},
	}
	var tightest *domain.RateLimitDecision
	for _, b := range buckets {
		decision, err := s.rateLimiter.Allow(c.Request.Context(), b.key, b.limit, s.rateLimitWindow)
		if err != nil {
			s.log.WithError(err).Warn("rate limiter unavailable")
			continue
		}
		if tightest == nil || !decision.Allowed || decision.Remaining < tightest.Remaining {
			d := decision
			tightest = &d
		}
		if !decision.Allowed {
			break
		}
	}
	if tightest == nil {
		return true
	}
	setRateLimitHeaders(c, *tightest)
	if tightest.Allowed {
		return true
	}
	writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
	return false
}

func setRateLimitHeaders(c *gin.Context, d domain.RateLimitDecision) {
	h := c.Writer.Header()
	h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	if d.ResetAt.IsZero() {
		return
	}
	h.Set("RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		wait := time.Until(d.ResetAt).Round(time.Second)
		h.Set("Retry-After", strconv.Itoa(int(max(wait, 0)/time.Second)))
	}
}

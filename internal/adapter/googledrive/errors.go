package googledrive

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/vertextoedge/estateshare/internal/domain"
)

// classifyAPIError tags a Drive/userinfo error with the domain taxonomy while
// keeping the provider error reachable through errors.As.
func classifyAPIError(err error) error {
	if err == nil {
		return nil
	}
	if isTransient(err) {
		return unavailable(err, 0)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", domain.ErrCredentialExpired, err)
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return unavailable(err, retryAfter(gerr.Header))
		case gerr.Code == http.StatusForbidden && isRateLimitReason(gerr):
			return unavailable(err, retryAfter(gerr.Header))
		}
	}
	return err
}

// classifyTokenError maps an OAuth token endpoint failure. Rejections become
// base; network failures and provider outages become ErrProviderUnavailable.
func classifyTokenError(base, err error) error {
	if isTransient(err) {
		return unavailable(err, 0)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode >= 500 {
		return unavailable(err, retryAfter(rerr.Response.Header))
	}
	return fmt.Errorf("%w: %w", base, err)
}

func unavailable(err error, after time.Duration) error {
	return domain.NewRetryableError(fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err), after)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isRateLimitReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

package enrich

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"

	"github.com/coursetrak/coursetrak-backend/pkg/enums"
	"github.com/coursetrak/coursetrak-backend/pkg/openai"
)

var (
	apiKeyRe = regexp.MustCompile(`sk-[A-Za-z0-9_\-]{8,}`)
	bearerRe = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]+`)
)

// classifyError maps a summarization failure onto the closed error code set.
func classifyError(err error) enums.SummaryErrorCode {
	if err == nil {
		return enums.SummaryErrorUnknown
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return enums.SummaryErrorConfigMissing
		case apiErr.StatusCode == 429:
			return enums.SummaryErrorQuotaExceeded
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return enums.SummaryErrorValidationFailed
		default:
			return enums.SummaryErrorUnknown
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return enums.SummaryErrorOpenAITimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return enums.SummaryErrorOpenAITimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return enums.SummaryErrorOpenAITimeout
	}

	return enums.SummaryErrorUnknown
}

// sanitizeErrorMessage strips anything resembling a credential before the
// message is persisted or logged.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = apiKeyRe.ReplaceAllString(msg, "[redacted]")
	msg = bearerRe.ReplaceAllString(msg, "[redacted]")
	return msg
}

package enums

import "fmt"

// SummaryErrorCode classifies a failed summarization attempt.
type SummaryErrorCode string

const (
	SummaryErrorConfigMissing    SummaryErrorCode = "config_missing"
	SummaryErrorFeatureDisabled  SummaryErrorCode = "feature_disabled"
	SummaryErrorQuotaExceeded    SummaryErrorCode = "quota_exceeded"
	SummaryErrorOpenAITimeout    SummaryErrorCode = "openai_timeout"
	SummaryErrorValidationFailed SummaryErrorCode = "validation_failed"
	SummaryErrorUnknown          SummaryErrorCode = "unknown_error"
)

var validSummaryErrorCodes = []SummaryErrorCode{
	SummaryErrorConfigMissing,
	SummaryErrorFeatureDisabled,
	SummaryErrorQuotaExceeded,
	SummaryErrorOpenAITimeout,
	SummaryErrorValidationFailed,
	SummaryErrorUnknown,
}

// IsValid reports whether the value matches the canonical error code enum.
func (c SummaryErrorCode) IsValid() bool {
	for _, candidate := range validSummaryErrorCodes {
		if candidate == c {
			return true
		}
	}
	return false
}

// Retryable reports whether another attempt could plausibly succeed.
func (c SummaryErrorCode) Retryable() bool {
	switch c {
	case SummaryErrorConfigMissing, SummaryErrorFeatureDisabled:
		return false
	default:
		return true
	}
}

// ParseSummaryErrorCode converts the raw string to SummaryErrorCode.
func ParseSummaryErrorCode(value string) (SummaryErrorCode, error) {
	for _, candidate := range validSummaryErrorCodes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid summary error code %q", value)
}

package enrich

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/coursetrak/coursetrak-backend/internal/aliasing"
	"github.com/coursetrak/coursetrak-backend/internal/jobs"
	"github.com/coursetrak/coursetrak-backend/pkg/db/models"
	dbtypes "github.com/coursetrak/coursetrak-backend/pkg/db/types"
	"github.com/coursetrak/coursetrak-backend/pkg/enums"
	pkgerrors "github.com/coursetrak/coursetrak-backend/pkg/errors"
	"github.com/coursetrak/coursetrak-backend/pkg/logger"
	"github.com/coursetrak/coursetrak-backend/pkg/metrics"
	"github.com/coursetrak/coursetrak-backend/pkg/openai"
)

const (
	defaultMaxAttempts = 3
	emptySummaryText   = "No summary was produced for this change."

	systemPrompt = "You summarize training class changes for an operations " +
		"team. Write at most five short bullet points. Refer to people only " +
		"by the alias tokens present in the data, never invent names."
)

type completionClient interface {
	Complete(ctx context.Context, messages []openai.Message) (*openai.Completion, error)
	Model() string
}

// Summarizer runs the bounded retry state machine around the external
// summarization call for one event.
type Summarizer interface {
	Generate(ctx context.Context, event *models.NotificationEvent, existing *dbtypes.AISummary) (*dbtypes.AISummary, jobs.EmailContext)
}

// SummarizerParams wires the summarizer dependencies.
type SummarizerParams struct {
	OpenAI      completionClient
	Logger      *logger.Logger
	Metrics     *metrics.PipelineMetrics
	MaxAttempts int
	// Sleep is injectable for tests; defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration)
	Now   func() time.Time
}

type summarizer struct {
	client      completionClient
	logg        *logger.Logger
	metrics     *metrics.PipelineMetrics
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration)
	now         func() time.Time
}

// NewSummarizer wires the summarization state machine. OpenAI may be nil in
// a deployment without a credential; generation then finalizes as
// config_missing without an outbound call.
func NewSummarizer(params SummarizerParams) (Summarizer, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	sleep := params.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &summarizer{
		client:      params.OpenAI,
		logg:        params.Logger,
		metrics:     params.Metrics,
		maxAttempts: maxAttempts,
		sleep:       sleep,
		now:         now,
	}, nil
}

func (s *summarizer) Generate(ctx context.Context, event *models.NotificationEvent, existing *dbtypes.AISummary) (*dbtypes.AISummary, jobs.EmailContext) {
	record := cloneSummary(existing)
	emailCtx := buildEmailContext(event)

	// Terminal success never changes again.
	if record.Status == string(enums.SummaryStatusSuccess) {
		return record, emailCtx
	}

	// No client means no credential; the eligibility gate normally catches
	// this before a job is scheduled.
	if s.client == nil {
		record.Status = string(enums.SummaryStatusFailed)
		record.ErrorCode = string(enums.SummaryErrorConfigMissing)
		generated := s.now()
		record.GeneratedAt = &generated
		return record, emailCtx
	}

	// Attempts are durable across invocations; once the bound is reached no
	// further call goes out.
	if record.Attempts >= s.maxAttempts {
		record.Status = string(enums.SummaryStatusFailed)
		if record.ErrorCode == "" {
			record.ErrorCode = string(enums.SummaryErrorUnknown)
		}
		return record, emailCtx
	}

	s.sleep(ctx, backoffFor(record.Attempts))

	started := s.now()
	completion, err := s.complete(ctx, event, emailCtx)
	elapsed := s.now().Sub(started)

	logCtx := s.logg.WithEventID(ctx, event.ID)
	if err != nil {
		code := classifyError(err)
		record.Attempts++
		record.ErrorCode = string(code)
		record.ErrorMessage = sanitizeErrorMessage(err)
		if record.Attempts >= s.maxAttempts || !code.Retryable() {
			record.Status = string(enums.SummaryStatusFailed)
			generated := s.now()
			record.GeneratedAt = &generated
		} else {
			record.Status = string(enums.SummaryStatusPending)
		}

		s.metrics.ObserveSummaryDuration(record.Status, elapsed)
		s.metrics.IncSummaryResult(record.Status, record.ErrorCode)
		s.logg.Error(logCtx, "summarization attempt failed", err)
		return record, emailCtx
	}

	text := strings.TrimSpace(completion.Content)
	if text == "" {
		text = emptySummaryText
	}

	record.Attempts++
	record.Summary = text
	record.Status = string(enums.SummaryStatusSuccess)
	record.ErrorCode = ""
	record.ErrorMessage = ""
	record.Model = completion.Model
	record.TokensUsed = completion.TotalTokens
	record.ProcessingTimeMS = elapsed.Milliseconds()
	generated := s.now()
	record.GeneratedAt = &generated

	s.metrics.ObserveSummaryDuration(record.Status, elapsed)
	s.metrics.IncSummaryResult(record.Status, "")
	s.logg.Info(logCtx, "summary generated")
	return record, emailCtx
}

func (s *summarizer) complete(ctx context.Context, event *models.NotificationEvent, emailCtx jobs.EmailContext) (*openai.Completion, error) {
	payload := map[string]any{
		"operation":  string(event.EventType.Operation()),
		"event_type": string(event.EventType),
		"new_row":    emailCtx.Obfuscated["new_row"],
		"old_row":    emailCtx.Obfuscated["old_row"],
		"diff":       emailCtx.Obfuscated["diff"],
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return s.client.Complete(ctx, []openai.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: string(body)},
	})
}

// buildEmailContext obfuscates all three payloads through one shared alias
// table so identical values collapse to identical tokens everywhere.
func buildEmailContext(event *models.NotificationEvent) jobs.EmailContext {
	aliasCtx := aliasing.NewContext()

	newRow, aliasCtx := aliasing.ObfuscateRow(aliasCtx, event.EventData.NewRow)
	diff, aliasCtx := aliasing.ObfuscateDiff(aliasCtx, event.EventData.Diff)
	oldRow, aliasCtx := aliasing.ObfuscateRow(aliasCtx, event.EventData.OldRow)

	obfuscated := map[string]any{}
	if newRow != nil {
		obfuscated["new_row"] = newRow
	}
	if diff != nil {
		obfuscated["diff"] = diff
	}
	if oldRow != nil {
		obfuscated["old_row"] = oldRow
	}

	return jobs.EmailContext{
		Aliases:    aliasCtx.Aliases(),
		Obfuscated: obfuscated,
	}
}

// backoffFor maps the durable attempt count so far onto the wait before the
// next call: 0s, 1s, 2s, then 4s for anything further.
func backoffFor(attempts int) time.Duration {
	switch attempts {
	case 0:
		return 0
	case 1:
		return time.Second
	case 2:
		return 2 * time.Second
	default:
		return 4 * time.Second
	}
}

func cloneSummary(existing *dbtypes.AISummary) *dbtypes.AISummary {
	if existing == nil {
		return &dbtypes.AISummary{Status: string(enums.SummaryStatusPending)}
	}
	clone := *existing
	if clone.Status == "" {
		clone.Status = string(enums.SummaryStatusPending)
	}
	return &clone
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

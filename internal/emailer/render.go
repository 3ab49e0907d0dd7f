package emailer

import (
	"fmt"
	"html"
	"strings"

	"github.com/coursetrak/coursetrak-backend/internal/events"
	"github.com/coursetrak/coursetrak-backend/internal/jobs"
	"github.com/coursetrak/coursetrak-backend/pkg/db/models"
	"github.com/coursetrak/coursetrak-backend/pkg/enums"
)

var operationLabels = map[enums.Operation]string{
	enums.OperationInsert: "New record",
	enums.OperationUpdate: "Record updated",
	enums.OperationDelete: "Record removed",
}

// RenderedEmail is the assembled message for one recipient.
type RenderedEmail struct {
	Subject string
	Body    string
	Headers map[string]string
}

// render assembles subject and HTML body from the stored event, its summary
// record and the email context handed over by enrichment.
func render(event *models.NotificationEvent, emailCtx jobs.EmailContext) RenderedEmail {
	operation := event.EventType.Operation()
	label := operationLabels[operation]

	subject := fmt.Sprintf("[CourseTrak] %s: %s #%d", label, event.EntityType, event.EntityID)

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(label))
	fmt.Fprintf(&b, "<p>%s <strong>#%d</strong> (%s)</p>",
		html.EscapeString(string(event.EntityType)), event.EntityID,
		html.EscapeString(string(event.EventType)))

	if summary := event.AISummary; summary != nil && summary.Status == string(enums.SummaryStatusSuccess) && summary.Summary != "" {
		b.WriteString("<h3>Summary</h3>")
		writeSummary(&b, summary.Summary)
	}

	if len(event.EventData.Diff) > 0 {
		b.WriteString("<h3>Changed fields</h3>")
		writeDiffTable(&b, event)
	}

	b.WriteString("</body></html>")

	return RenderedEmail{
		Subject: subject,
		Body:    b.String(),
		Headers: map[string]string{
			"X-CourseTrak-Event-ID":   fmt.Sprintf("%d", event.ID),
			"X-CourseTrak-Event-Type": string(event.EventType),
		},
	}
}

// writeSummary renders the AI bullet list, treating each non-empty line as
// one bullet and stripping any leading markers.
func writeSummary(b *strings.Builder, summary string) {
	b.WriteString("<ul>")
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		if line == "" {
			continue
		}
		fmt.Fprintf(b, "<li>%s</li>", html.EscapeString(line))
	}
	b.WriteString("</ul>")
}

func writeDiffTable(b *strings.Builder, event *models.NotificationEvent) {
	b.WriteString(`<table border="1" cellpadding="4" cellspacing="0">`)
	b.WriteString("<tr><th>Field</th><th>Before</th><th>After</th></tr>")
	for _, field := range events.SortedFields(event.EventData.Diff) {
		change := event.EventData.Diff[field]
		fmt.Fprintf(b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(field),
			html.EscapeString(formatValue(change.Old)),
			html.EscapeString(formatValue(change.New)))
	}
	b.WriteString("</table>")
}

func formatValue(v any) string {
	if v == nil {
		return "(none)"
	}
	return fmt.Sprintf("%v", v)
}

package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/zenportal/backend/internal/models"
)

// Builders return ready-to-send messages. All user-supplied text is escaped;
// log summaries and company names are arbitrary input.

func LogNotification(client *models.Client, ws *models.Workspace, log *models.WorkLog, reportURL string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>New work update from %s</h2>", html.EscapeString(ws.Name))
	fmt.Fprintf(&b, "<p><strong>%s</strong> — %.2f hours</p>",
		html.EscapeString(log.Date), log.HoursWorked)
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(log.Summary))
	if log.IsBlocked {
		fmt.Fprintf(&b, "<p><em>Blocked: %s</em></p>", html.EscapeString(log.BlockerDetails))
	}
	fmt.Fprintf(&b, `<p><a href="%s">View your full report</a></p>`, html.EscapeString(reportURL))

	return Message{
		To:      []string{deref(client.ContactEmail)},
		Subject: fmt.Sprintf("New work logged by %s", ws.Name),
		HTML:    b.String(),
	}
}

func ClientViewedNotification(ownerEmail string, client *models.Client, ws *models.Workspace) Message {
	return Message{
		To:      []string{ownerEmail},
		Subject: fmt.Sprintf("%s just viewed their report", client.CompanyName),
		HTML: fmt.Sprintf(
			"<p><strong>%s</strong> opened their %s report just now.</p>",
			html.EscapeString(client.CompanyName), html.EscapeString(ws.Name)),
	}
}

func SubscriptionActivated(ownerEmail string, ws *models.Workspace) Message {
	return Message{
		To:      []string{ownerEmail},
		Subject: "Welcome to ZenPortal Pro",
		HTML: fmt.Sprintf(
			"<h2>%s is now on Pro</h2><p>Unlimited clients and logs, CSV export and API access are unlocked.</p>",
			html.EscapeString(ws.Name)),
	}
}

func SubscriptionExpired(ownerEmail string, ws *models.Workspace) Message {
	return Message{
		To:      []string{ownerEmail},
		Subject: "Your ZenPortal Pro plan has ended",
		HTML: fmt.Sprintf(
			"<p>The Pro period for <strong>%s</strong> has ended and the workspace is back on the free plan. Existing data is untouched; free-plan limits apply to new activity.</p>",
			html.EscapeString(ws.Name)),
	}
}

// RecapEntry is one client's line in the weekly digest.
type RecapEntry struct {
	CompanyName string
	Hours       float64
	LogCount    int
}

func WeeklyRecap(ownerEmail string, ws *models.Workspace, entries []RecapEntry) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Your week at %s</h2>", html.EscapeString(ws.Name))
	if len(entries) == 0 {
		b.WriteString("<p>No work was logged this week.</p>")
	} else {
		b.WriteString("<ul>")
		for _, e := range entries {
			fmt.Fprintf(&b, "<li><strong>%s</strong>: %.2f hours across %d logs</li>",
				html.EscapeString(e.CompanyName), e.Hours, e.LogCount)
		}
		b.WriteString("</ul>")
	}

	return Message{
		To:      []string{ownerEmail},
		Subject: fmt.Sprintf("Weekly recap for %s", ws.Name),
		HTML:    b.String(),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

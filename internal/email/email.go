// Package email sends delivery notifications through Resend.
package email

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/resend/resend-go/v2"
)

// DeliveryNotification carries everything the owner email needs.
type DeliveryNotification struct {
	SiteName      string
	SiteAddress   string
	ReferenceCode string
	PhotoURL      string
	CapturedAt    time.Time
	FileSize      int64
	OwnerEmail    string
	CCEmails      []string
}

// Notifier sends transactional email. With an empty API key it is inert:
// Configured reports false and sends fail fast, which callers treat as a
// logged no-op.
type Notifier struct {
	client *resend.Client
	from   string
	appURL string
}

// NewNotifier creates a Notifier. from is the sender address, appURL the
// dashboard base URL linked from notification bodies.
func NewNotifier(apiKey, from, appURL string) *Notifier {
	n := &Notifier{from: from, appURL: strings.TrimRight(appURL, "/")}
	if apiKey != "" {
		n.client = resend.NewClient(apiKey)
	}
	return n
}

// Configured returns true if an API key was provided.
func (n *Notifier) Configured() bool {
	return n.client != nil
}

// SendDeliveryNotification emails the site owner about a new proof photo,
// CCing the site's notification recipients.
func (n *Notifier) SendDeliveryNotification(data DeliveryNotification) error {
	if !n.Configured() {
		return fmt.Errorf("email notifier not configured: missing API key")
	}

	subject := fmt.Sprintf("New delivery — %s (%s)", data.SiteName, data.ReferenceCode)

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{data.OwnerEmail},
		Cc:      data.CCEmails,
		Subject: subject,
		Html:    n.deliveryHTML(data),
		Text:    n.deliveryText(data),
	}

	if _, err := n.client.Emails.Send(params); err != nil {
		return fmt.Errorf("send delivery notification: %w", err)
	}
	return nil
}

func (n *Notifier) deliveryHTML(data DeliveryNotification) string {
	captured := data.CapturedAt.Format("January 2, 2006 at 15:04 MST")
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>New delivery recorded</h2>")
	fmt.Fprintf(&b, "<p><strong>%s</strong><br>%s</p>", html.EscapeString(data.SiteName), html.EscapeString(data.SiteAddress))
	fmt.Fprintf(&b, "<p>Reference code: <code>%s</code><br>Captured: %s<br>Photo size: %s</p>",
		html.EscapeString(data.ReferenceCode), captured, humanize.IBytes(uint64(data.FileSize)))
	fmt.Fprintf(&b, `<p><a href="%s">View photo</a>`, html.EscapeString(data.PhotoURL))
	if n.appURL != "" {
		fmt.Fprintf(&b, ` &middot; <a href="%s/dashboard">Open dashboard</a>`, html.EscapeString(n.appURL))
	}
	b.WriteString("</p>")
	fmt.Fprintf(&b, "<p style=\"color:#64748b;font-size:12px\">You are receiving this email because you manage the site %s on ProofOnSite.</p>",
		html.EscapeString(data.SiteName))
	return b.String()
}

func (n *Notifier) deliveryText(data DeliveryNotification) string {
	captured := data.CapturedAt.Format("January 2, 2006 at 15:04 MST")
	var b strings.Builder
	b.WriteString("New delivery recorded\n\n")
	fmt.Fprintf(&b, "%s\n%s\nReference code: %s\n\n", data.SiteName, data.SiteAddress, data.ReferenceCode)
	fmt.Fprintf(&b, "Captured: %s\nPhoto size: %s\nPhoto: %s\n", captured, humanize.IBytes(uint64(data.FileSize)), data.PhotoURL)
	if n.appURL != "" {
		fmt.Fprintf(&b, "\nDashboard: %s/dashboard\n", n.appURL)
	}
	fmt.Fprintf(&b, "\n--\nProofOnSite — you manage the site %s.\n", data.SiteName)
	return b.String()
}

package notify

import (
	"context"
	"fmt"
	"io"
	"pagerduty-tools/internal/assert"
	"pagerduty-tools/internal/components/telemetry"
	"pagerduty-tools/internal/oncall"
	"slices"

	"github.com/jordan-wright/email"
)

// EmailNotWorking is printed instead of sending anything.
const EmailNotWorking = "Email option is not working yet. No email was sent."

// Email would mail the report to everyone on call. It only composes the
// message, prints EmailNotWorking and returns ErrNotImplemented.
type Email struct {
	From string
	Out  io.Writer
	Tel  telemetry.API
}

// Draft is the message that would be sent, one copy to every assignee.
func (e Email) Draft(res oncall.Result) *email.Email {
	mail := email.NewEmail()
	mail.From = e.From
	mail.To = slices.Compact(slices.Sorted(slices.Values(res.Emails())))
	mail.Subject = "You are on call"
	mail.Text = []byte(fmt.Sprintf(`The current on call assignments are:

%s
`, res.Report))
	return mail
}

func (e Email) Notify(ctx context.Context, res oncall.Result) error {
	assert.NotNil(e.Out)
	assert.NotNil(e.Tel)

	_, span := tracer.Start(ctx, "email:Notify")
	defer span.End()

	draft := e.Draft(res)
	raw, err := draft.Bytes()
	if err != nil {
		e.Tel.ReportWarning("email.draft", err)
	} else {
		e.Tel.ReportDebug("composed email draft", len(draft.To), len(raw))
	}

	_, err = fmt.Fprintln(e.Out, EmailNotWorking)
	if err != nil {
		return err
	}
	return ErrNotImplemented
}

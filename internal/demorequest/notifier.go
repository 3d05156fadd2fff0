package demorequest

import (
	"context"
	"fmt"

	"demo-backend/internal/common/aws"
	"demo-backend/internal/models"
)

// EmailNotifier sends the requester a plain-text note when their demo
// environment is ready. The credentials themselves stay in the API; the
// email only points the user back to it.
type EmailNotifier struct {
	ses       *aws.SESClient
	fromEmail string
}

func NewEmailNotifier(ses *aws.SESClient, fromEmail string) *EmailNotifier {
	return &EmailNotifier{ses: ses, fromEmail: fromEmail}
}

func (n *EmailNotifier) NotifyCompleted(ctx context.Context, req *models.DemoRequest) error {
	if req.User.Email == "" {
		return nil
	}

	subject := "Your demo environment is ready"
	body := fmt.Sprintf(
		"Hello %s,\n\nYour demo environment for %s has been provisioned.\n"+
			"Sign in to the portal to view your access credentials.\n\n"+
			"Request ID: %s\n",
		displayName(req), organizationLabel(req), req.ID,
	)

	return n.ses.SendPlainEmail(ctx, n.fromEmail, req.User.Email, subject, body)
}

func displayName(req *models.DemoRequest) string {
	if req.User.FullName != "" {
		return req.User.FullName
	}
	return req.User.Email
}

func organizationLabel(req *models.DemoRequest) string {
	if req.Organization.Name != "" {
		return req.Organization.Name
	}
	if req.Organization.BusinessName != "" {
		return req.Organization.BusinessName
	}
	return "your organization"
}

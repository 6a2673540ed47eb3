// Package mail delivers the service's transactional emails: verification
// links and password-reset passkeys. Production mail goes through Postmark;
// development builds write messages to disk instead.
package mail

import (
	"context"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	ErrFailedToSendEmail = errors.New("failed to send email")
	ErrInvalidConfig     = errors.New("invalid mail config")
	ErrInvalidParams     = errors.New("invalid email params")
)

// EmailSender sends a single rendered message.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams is a fully rendered message.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	BodyText string `json:"body_text,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

func (p SendEmailParams) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.SendTo, validation.Required, is.EmailFormat),
		validation.Field(&p.Subject, validation.Required),
		validation.Field(&p.BodyHTML, validation.Required),
	)
	if err != nil {
		return errors.Join(ErrInvalidParams, err)
	}
	return nil
}

// Config holds sender identity and Postmark credentials. With empty tokens
// the dev sender is used.
type Config struct {
	PostmarkServerToken  string
	PostmarkAccountToken string
	SenderEmail          string
	SupportEmail         string
	DevDir               string
}

// UsePostmark reports whether both Postmark tokens are configured.
func (c Config) UsePostmark() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}

// NewSender picks the Postmark client or the dev sender based on cfg.
func NewSender(cfg Config) (EmailSender, error) {
	if cfg.UsePostmark() {
		return NewPostmarkClient(cfg)
	}
	return NewDevSender(cfg.DevDir), nil
}

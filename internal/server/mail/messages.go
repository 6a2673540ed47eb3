package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// Tags attached to outgoing messages.
const (
	TagVerification  = "email-verification"
	TagPasswordReset = "password-reset"
)

var (
	verificationTmpl = template.Must(template.New("verification").Parse(
		`<p>Hi {{.Username}},</p>
<p>Continue on this link for verification: <a href="{{.Link}}">{{.Link}}</a></p>
<p>The link expires in {{.TTL}}.</p>`))

	passkeyTmpl = template.Must(template.New("passkey").Parse(
		`<p>Hi {{.Username}},</p>
<p>Your password change passkey is <strong>{{.Passkey}}</strong>.</p>
<p>It is valid for {{.TTL}} and can be used once. If you did not ask to change your password, ignore this email.</p>`))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// VerificationEmail builds the message carrying an email verification link.
func VerificationEmail(to, username, link string, ttl time.Duration) (SendEmailParams, error) {
	body, err := render(verificationTmpl, struct {
		Username, Link, TTL string
	}{username, link, ttl.String()})
	if err != nil {
		return SendEmailParams{}, err
	}
	return SendEmailParams{
		SendTo:   to,
		Subject:  "EduMate Email Verification",
		BodyHTML: body,
		BodyText: fmt.Sprintf("Continue on this link for verification: %s", link),
		Tag:      TagVerification,
	}, nil
}

// PasskeyEmail builds the message carrying a password-reset passkey.
func PasskeyEmail(to, username, passkey string, ttl time.Duration) (SendEmailParams, error) {
	body, err := render(passkeyTmpl, struct {
		Username, Passkey, TTL string
	}{username, passkey, ttl.String()})
	if err != nil {
		return SendEmailParams{}, err
	}
	return SendEmailParams{
		SendTo:   to,
		Subject:  "EduMate Password Change",
		BodyHTML: body,
		BodyText: fmt.Sprintf("Your password change passkey is %s. It is valid for %s.", passkey, ttl),
		Tag:      TagPasswordReset,
	}, nil
}

package models

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/dmitrijs2005/edumate/internal/common"
)

// Field limits for account data.
const (
	UsernameMinLen = 3
	UsernameMaxLen = 50
	EmailMaxLen    = 255
	PasswordMinLen = 8
	PasswordMaxLen = 255
	BioMaxLen      = 100
	DisplayNameMax = 50

	PostContentMax     = 1000
	MaxPostAttachments = 4
)

// ValidationError carries per-field messages and matches common.ErrorValidation.
type ValidationError struct {
	Fields validation.Errors
}

func (e *ValidationError) Error() string { return e.Fields.Error() }

func (e *ValidationError) Is(target error) bool { return target == common.ErrorValidation }

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		return &ValidationError{Fields: fields}
	}
	return &ValidationError{Fields: validation.Errors{"input": err}}
}

var (
	usernameRules = []validation.Rule{validation.Required, validation.RuneLength(UsernameMinLen, UsernameMaxLen)}
	emailRules    = []validation.Rule{validation.Required, validation.Length(0, EmailMaxLen), is.EmailFormat}
	passwordRules = []validation.Rule{validation.Required, validation.Length(PasswordMinLen, PasswordMaxLen)}
	bioRules      = []validation.Rule{validation.RuneLength(0, BioMaxLen)}
)

// Registration is a validated sign-up request.
type Registration struct {
	Username string
	Email    string
	Password string
	Bio      string
}

func NewRegistration(username, email, password, bio string) (Registration, error) {
	r := Registration{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
		Bio:      bio,
	}
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Username, usernameRules...),
		validation.Field(&r.Email, emailRules...),
		validation.Field(&r.Password, passwordRules...),
		validation.Field(&r.Bio, bioRules...),
	)
	return r, wrapValidation(err)
}

// Credentials is a validated login request.
type Credentials struct {
	Email    string
	Password string
}

func NewCredentials(email, password string) (Credentials, error) {
	c := Credentials{Email: strings.TrimSpace(email), Password: password}
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Email, emailRules...),
		validation.Field(&c.Password, passwordRules...),
	)
	return c, wrapValidation(err)
}

// ProfileUpdate carries the new username and email for an account.
type ProfileUpdate struct {
	Username string
	Email    string
}

func NewProfileUpdate(username, email string) (ProfileUpdate, error) {
	p := ProfileUpdate{Username: strings.TrimSpace(username), Email: strings.TrimSpace(email)}
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Username, usernameRules...),
		validation.Field(&p.Email, emailRules...),
	)
	return p, wrapValidation(err)
}

// ResetRequest asks for a password-reset passkey to be mailed.
type ResetRequest struct {
	Email string
}

func NewResetRequest(email string) (ResetRequest, error) {
	r := ResetRequest{Email: strings.TrimSpace(email)}
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, emailRules...),
	)
	return r, wrapValidation(err)
}

// PasswordChange redeems a passkey for a new password.
type PasswordChange struct {
	Email       string
	Passkey     string
	NewPassword string
}

func NewPasswordChange(email, passkey, newPassword string) (PasswordChange, error) {
	c := PasswordChange{
		Email:       strings.TrimSpace(email),
		Passkey:     strings.TrimSpace(passkey),
		NewPassword: newPassword,
	}
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Email, emailRules...),
		validation.Field(&c.Passkey, validation.Required),
		validation.Field(&c.NewPassword, passwordRules...),
	)
	return c, wrapValidation(err)
}

// Upload is one file received with a request.
type Upload struct {
	Filename string
	Content  []byte
}

func (u Upload) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Filename, validation.Required),
		validation.Field(&u.Content, validation.Required),
	)
}

// PostDraft is a validated post about to be published.
type PostDraft struct {
	Content     string
	Attachments []Upload
}

func NewPostDraft(content string, attachments []Upload) (PostDraft, error) {
	d := PostDraft{Content: strings.TrimSpace(content), Attachments: attachments}
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Content, validation.Required, validation.RuneLength(1, PostContentMax)),
		validation.Field(&d.Attachments, validation.Length(0, MaxPostAttachments)),
	)
	return d, wrapValidation(err)
}

// ValidateBio checks the bio length limit.
func ValidateBio(bio string) error {
	return wrapValidation(validation.Errors{"bio": validation.Validate(bio, bioRules...)}.Filter())
}

// ValidateDisplayName checks the display name length limit.
func ValidateDisplayName(name string) error {
	err := validation.Validate(name, validation.Required, validation.RuneLength(1, DisplayNameMax))
	return wrapValidation(validation.Errors{"display_name": err}.Filter())
}

// ValidatePassword checks a new password against the length limits.
func ValidatePassword(password string) error {
	return wrapValidation(validation.Errors{"password": validation.Validate(password, passwordRules...)}.Filter())
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/server/models"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type outcome struct {
	kind    error
	status  int
	message string
}

// outcomes is matched in order; the first kind err wraps decides the reply.
var outcomes = []outcome{
	{common.ErrDuplicateUsername, http.StatusConflict, ""},
	{common.ErrDuplicateEmail, http.StatusConflict, ""},
	{common.ErrUserAlreadyFollowed, http.StatusConflict, ""},
	{common.ErrUserNotFollowed, http.StatusConflict, ""},
	{common.ErrUserNotFound, http.StatusNotFound, ""},
	{common.ErrPasskeyNotFound, http.StatusNotFound, ""},
	{common.ErrPasswordMismatch, http.StatusUnauthorized, ""},
	{common.ErrTokenExpired, http.StatusUnauthorized, ""},
	{common.ErrInvalidToken, http.StatusUnauthorized, ""},
	{common.ErrorUnauthorized, http.StatusUnauthorized, ""},
	{common.ErrIncorrectPasskey, http.StatusForbidden, ""},
	{common.ErrNotVerified, http.StatusForbidden, ""},
	{common.ErrPasskeyTooOld, http.StatusGone, ""},
	{common.ErrCannotFollowSelf, http.StatusBadRequest, "cannot follow yourself"},
	{common.ErrorValidation, http.StatusBadRequest, ""},
	{common.ErrMailDispatch, http.StatusBadGateway, ""},
}

// statusFor maps a service error to its HTTP status and public message.
// Unknown errors never leak their text.
func statusFor(err error) (int, string) {
	for _, o := range outcomes {
		if !errors.Is(err, o.kind) {
			continue
		}
		if o.message != "" {
			return o.status, o.message
		}
		return o.status, o.kind.Error()
	}
	return http.StatusInternalServerError, common.ErrUnknown.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	resp := errorResponse{Error: msg}

	var verr *models.ValidationError
	if errors.As(err, &verr) {
		resp.Details = make(map[string]string, len(verr.Fields))
		for field, fe := range verr.Fields {
			resp.Details[field] = fe.Error()
		}
	}
	writeJSON(w, status, resp)
}

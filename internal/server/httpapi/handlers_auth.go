package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/server/models"
)

// maxJSONBody bounds every JSON request body.
const maxJSONBody = 1 << 20

// decode reads a JSON body into v. Malformed input is a validation error.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", common.ErrorValidation, err)
	}
	return nil
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	in, err := models.NewRegistration(req.Username, req.Email, req.Password, req.Bio)
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.identity.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	creds, err := models.NewCredentials(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.identity.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: session.Token})
}

func (h *Handlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, common.ErrInvalidToken)
		return
	}

	account, err := h.verification.Consume(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type resetRequest struct {
	Email string `json:"email"`
}

func (h *Handlers) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	in, err := models.NewResetRequest(req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.reset.RequestReset(r.Context(), in.Email); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type changePasswordRequest struct {
	Email       string `json:"email"`
	Passkey     string `json:"passkey"`
	NewPassword string `json:"new_password"`
}

func (h *Handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	in, err := models.NewPasswordChange(req.Email, req.Passkey, req.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.reset.ChangePassword(r.Context(), in.Email, in.Passkey, in.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

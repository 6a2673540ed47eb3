package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/server/models"
)

// currentAccount returns the authenticated account id or writes 401.
func currentAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := accountIDFrom(r.Context())
	if !ok {
		writeError(w, common.ErrorUnauthorized)
	}
	return id, ok
}

type profileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *Handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAccount(w, r)
	if !ok {
		return
	}

	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	in, err := models.NewProfileUpdate(req.Username, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.identity.UpdateProfile(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type bioRequest struct {
	Bio string `json:"bio"`
}

func (h *Handlers) changeBio(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAccount(w, r)
	if !ok {
		return
	}

	var req bioRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.identity.ChangeBio(r.Context(), id, req.Bio)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type displayNameRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *Handlers) changeDisplayName(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAccount(w, r)
	if !ok {
		return
	}

	var req displayNameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.identity.ChangeDisplayName(r.Context(), id, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type avatarResponse struct {
	AvatarURL string `json:"avatar_url"`
}

func (h *Handlers) changeAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAccount(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxAvatarSize+(64<<10))
	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, fmt.Errorf("%w: avatar: %v", common.ErrorValidation, err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxAvatarSize+1))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, fmt.Errorf("%w: avatar too large", common.ErrorValidation))
			return
		}
		writeError(w, err)
		return
	}
	if int64(len(content)) > h.maxAvatarSize {
		writeError(w, fmt.Errorf("%w: avatar too large", common.ErrorValidation))
		return
	}

	url, err := h.identity.ChangeAvatar(r.Context(), id, header.Filename, content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, avatarResponse{AvatarURL: url})
}

func (h *Handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAccount(w, r)
	if !ok {
		return
	}

	account, err := h.identity.DeleteAccount(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.identity.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *Handlers) getByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, fmt.Errorf("%w: email is required", common.ErrorValidation))
		return
	}

	account, err := h.identity.GetByEmail(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handlers) follow(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAccount(w, r)
	if !ok {
		return
	}

	if err := h.graph.Follow(r.Context(), id, chi.URLParam(r, "username")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) unfollow(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAccount(w, r)
	if !ok {
		return
	}

	if err := h.graph.Unfollow(r.Context(), id, chi.URLParam(r, "username")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) following(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.graph.Following(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *Handlers) followers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.graph.Followers(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

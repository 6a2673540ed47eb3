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

// attachmentFields are the multipart file fields read by addPost, in order.
var attachmentFields = []string{"file1", "file2", "file3", "file4"}

func (h *Handlers) addPost(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAccount(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(len(attachmentFields))*h.maxAttachmentSize+(64<<10))
	if err := r.ParseMultipartForm(h.maxAttachmentSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, fmt.Errorf("%w: post too large", common.ErrorValidation))
			return
		}
		writeError(w, fmt.Errorf("%w: post: %v", common.ErrorValidation, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var uploads []models.Upload
	for _, field := range attachmentFields {
		up, err := h.readAttachment(r, field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			writeError(w, err)
			return
		}
		uploads = append(uploads, *up)
	}

	draft, err := models.NewPostDraft(r.FormValue("content"), uploads)
	if err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Publish(r.Context(), id, draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *Handlers) readAttachment(r *http.Request, field string) (*models.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxAttachmentSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrorValidation, field, err)
	}
	if int64(len(content)) > h.maxAttachmentSize {
		return nil, fmt.Errorf("%w: %s too large", common.ErrorValidation, field)
	}
	return &models.Upload{Filename: header.Filename, Content: content}, nil
}

func (h *Handlers) feed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Feed(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

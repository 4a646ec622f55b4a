package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"flash-quiz/internal/services"
)

type notesRequest struct {
	Title      string `json:"title"`
	SourceName string `json:"source_name"`
	Notes      string `json:"notes"`
}

// readNotes accepts a multipart upload in "userfile", a "notes" form field,
// or a JSON body. It returns the normalized notes and an optional title.
func (s *Server) readNotes(w http.ResponseWriter, r *http.Request) (*services.Notes, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var payload notesRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return nil, "", errInvalidPayload
		}
		name := payload.SourceName
		if name == "" {
			name = "notes"
		}
		notes, err := s.notes.FromText(name, payload.Notes)
		return notes, payload.Title, err

	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, "", fmt.Errorf("%w: invalid multipart form", errInvalidPayload)
		}
		defer r.MultipartForm.RemoveAll()

		title := r.FormValue("title")
		file, header, err := r.FormFile("userfile")
		switch {
		case err == nil:
			defer file.Close()
			notes, saveErr := s.notes.Save(r.Context(), header.Filename, file)
			if saveErr == nil || !errors.Is(saveErr, services.ErrNoContent) {
				return notes, title, saveErr
			}
		case !errors.Is(err, http.ErrMissingFile):
			return nil, "", fmt.Errorf("%w: %v", errInvalidPayload, err)
		}
		notes, err := s.notes.FromText("notes", r.FormValue("notes"))
		return notes, title, err

	default:
		if err := r.ParseForm(); err != nil {
			return nil, "", errInvalidPayload
		}
		notes, err := s.notes.FromText("notes", r.PostFormValue("notes"))
		return notes, strings.TrimSpace(r.PostFormValue("title")), err
	}
}

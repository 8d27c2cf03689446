package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pantry/internal/pantry"
	"pantry/internal/services"
)

// maxUploadBytes caps the multipart body, photo included.
const maxUploadBytes = 10 << 20

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := s.inventory.Snapshot(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items = pantry.Filter(items, r.URL.Query().Get("search"))
	s.writeJSON(w, http.StatusOK, InventoryResponse{Items: FromItems(items)})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	draft, asset, err := readDraft(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	outcome, err := s.inventory.AddItem(r.Context(), draft, asset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if outcome.Skipped {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusCreated, FromItem(outcome.Item))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	draft, asset, err := readDraft(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	outcome, err := s.inventory.EditItem(r.Context(), id, draft, asset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if outcome.Skipped {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, FromOutcome(outcome))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	outcome, err := s.inventory.DeleteItem(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromOutcome(outcome))
}

// readDraft accepts multipart or urlencoded forms. The photo is the optional
// "image" file part.
func readDraft(w http.ResponseWriter, r *http.Request) (pantry.Draft, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return pantry.Draft{}, nil, services.Wrap(services.ErrValidation, "api", "read form", "malformed multipart body", err)
		}
		if err := r.ParseForm(); err != nil {
			return pantry.Draft{}, nil, services.Wrap(services.ErrValidation, "api", "read form", "malformed form body", err)
		}
	}
	draft := pantry.Draft{
		Name:     r.FormValue("name"),
		Price:    r.FormValue("price"),
		Quantity: r.FormValue("quantity"),
		ImageURL: r.FormValue("image_url"),
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return draft, nil, nil
	}
	if err != nil {
		return pantry.Draft{}, nil, services.Wrap(services.ErrValidation, "api", "read form", "unreadable image part", err)
	}
	defer file.Close()
	asset, err := io.ReadAll(file)
	if err != nil {
		return pantry.Draft{}, nil, services.Wrap(services.ErrValidation, "api", "read form",
			fmt.Sprintf("read image %q", header.Filename), err)
	}
	return draft, asset, nil
}

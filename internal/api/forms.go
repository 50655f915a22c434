package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"yoyaku/internal/deploy"
	"yoyaku/internal/formconfig"
	"yoyaku/internal/menuexport"
	"yoyaku/internal/publish"
	"yoyaku/internal/store"
	"yoyaku/internal/submission"
	"yoyaku/internal/wizard"
)

// FormResponse is a stored form as returned by the API.
type FormResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Version       int             `json:"version"`
	Config        json.RawMessage `json:"config,omitempty"`
	PublishedHash string          `json:"published_hash,omitempty"`
	PublicURL     string          `json:"public_url,omitempty"`
	ProxyURL      string          `json:"proxy_url,omitempty"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Problems      []string        `json:"problems,omitempty"`
}

func formResponse(f *store.Form, withConfig bool) FormResponse {
	resp := FormResponse{
		ID:            f.ID,
		Name:          f.Name,
		Version:       f.Version,
		PublishedHash: f.PublishedHash,
		PublicURL:     f.PublicURL,
		ProxyURL:      f.ProxyURL,
		PublishedAt:   f.PublishedAt,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
	if withConfig {
		resp.Config = json.RawMessage(f.Config)
	}
	return resp
}

// SubmissionPreviewResponse carries the text a customer's messaging app would
// receive for a selection.
type SubmissionPreviewResponse struct {
	Text     string `json:"text"`
	Price    int    `json:"price"`
	Duration int    `json:"duration"`
}

// ValidationResponse reports the first blocking validation problem.
type ValidationResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// writeFormError maps pipeline errors to status codes.
func (s *HTTPServer) writeFormError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "form not found")
	case errors.Is(err, formconfig.ErrNotObject), errors.Is(err, store.ErrEmptyConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, publish.ErrInvalidWeek):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, deploy.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, "form id cannot be used as a page name")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Form request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxConfigBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	return data, true
}

// handleListForms returns every stored form without its configuration.
// GET /api/v1/forms
func (s *HTTPServer) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := s.store.ListForms(r.Context())
	if err != nil {
		s.writeFormError(w, r, err)
		return
	}
	out := make([]FormResponse, 0, len(forms))
	for _, f := range forms {
		out = append(out, formResponse(f, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"forms": out})
}

// handleCreateForm stores a new form under a generated id.
// POST /api/v1/forms
func (s *HTTPServer) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	s.save(w, r, uuid.NewString(), http.StatusCreated)
}

// handleGetForm returns the stored configuration as authored.
// GET /api/v1/forms/{id}
func (s *HTTPServer) handleGetForm(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.GetForm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFormError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, formResponse(f, true))
}

// handlePutForm creates or replaces a configuration.
// PUT /api/v1/forms/{id}
func (s *HTTPServer) handlePutForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := deploy.Key(id); err != nil {
		s.writeFormError(w, r, err)
		return
	}
	s.save(w, r, id, http.StatusOK)
}

func (s *HTTPServer) save(w http.ResponseWriter, r *http.Request, id string, status int) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	res, err := s.forms.Save(r.Context(), id, body)
	if err != nil {
		s.writeFormError(w, r, err)
		return
	}
	resp := formResponse(res.Form, true)
	resp.Problems = res.Problems
	writeJSON(w, status, resp)
}

// DELETE /api/v1/forms/{id}
func (s *HTTPServer) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteForm(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeFormError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNormalizedConfig returns the configuration with every default filled
// in, exactly as embedded in the page.
// GET /api/v1/forms/{id}/config
func (s *HTTPServer) handleNormalizedConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.forms.Config(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFormError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// GET /api/v1/forms/{id}/preview
func (s *HTTPServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	page, err := s.forms.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFormError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", deploy.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(page)
}

// handlePublish deploys the form. ?force=true deploys an unchanged page.
// POST /api/v1/forms/{id}/publish
func (s *HTTPServer) handlePublish(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	res, err := s.forms.Publish(r.Context(), chi.URLParam(r, "id"), force)
	if err != nil {
		s.writeFormError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSlots previews the slots the form offers. Calendar forms accept
// ?week=YYYY-MM-DD for the first day of the grid.
// GET /api/v1/forms/{id}/slots
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	preview, err := s.forms.Slots(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("week"))
	if err != nil {
		s.writeFormError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleSubmissionPreview replays a selection through the booking state
// machine and returns the message text the form would send.
// POST /api/v1/forms/{id}/submission-preview
func (s *HTTPServer) handleSubmissionPreview(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.forms.Config(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFormError(w, r, err)
		return
	}

	var sel wizard.Selection
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxConfigBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&sel); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	session := wizard.NewSession(cfg)
	if err := session.Apply(sel); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	booking, err := session.Booking()
	var verr *wizard.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{
			Error:   "validation failed",
			Field:   verr.Field,
			Message: verr.Message,
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	totals, _ := session.Totals()
	writeJSON(w, http.StatusOK, SubmissionPreviewResponse{
		Text:     submission.Format(booking),
		Price:    totals.Price,
		Duration: totals.Duration,
	})
}

// GET /api/v1/forms/{id}/menu.xlsx
func (s *HTTPServer) handleMenuExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, err := s.forms.Config(r.Context(), id)
	if err != nil {
		s.writeFormError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := menuexport.Export(cfg, &buf); err != nil {
		s.writeFormError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": id + "-menu.xlsx"}))
	_, _ = w.Write(buf.Bytes())
}

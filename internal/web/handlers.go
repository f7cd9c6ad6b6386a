package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/psm/internal/core"
	"github.com/JonMunkholm/psm/internal/logging"
	"github.com/JonMunkholm/psm/internal/web/templates"
)

// maxFormMemory bounds the in-memory part of a /match form.
const maxFormMemory = 1 << 20

// handlePage renders the main matching page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	o, err := orchestratorFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Page(o.Snapshot()).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "error", err)
	}
}

// handleState returns the session view as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	o, err := orchestratorFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, o.Snapshot())
}

// handleUpload streams the "file" part of a multipart upload into a slot.
// The body is read part by part so large cohorts never sit in a parsed
// form; the orchestrator enforces the per-file cap.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	slot, err := core.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	o, err := orchestratorFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		s.respondError(w, r, fmt.Errorf("no file provided: %w", err), http.StatusBadRequest)
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				err = fmt.Errorf("%w: request body exceeds %d bytes", core.ErrFileTooLarge, maxErr.Limit)
			}
			s.respondError(w, r, err, statusFor(err))
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		logger := logging.WithFields(r.Context(), "slot", slot, "file", part.FileName())
		logger.Info("upload received")

		loadErr := o.Load(r.Context(), slot, part.FileName(), part)
		part.Close()
		s.respondAfterChange(w, r, o, loadErr)
		return
	}

	s.respondError(w, r, errors.New("no file provided"), http.StatusBadRequest)
}

// handleClear withdraws the file in a slot.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	slot, err := core.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}
	o, err := orchestratorFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	o.Clear(slot)
	logging.FromContext(r.Context()).Debug("slot cleared", "slot", slot)
	s.respondAfterChange(w, r, o, nil)
}

// handleMatch runs one match with the submitted covariates. The request
// blocks until the matcher answers or times out.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	o, err := orchestratorFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	if err := parseForm(r); err != nil {
		s.respondError(w, r, fmt.Errorf("invalid match form: %w", err), http.StatusBadRequest)
		return
	}

	// The match is detached from the connection so a reload or a second
	// click cannot cancel it. The orchestrator's match timeout bounds it.
	ctx := context.WithoutCancel(r.Context())
	_, err = o.SubmitColumns(ctx, formColumns(r))
	s.respondAfterChange(w, r, o, err)
}

// handleExport downloads the current result as matched_control.csv.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	o, err := orchestratorFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	text, err := o.Export()
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", core.ExportFileName))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.WriteString(w, text); err != nil {
		logging.FromContext(r.Context()).Warn("export write failed", "error", err)
	}
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status   string                  `json:"status"`
	Sessions int                     `json:"sessions"`
	Matches  core.MatchLimiterStatus `json:"matches"`
}

// handleHealth reports liveness and matcher capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.service.SessionCount(),
		Matches:  s.service.LimiterStatus(),
	})
}

// respondAfterChange answers a mutating request. JSON clients get the new
// view, or the error when the action failed. Plain form posts are
// redirected back to the page, where any error is shown from the session
// state.
func (s *Server) respondAfterChange(w http.ResponseWriter, r *http.Request, o *core.Orchestrator, actionErr error) {
	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if actionErr != nil {
		s.respondError(w, r, actionErr, statusFor(actionErr))
		return
	}
	writeJSON(w, http.StatusOK, o.Snapshot())
}

// parseForm parses urlencoded and multipart bodies alike.
func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

// formColumns collects "columns" values. Each value may itself be a
// comma-separated list.
func formColumns(r *http.Request) []string {
	var cols []string
	for _, v := range r.Form["columns"] {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cols = append(cols, c)
			}
		}
	}
	return cols
}

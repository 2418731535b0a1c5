package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ExamSeat/internal/core"
	"github.com/JonMunkholm/ExamSeat/internal/logging"
	"github.com/JonMunkholm/ExamSeat/internal/web/templates"
)

type generateRequest struct {
	AntiCheatLevel string `json:"anti_cheat_level" validate:"omitempty,oneof=basic strict max"`
}

func (s *Server) handleExamIndex(w http.ResponseWriter, r *http.Request) {
	exams, err := s.service.ListExams(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	renderHTML(w, r, templates.ExamIndex(exams))
}

func (s *Server) handleSeatingPage(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetSeatingView(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	renderHTML(w, r, templates.SeatingPage(view))
}

func (s *Server) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := s.service.ListExams(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

func (s *Server) handleSeating(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetSeatingView(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleGenerateSeating (re)seats an exam. The JSON body is optional.
func (s *Server) handleGenerateSeating(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, r, &core.ValidationError{Reason: "malformed JSON body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, r, validationError(err))
		return
	}

	res, err := s.service.GenerateSeating(r.Context(), chi.URLParam(r, "examID"), core.Strictness(req.AntiCheatLevel))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStudentSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := s.service.GetStudentSchedule(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) handleDatabase(w http.ResponseWriter, r *http.Request) {
	overview, err := s.service.DatabaseOverview(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func renderHTML(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}

package web

// errors.go turns errors into responses. The technical error is logged with
// the request id; the client gets the core.MapError message and code, as
// JSON under /api and as an HTML page elsewhere.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/ExamSeat/internal/core"
	"github.com/JonMunkholm/ExamSeat/internal/logging"
	"github.com/JonMunkholm/ExamSeat/internal/seatgen"
	"github.com/JonMunkholm/ExamSeat/internal/sheet"
	"github.com/JonMunkholm/ExamSeat/internal/web/templates"
)

// ErrorResponse is the JSON error body. Failed imports also carry the
// abort reason and the partial result.
type ErrorResponse struct {
	Error       string             `json:"error"`
	Message     string             `json:"message"`
	Action      string             `json:"action,omitempty"`
	Code        string             `json:"code"`
	Reason      core.AbortReason   `json:"reason,omitempty"`
	LastSession string             `json:"last_session,omitempty"`
	Result      *core.ImportResult `json:"result,omitempty"`
}

var (
	errNoFile   = errors.New("no file provided")
	errTooLarge = errors.New("file too large")
)

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	log := logging.FromContext(r.Context())
	log.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)

	if status == http.StatusServiceUnavailable && errors.Is(err, core.ErrImportBusy) {
		w.Header().Set("Retry-After", "30")
	}

	if !wantsJSON(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		templates.ErrorPage(msg).Render(r.Context(), w)
		return
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var aborted *core.ImportAbortedError
	if errors.As(err, &aborted) {
		resp.Reason = aborted.Reason
		resp.LastSession = aborted.LastSession
		resp.Result = aborted.Result
	}
	writeJSON(w, status, resp)
}

// statusFor picks the HTTP status for err. Import aborts are classified by
// their cause.
func statusFor(err error) int {
	var (
		ve       *core.ValidationError
		ue       *core.UnresolvedIdentityError
		step     *core.StepError
		tooLarge *http.MaxBytesError
		decode   *sheet.DecodeError
		genErr   *seatgen.StatusError
	)
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &ve), errors.As(err, &decode),
		errors.Is(err, sheet.ErrEmpty), errors.Is(err, sheet.ErrUnsupported), errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.As(err, &ue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrImportBusy),
		errors.Is(err, core.ErrSeatGeneratorUnavailable),
		errors.Is(err, core.ErrMailerUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &genErr), errors.As(err, &step) && step.Step == core.StepGenerate:
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ExamSeat/internal/logging"
)

// ImportResult accumulates everything an import produced. It is returned
// on success and attached to *ImportAbortedError on failure.
type ImportResult struct {
	ImportID         string           `json:"import_id"`
	ImportedSessions int              `json:"imported_sessions"`
	SkippedRows      int              `json:"skipped_rows"`
	Skipped          []SkippedRow     `json:"skipped,omitempty"`
	Warnings         []Warning        `json:"warnings,omitempty"`
	Sessions         []SessionOutcome `json:"sessions,omitempty"`
	StartedAt        time.Time        `json:"started_at"`
	DurationMS       int64            `json:"duration_ms"`
}

func (r *ImportResult) addSkipped(rows []SkippedRow) {
	r.Skipped = append(r.Skipped, rows...)
	r.SkippedRows = len(r.Skipped)
}

func (r *ImportResult) addOutcome(o SessionOutcome) {
	r.Sessions = append(r.Sessions, o)
	r.Warnings = append(r.Warnings, o.Warnings...)
	r.ImportedSessions = len(r.Sessions)
}

// LastSession returns the key of the last reconciled session, or "".
func (r *ImportResult) LastSession() string {
	if len(r.Sessions) == 0 {
		return ""
	}
	return string(r.Sessions[len(r.Sessions)-1].Key)
}

// ImportSpreadsheet imports decoded rows. Headers are validated before any
// write. Rows are normalized, grouped by session and reconciled one group
// at a time in first-appearance order; the first failing group stops the
// import and earlier groups stay persisted. Every failure is an
// *ImportAbortedError carrying the partial result.
func (s *Service) ImportSpreadsheet(ctx context.Context, rows []RawRow, opts ImportOptions) (*ImportResult, error) {
	start := s.now()
	result := &ImportResult{ImportID: uuid.NewString(), StartedAt: start}

	// An import always runs to completion once started: a cancelled store
	// call could leave a session group half written. The detached context
	// keeps the caller's values (request id, logger).
	ctx = context.WithoutCancel(ctx)
	logger := logging.FromContext(ctx).With("import_id", result.ImportID)
	ctx = logging.NewContext(ctx, logger)

	if opts.AntiCheatLevel == "" {
		opts.AntiCheatLevel = s.cfg.DefaultAntiCheat
	}
	if err := s.validate.Struct(opts); err != nil {
		return s.abort(ctx, result, &ValidationError{Reason: "anti_cheat_level must be one of basic, strict, max"})
	}
	if err := ValidateHeaders(rows); err != nil {
		return s.abort(ctx, result, err)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return s.abort(ctx, result, err)
	}
	defer s.limiter.Release()

	normalized, skipped := NormalizeRows(rows)
	result.addSkipped(skipped)
	s.metrics.RowsSkipped(len(skipped))
	if len(skipped) > 0 {
		logger.Warn("rows skipped during normalization", "count", len(skipped))
	}

	groups := GroupSessions(normalized)
	logger.Info("import started",
		"rows", len(rows),
		"sessions", len(groups),
		"auto_generate", opts.AutoGenerate,
	)

	for _, g := range groups {
		outcome, err := s.reconciler.Reconcile(ctx, g, opts)
		if err != nil {
			return s.abort(ctx, result, err)
		}
		result.addOutcome(outcome)
	}

	result.DurationMS = s.now().Sub(start).Milliseconds()
	s.metrics.ImportFinished("success", s.now().Sub(start))
	logger.Info("import completed",
		"sessions", result.ImportedSessions,
		"skipped_rows", result.SkippedRows,
		"warnings", len(result.Warnings),
		"duration_ms", result.DurationMS,
	)
	return result, nil
}

func (s *Service) abort(ctx context.Context, result *ImportResult, cause error) (*ImportResult, error) {
	reason := abortReason(cause)
	result.DurationMS = s.now().Sub(result.StartedAt).Milliseconds()
	s.metrics.ImportFinished(string(reason), s.now().Sub(result.StartedAt))
	logging.FromContext(ctx).Error("import aborted",
		"reason", reason,
		"error", cause,
		"sessions", result.ImportedSessions,
		"last_session", result.LastSession(),
	)
	return result, &ImportAbortedError{
		Reason:      reason,
		Cause:       cause,
		LastSession: result.LastSession(),
		Result:      result,
	}
}

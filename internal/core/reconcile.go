package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/ExamSeat/internal/logging"
	"github.com/JonMunkholm/ExamSeat/internal/store"
)

const (
	// DefaultRoomCapacity applies when a row's capacity is blank or invalid.
	DefaultRoomCapacity = 50
	// DefaultDurationMinutes applies when a row's duration is blank or invalid.
	DefaultDurationMinutes = 120
)

var sessionConflictKeys = []string{"subject_id", "exam_date", "start_time", "room_id"}

// Reconciler writes one session group to the store: subject, room, exam
// session, identities and enrollments, then optionally asks for seats.
// Steps run strictly in that order and the first failure stops the group.
type Reconciler struct {
	store     store.Gateway
	generator SeatGenerator
	metrics   MetricsRecorder
}

// NewReconciler builds a reconciler. generator and metrics may be nil.
func NewReconciler(gw store.Gateway, generator SeatGenerator, metrics MetricsRecorder) *Reconciler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Reconciler{store: gw, generator: generator, metrics: metrics}
}

// Reconcile persists group. On failure the returned error is a
// *StepError or *UnresolvedIdentityError; writes from completed steps
// are not undone.
func (r *Reconciler) Reconcile(ctx context.Context, group SessionGroup, opts ImportOptions) (SessionOutcome, error) {
	key := string(group.Key)
	out := SessionOutcome{Key: group.Key}
	first := group.First()
	logger := logging.FromContext(ctx).With("session", key)

	subject, err := r.upsertSubject(ctx, first)
	if err != nil {
		return out, &StepError{Step: StepSubject, SessionKey: key, Err: err}
	}
	out.Subject = subject

	room, err := r.upsertRoom(ctx, first)
	if err != nil {
		return out, &StepError{Step: StepRoom, SessionKey: key, Err: err}
	}
	out.Room = room

	session, path, err := r.resolveSession(ctx, subject, room, first)
	if err != nil {
		return out, &StepError{Step: StepSession, SessionKey: key, Err: err}
	}
	out.Session, out.Path = session, path
	r.metrics.SessionReconciled(path)
	switch path {
	case PathReused:
		logger.Warn("session upsert unsupported, reused existing session", "exam_id", session.ID)
		out.Warnings = append(out.Warnings, Warning{Kind: WarnSessionReused, SessionKey: key,
			Message: "no unique constraint on exams; reused existing session " + session.ID})
	case PathInserted:
		logger.Warn("session upsert unsupported, inserted new session", "exam_id", session.ID)
		out.Warnings = append(out.Warnings, Warning{Kind: WarnSessionInserted, SessionKey: key,
			Message: "no unique constraint on exams; inserted session " + session.ID})
	}

	studentIDs := group.StudentIDs()
	warnings, err := r.syncIdentities(ctx, group, studentIDs)
	if err != nil {
		return out, &StepError{Step: StepIdentities, SessionKey: key, Err: err}
	}
	out.Warnings = append(out.Warnings, warnings...)

	canonical, err := r.resolveIdentities(ctx, key, studentIDs)
	if err != nil {
		return out, err
	}
	out.Students = len(canonical)

	n, err := r.upsertEnrollments(ctx, studentIDs, canonical, subject.ID)
	if err != nil {
		return out, &StepError{Step: StepEnrollments, SessionKey: key, Err: err}
	}
	out.Enrollments = n

	if opts.AutoGenerate {
		res, err := r.generate(ctx, session.ID, opts.AntiCheatLevel)
		r.metrics.SeatGeneration(err == nil)
		if err != nil {
			return out, &StepError{Step: StepGenerate, SessionKey: key, Err: err}
		}
		out.Generated = &res
	}

	logger.Debug("session reconciled",
		"exam_id", session.ID,
		"path", path,
		"students", out.Students,
	)
	return out, nil
}

func (r *Reconciler) upsertSubject(ctx context.Context, row NormalizedRow) (Subject, error) {
	name := row.SubjectName
	if name == "" {
		name = row.SubjectCode
	}
	rows, err := r.store.Upsert(ctx, store.TableSubjects,
		[]store.Record{{"code": row.SubjectCode, "name": name}}, []string{"code"})
	if err != nil {
		return Subject{}, err
	}
	if len(rows) == 0 {
		return Subject{}, fmt.Errorf("subject %s: upsert returned no row", row.SubjectCode)
	}
	return subjectFromRecord(rows[0]), nil
}

func (r *Reconciler) upsertRoom(ctx context.Context, row NormalizedRow) (Room, error) {
	rows, err := r.store.Upsert(ctx, store.TableRooms, []store.Record{{
		"room_number": row.RoomNumber,
		"capacity":    positiveInt(row.RoomCapacity, DefaultRoomCapacity),
	}}, []string{"room_number"})
	if err != nil {
		return Room{}, err
	}
	if len(rows) == 0 {
		return Room{}, fmt.Errorf("room %s: upsert returned no row", row.RoomNumber)
	}
	return roomFromRecord(rows[0]), nil
}

// sessionState drives session resolution. Upsert is attempted first; a
// store without the session unique constraint moves to select-or-insert.
type sessionState int

const (
	stateTryUpsert sessionState = iota
	stateSelectOrInsert
)

func sessionRecord(subject Subject, room Room, row NormalizedRow) store.Record {
	duration := positiveInt(row.DurationMinutes, DefaultDurationMinutes)
	return store.Record{
		"subject_id":       subject.ID,
		"room_id":          room.ID,
		"exam_date":        row.ExamDate,
		"start_time":       row.StartTime,
		"end_time":         ComputeEndTime(row.StartTime, duration),
		"duration_minutes": duration,
	}
}

func (r *Reconciler) resolveSession(ctx context.Context, subject Subject, room Room, row NormalizedRow) (ExamSession, SessionPath, error) {
	rec := sessionRecord(subject, room, row)
	state := stateTryUpsert
	for {
		switch state {
		case stateTryUpsert:
			s, err := r.tryUpsertSession(ctx, rec)
			if err == nil {
				return s, PathUpserted, nil
			}
			if !store.IsConstraintMissing(err) {
				return ExamSession{}, "", err
			}
			state = stateSelectOrInsert
		case stateSelectOrInsert:
			return r.selectOrInsertSession(ctx, rec)
		}
	}
}

func (r *Reconciler) tryUpsertSession(ctx context.Context, rec store.Record) (ExamSession, error) {
	rows, err := r.store.Upsert(ctx, store.TableExams, []store.Record{rec}, sessionConflictKeys)
	if err != nil {
		return ExamSession{}, err
	}
	if len(rows) == 0 {
		return ExamSession{}, fmt.Errorf("exam session: upsert returned no row")
	}
	return sessionFromRecord(rows[0]), nil
}

// selectOrInsertSession reuses the first session matching the natural key,
// or inserts one when none exists.
func (r *Reconciler) selectOrInsertSession(ctx context.Context, rec store.Record) (ExamSession, SessionPath, error) {
	filter := store.Filter{}
	for _, k := range sessionConflictKeys {
		filter = filter.Eq(k, rec[k])
	}
	existing, err := r.store.Select(ctx, store.TableExams, filter.First(1))
	if err != nil {
		return ExamSession{}, "", err
	}
	if len(existing) > 0 {
		return sessionFromRecord(existing[0]), PathReused, nil
	}
	inserted, err := r.store.Insert(ctx, store.TableExams, rec)
	if err != nil {
		return ExamSession{}, "", err
	}
	return sessionFromRecord(inserted), PathInserted, nil
}

// syncIdentities refreshes display names of students that already have a
// profile. Profiles are never created here; their ids belong to the auth
// system, so each update carries the id that was looked up.
func (r *Reconciler) syncIdentities(ctx context.Context, group SessionGroup, studentIDs []string) ([]Warning, error) {
	existing, err := r.store.Select(ctx, store.TableProfiles, store.In("student_id", studentIDs))
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(group.Rows))
	for _, row := range group.Rows {
		if _, ok := names[row.StudentID]; !ok {
			names[row.StudentID] = row.FullName
		}
	}

	var (
		updates  []store.Record
		warnings []Warning
	)
	for _, p := range existing {
		sid := p.String("student_id")
		name := names[sid]
		if name == "" {
			warnings = append(warnings, Warning{Kind: WarnNameMissing, SessionKey: string(group.Key),
				Message: "no full_name for student " + sid + "; kept existing name"})
			continue
		}
		if name == p.String("full_name") {
			continue
		}
		updates = append(updates, store.Record{"id": p.String("id"), "student_id": sid, "full_name": name})
	}
	if len(updates) == 0 {
		return warnings, nil
	}
	if _, err := r.store.Upsert(ctx, store.TableProfiles, updates, []string{"student_id"}); err != nil {
		return nil, err
	}
	return warnings, nil
}

// resolveIdentities maps every student id to its canonical profile id.
func (r *Reconciler) resolveIdentities(ctx context.Context, key string, studentIDs []string) (map[string]string, error) {
	rows, err := r.store.Select(ctx, store.TableProfiles, store.In("student_id", studentIDs))
	if err != nil {
		return nil, &StepError{Step: StepResolve, SessionKey: key, Err: err}
	}
	canonical := make(map[string]string, len(rows))
	for _, p := range rows {
		if id := p.String("id"); id != "" {
			canonical[p.String("student_id")] = id
		}
	}
	var missing []string
	for _, sid := range studentIDs {
		if _, ok := canonical[sid]; !ok {
			missing = append(missing, sid)
		}
	}
	if len(missing) > 0 {
		return nil, &UnresolvedIdentityError{SessionKey: key, StudentIDs: missing}
	}
	return canonical, nil
}

func (r *Reconciler) upsertEnrollments(ctx context.Context, studentIDs []string, canonical map[string]string, subjectID string) (int, error) {
	records := make([]store.Record, 0, len(studentIDs))
	for _, sid := range studentIDs {
		records = append(records, store.Record{"student_id": canonical[sid], "subject_id": subjectID})
	}
	rows, err := r.store.Upsert(ctx, store.TableEnrollments, records, []string{"student_id", "subject_id"})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *Reconciler) generate(ctx context.Context, examID string, level Strictness) (GenerateResult, error) {
	if r.generator == nil {
		return GenerateResult{}, ErrSeatGeneratorUnavailable
	}
	if level == "" {
		level = StrictnessBasic
	}
	return r.generator.Generate(ctx, examID, level)
}

package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/ExamSeat/internal/logging"
	"github.com/JonMunkholm/ExamSeat/internal/store"
)

// SeatingViewRow is one seat with its student and resolved subject label.
type SeatingViewRow struct {
	SeatNumber   string `json:"seat_number"`
	RowNumber    int    `json:"row_number"`
	ColumnNumber int    `json:"column_number"`
	ProfileID    string `json:"profile_id"`
	StudentID    string `json:"student_id"`
	StudentName  string `json:"student_name"`
	Subject      string `json:"subject"`
}

// SeatingView is the seat map of one exam session.
type SeatingView struct {
	Exam    ExamSession      `json:"exam"`
	Subject Subject          `json:"subject"`
	Room    Room             `json:"room"`
	Seats   []SeatingViewRow `json:"seats"`
}

// ExamListing is an exam session joined with its subject, room and seat count.
type ExamListing struct {
	ExamSession
	Subject   Subject `json:"subject"`
	Room      Room    `json:"room"`
	SeatCount int     `json:"seat_count"`
}

// GetSeatingView returns the seats of examID ordered by seat number.
func (s *Service) GetSeatingView(ctx context.Context, examID string) (*SeatingView, error) {
	exam, err := s.findExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	var (
		seats   []store.Record
		subject []store.Record
		room    []store.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		seats, err = s.store.Select(gctx, store.TableSeating, store.Eq("exam_id", exam.ID).Asc("seat_number"))
		return err
	})
	g.Go(func() (err error) {
		subject, err = s.store.Select(gctx, store.TableSubjects, store.Eq("id", exam.SubjectID))
		return err
	})
	g.Go(func() (err error) {
		room, err = s.store.Select(gctx, store.TableRooms, store.Eq("id", exam.RoomID))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load seating for exam %s: %w", examID, err)
	}

	view := &SeatingView{Exam: exam}
	if len(subject) > 0 {
		view.Subject = subjectFromRecord(subject[0])
	}
	if len(room) > 0 {
		view.Room = roomFromRecord(room[0])
	}

	rows, err := s.seatRows(ctx, view.Subject, seats)
	if err != nil {
		return nil, err
	}
	sortSeats(rows)
	view.Seats = rows
	return view, nil
}

// seatRows joins seats with profiles and resolves each seat's subject label.
func (s *Service) seatRows(ctx context.Context, examSubject Subject, seats []store.Record) ([]SeatingViewRow, error) {
	profileIDs := distinct(seats, "student_id")
	if len(profileIDs) == 0 {
		return []SeatingViewRow{}, nil
	}

	var (
		profiles    []store.Record
		enrollments map[string][]EnrolledSubject
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profiles, err = s.store.Select(gctx, store.TableProfiles, store.In("id", profileIDs))
		return err
	})
	g.Go(func() (err error) {
		enrollments, err = s.enrolledSubjects(gctx, profileIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load seat occupants: %w", err)
	}

	byID := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		pr := profileFromRecord(p)
		byID[pr.ID] = pr
	}

	out := make([]SeatingViewRow, 0, len(seats))
	for _, rec := range seats {
		seat := seatFromRecord(rec)
		p := byID[seat.StudentID]
		label, _ := ResolveSubject(SeatSubject{
			StudentID:    seat.StudentID,
			SubjectID:    examSubject.ID,
			SubjectLabel: examSubject.Label(),
		}, enrollments[seat.StudentID])
		out = append(out, SeatingViewRow{
			SeatNumber:   seat.SeatNumber,
			RowNumber:    seat.RowNumber,
			ColumnNumber: seat.ColumnNumber,
			ProfileID:    seat.StudentID,
			StudentID:    p.StudentID,
			StudentName:  p.FullName,
			Subject:      label,
		})
	}
	return out, nil
}

// enrolledSubjects returns each profile's enrollments with subject labels,
// in enrollment order.
func (s *Service) enrolledSubjects(ctx context.Context, profileIDs []string) (map[string][]EnrolledSubject, error) {
	enrolls, err := s.store.Select(ctx, store.TableEnrollments, store.In("student_id", profileIDs))
	if err != nil {
		return nil, err
	}
	subjects, err := s.store.Select(ctx, store.TableSubjects, store.In("id", distinct(enrolls, "subject_id")))
	if err != nil {
		return nil, err
	}
	labels := make(map[string]string, len(subjects))
	for _, rec := range subjects {
		sub := subjectFromRecord(rec)
		labels[sub.ID] = sub.Label()
	}
	out := make(map[string][]EnrolledSubject)
	for _, e := range enrolls {
		sid := e.String("subject_id")
		pid := e.String("student_id")
		out[pid] = append(out[pid], EnrolledSubject{SubjectID: sid, Label: labels[sid]})
	}
	return out, nil
}

// ListExams returns all exam sessions by date and start time.
func (s *Service) ListExams(ctx context.Context) ([]ExamListing, error) {
	var exams, subjects, rooms, seats []store.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		exams, err = s.store.Select(gctx, store.TableExams, store.All().Asc("exam_date").Asc("start_time"))
		return err
	})
	g.Go(func() (err error) {
		subjects, err = s.store.Select(gctx, store.TableSubjects, store.All())
		return err
	})
	g.Go(func() (err error) {
		rooms, err = s.store.Select(gctx, store.TableRooms, store.All())
		return err
	})
	g.Go(func() (err error) {
		seats, err = s.store.Select(gctx, store.TableSeating, store.All())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	subjectByID := make(map[string]Subject, len(subjects))
	for _, r := range subjects {
		subjectByID[r.String("id")] = subjectFromRecord(r)
	}
	roomByID := make(map[string]Room, len(rooms))
	for _, r := range rooms {
		roomByID[r.String("id")] = roomFromRecord(r)
	}
	seatCount := make(map[string]int)
	for _, r := range seats {
		seatCount[r.String("exam_id")]++
	}

	out := make([]ExamListing, 0, len(exams))
	for _, r := range exams {
		e := sessionFromRecord(r)
		out = append(out, ExamListing{
			ExamSession: e,
			Subject:     subjectByID[e.SubjectID],
			Room:        roomByID[e.RoomID],
			SeatCount:   seatCount[e.ID],
		})
	}
	return out, nil
}

// GenerateSeating asks the seat generator to (re)seat an existing exam.
func (s *Service) GenerateSeating(ctx context.Context, examID string, level Strictness) (GenerateResult, error) {
	if level == "" {
		level = s.cfg.DefaultAntiCheat
	}
	if err := s.validate.Var(string(level), "oneof=basic strict max"); err != nil {
		return GenerateResult{}, &ValidationError{Reason: "anti_cheat_level must be one of basic, strict, max"}
	}
	exam, err := s.findExam(ctx, examID)
	if err != nil {
		return GenerateResult{}, err
	}
	if s.generator == nil {
		return GenerateResult{}, ErrSeatGeneratorUnavailable
	}
	res, err := s.generator.Generate(ctx, exam.ID, level)
	s.metrics.SeatGeneration(err == nil)
	if err != nil {
		return GenerateResult{}, &StepError{Step: StepGenerate, SessionKey: exam.ID, Err: err}
	}
	logging.FromContext(ctx).Info("seating generated", "exam_id", exam.ID, "level", level)
	return res, nil
}

// DatabaseOverview returns every row of every table, keyed by table name.
func (s *Service) DatabaseOverview(ctx context.Context) (map[string][]store.Record, error) {
	results := make([][]store.Record, len(store.Tables))
	g, gctx := errgroup.WithContext(ctx)
	for i, table := range store.Tables {
		g.Go(func() error {
			rows, err := s.store.Select(gctx, table, store.All())
			if err != nil {
				return fmt.Errorf("read %s: %w", table, err)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string][]store.Record, len(store.Tables))
	for i, table := range store.Tables {
		if results[i] == nil {
			results[i] = []store.Record{}
		}
		out[table] = results[i]
	}
	return out, nil
}

func (s *Service) findExam(ctx context.Context, examID string) (ExamSession, error) {
	rows, err := s.store.Select(ctx, store.TableExams, store.Eq("id", examID).First(1))
	if err != nil {
		return ExamSession{}, fmt.Errorf("find exam %s: %w", examID, err)
	}
	if len(rows) == 0 {
		return ExamSession{}, fmt.Errorf("exam %s: %w", examID, ErrNotFound)
	}
	return sessionFromRecord(rows[0]), nil
}

// distinct returns the non-empty values of col in first-seen order.
func distinct(rows []store.Record, col string) []string {
	seen := make(map[string]bool, len(rows))
	var out []string
	for _, r := range rows {
		v := r.String(col)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// sortSeats orders seats by grid position, then by seat number compared
// naturally ("A2" before "A10"). Seats without a position go last.
func sortSeats(rows []SeatingViewRow) {
	sort.SliceStable(rows, func(i, j int) bool { return seatLess(rows[i], rows[j]) })
}

func seatLess(a, b SeatingViewRow) bool {
	ap, bp := a.RowNumber > 0 && a.ColumnNumber > 0, b.RowNumber > 0 && b.ColumnNumber > 0
	if ap != bp {
		return ap
	}
	if ap {
		if a.RowNumber != b.RowNumber {
			return a.RowNumber < b.RowNumber
		}
		if a.ColumnNumber != b.ColumnNumber {
			return a.ColumnNumber < b.ColumnNumber
		}
	}
	return naturalLess(a.SeatNumber, b.SeatNumber)
}

// naturalLess compares s and t with digit runs read as numbers.
func naturalLess(s, t string) bool {
	i, j := 0, 0
	for i < len(s) && j < len(t) {
		if isDigit(s[i]) && isDigit(t[j]) {
			si, tj := i, j
			for i < len(s) && isDigit(s[i]) {
				i++
			}
			for j < len(t) && isDigit(t[j]) {
				j++
			}
			a := strings.TrimLeft(s[si:i], "0")
			b := strings.TrimLeft(t[tj:j], "0")
			if len(a) != len(b) {
				return len(a) < len(b)
			}
			if a != b {
				return a < b
			}
			continue
		}
		if s[i] != t[j] {
			return s[i] < t[j]
		}
		i++
		j++
	}
	return len(s)-i < len(t)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

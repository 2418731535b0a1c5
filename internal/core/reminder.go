package core

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/ExamSeat/internal/logging"
	"github.com/JonMunkholm/ExamSeat/internal/store"
)

// ErrMailerUnavailable is returned when reminders run without a sender.
var ErrMailerUnavailable = errors.New("email sender not configured")

// ReminderResult summarizes one reminder run.
type ReminderResult struct {
	Day     string `json:"day"`
	Exams   int    `json:"exams"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	NoEmail int    `json:"no_email"`
}

type recipient struct {
	profile Profile
	seat    string
}

// SendReminders emails every student sitting an exam on day. Students are
// taken from the exam's seating, or from the subject's enrollments when no
// seats exist yet. Delivery failures are counted, not returned.
func (s *Service) SendReminders(ctx context.Context, day time.Time) (*ReminderResult, error) {
	if s.mailer == nil {
		return nil, ErrMailerUnavailable
	}
	res := &ReminderResult{Day: day.Format(dateLayout)}
	logger := logging.FromContext(ctx).With("day", res.Day)

	examRows, err := s.store.Select(ctx, store.TableExams, store.Eq("exam_date", res.Day).Asc("start_time"))
	if err != nil {
		return nil, fmt.Errorf("load exams for %s: %w", res.Day, err)
	}
	res.Exams = len(examRows)
	if len(examRows) == 0 {
		logger.Info("no exams scheduled")
		return res, nil
	}

	subjects, err := s.store.Select(ctx, store.TableSubjects, store.In("id", distinct(examRows, "subject_id")))
	if err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}
	rooms, err := s.store.Select(ctx, store.TableRooms, store.In("id", distinct(examRows, "room_id")))
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	subjectByID := make(map[string]Subject, len(subjects))
	for _, r := range subjects {
		subjectByID[r.String("id")] = subjectFromRecord(r)
	}
	roomByID := make(map[string]Room, len(rooms))
	for _, r := range rooms {
		roomByID[r.String("id")] = roomFromRecord(r)
	}

	for _, r := range examRows {
		exam := sessionFromRecord(r)
		recipients, err := s.reminderRecipients(ctx, exam)
		if err != nil {
			return res, err
		}
		for _, rc := range recipients {
			if rc.profile.Email == "" {
				res.NoEmail++
				continue
			}
			msg := reminderMessage(rc, exam, subjectByID[exam.SubjectID], roomByID[exam.RoomID])
			if err := s.mailer.Send(ctx, msg); err != nil {
				res.Failed++
				s.metrics.ReminderSent(false)
				logger.Warn("reminder failed", "exam_id", exam.ID, "student_id", rc.profile.StudentID, "error", err)
				continue
			}
			res.Sent++
			s.metrics.ReminderSent(true)
		}
	}

	logger.Info("reminders sent",
		"exams", res.Exams,
		"sent", res.Sent,
		"failed", res.Failed,
		"no_email", res.NoEmail,
	)
	return res, nil
}

func (s *Service) reminderRecipients(ctx context.Context, exam ExamSession) ([]recipient, error) {
	seats, err := s.store.Select(ctx, store.TableSeating, store.Eq("exam_id", exam.ID).Asc("seat_number"))
	if err != nil {
		return nil, fmt.Errorf("load seating for exam %s: %w", exam.ID, err)
	}
	seatOf := make(map[string]string, len(seats))
	ids := distinct(seats, "student_id")
	for _, r := range seats {
		seatOf[r.String("student_id")] = r.String("seat_number")
	}
	if len(ids) == 0 {
		enrolls, err := s.store.Select(ctx, store.TableEnrollments, store.Eq("subject_id", exam.SubjectID))
		if err != nil {
			return nil, fmt.Errorf("load enrollments for exam %s: %w", exam.ID, err)
		}
		ids = distinct(enrolls, "student_id")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	profiles, err := s.store.Select(ctx, store.TableProfiles, store.In("id", ids))
	if err != nil {
		return nil, fmt.Errorf("load profiles for exam %s: %w", exam.ID, err)
	}
	out := make([]recipient, 0, len(profiles))
	for _, p := range profiles {
		pr := profileFromRecord(p)
		out = append(out, recipient{profile: pr, seat: seatOf[pr.ID]})
	}
	return out, nil
}

func reminderMessage(rc recipient, exam ExamSession, subject Subject, room Room) EmailMessage {
	label := subject.Label()
	if label == "" {
		label = "your exam"
	}
	start := trimSeconds(exam.StartTime)
	end := trimSeconds(exam.EndTime)

	var text strings.Builder
	fmt.Fprintf(&text, "Hello %s,\n\n", rc.profile.FullName)
	fmt.Fprintf(&text, "This is a reminder that %s takes place on %s from %s to %s", label, exam.ExamDate, start, end)
	if room.RoomNumber != "" {
		fmt.Fprintf(&text, " in room %s", room.RoomNumber)
	}
	text.WriteString(".\n")
	if rc.seat != "" {
		fmt.Fprintf(&text, "Your seat is %s.\n", rc.seat)
	}
	text.WriteString("\nGood luck!\n")

	esc := template.HTMLEscapeString
	var html strings.Builder
	fmt.Fprintf(&html, "<p>Hello %s,</p><p>This is a reminder that <strong>%s</strong> takes place on %s from %s to %s",
		esc(rc.profile.FullName), esc(label), esc(exam.ExamDate), esc(start), esc(end))
	if room.RoomNumber != "" {
		fmt.Fprintf(&html, " in room %s", esc(room.RoomNumber))
	}
	html.WriteString(".</p>")
	if rc.seat != "" {
		fmt.Fprintf(&html, "<p>Your seat is <strong>%s</strong>.</p>", esc(rc.seat))
	}
	html.WriteString("<p>Good luck!</p>")

	return EmailMessage{
		ToName:    rc.profile.FullName,
		ToAddress: rc.profile.Email,
		Subject:   fmt.Sprintf("Exam reminder: %s on %s", label, exam.ExamDate),
		Text:      text.String(),
		HTML:      html.String(),
	}
}

func trimSeconds(t string) string {
	if len(t) == len("15:04:05") && strings.Count(t, ":") == 2 {
		return t[:5]
	}
	return t
}

// StartReminderScheduler sends reminders for the following day every
// interval until ctx is cancelled.
func (s *Service) StartReminderScheduler(ctx context.Context, interval time.Duration) {
	slog.Info("reminder scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.runReminderJob(ctx)
		}
	}
}

func (s *Service) runReminderJob(ctx context.Context) {
	start := time.Now()
	tomorrow := s.now().AddDate(0, 0, 1)
	if _, err := s.SendReminders(ctx, tomorrow); err != nil {
		slog.Error("reminder job failed", "error", err)
		return
	}
	slog.Debug("reminder job completed", "duration_ms", time.Since(start).Milliseconds())
}

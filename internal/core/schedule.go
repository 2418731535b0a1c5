package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/ExamSeat/internal/store"
)

// ScheduleEntry is one upcoming exam for a student.
type ScheduleEntry struct {
	Exam    ExamSession      `json:"exam"`
	Subject Subject          `json:"subject"`
	Room    Room             `json:"room"`
	Seat    *Seat            `json:"seat,omitempty"`
	SeatMap []SeatingViewRow `json:"seat_map"`
}

// StudentSchedule lists the exams of the subjects a student is enrolled in.
type StudentSchedule struct {
	Profile Profile         `json:"profile"`
	Exams   []ScheduleEntry `json:"exams"`
}

// GetStudentSchedule builds the schedule of profileID. Own seats missing
// from the bulk read are looked up per exam.
func (s *Service) GetStudentSchedule(ctx context.Context, profileID string) (*StudentSchedule, error) {
	profiles, err := s.store.Select(ctx, store.TableProfiles, store.Eq("id", profileID).First(1))
	if err != nil {
		return nil, fmt.Errorf("find profile %s: %w", profileID, err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("profile %s: %w", profileID, ErrNotFound)
	}
	sched := &StudentSchedule{Profile: profileFromRecord(profiles[0]), Exams: []ScheduleEntry{}}

	enrolls, err := s.store.Select(ctx, store.TableEnrollments, store.Eq("student_id", profileID))
	if err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	subjectIDs := distinct(enrolls, "subject_id")
	if len(subjectIDs) == 0 {
		return sched, nil
	}

	exams, err := s.store.Select(ctx, store.TableExams,
		store.In("subject_id", subjectIDs).Asc("exam_date").Asc("start_time"))
	if err != nil {
		return nil, fmt.Errorf("load exams: %w", err)
	}
	if len(exams) == 0 {
		return sched, nil
	}
	examIDs := distinct(exams, "id")

	var subjects, rooms, seats []store.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		subjects, err = s.store.Select(gctx, store.TableSubjects, store.In("id", subjectIDs))
		return err
	})
	g.Go(func() (err error) {
		rooms, err = s.store.Select(gctx, store.TableRooms, store.In("id", distinct(exams, "room_id")))
		return err
	})
	g.Go(func() (err error) {
		seats, err = s.store.Select(gctx, store.TableSeating, store.In("exam_id", examIDs).Asc("seat_number"))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load schedule details: %w", err)
	}

	seatsByExam := make(map[string][]store.Record)
	own := make(map[string]Seat)
	for _, r := range seats {
		examID := r.String("exam_id")
		seatsByExam[examID] = append(seatsByExam[examID], r)
		if r.String("student_id") == profileID {
			own[examID] = seatFromRecord(r)
		}
	}

	missing := make([]string, 0, len(examIDs))
	for _, id := range examIDs {
		if _, ok := own[id]; !ok {
			missing = append(missing, id)
		}
	}
	found, err := s.lookupOwnSeats(ctx, profileID, missing)
	if err != nil {
		return nil, err
	}
	for examID, seat := range found {
		own[examID] = seat
	}

	subjectByID := make(map[string]Subject, len(subjects))
	for _, r := range subjects {
		subjectByID[r.String("id")] = subjectFromRecord(r)
	}
	roomByID := make(map[string]Room, len(rooms))
	for _, r := range rooms {
		roomByID[r.String("id")] = roomFromRecord(r)
	}

	for _, r := range exams {
		exam := sessionFromRecord(r)
		entry := ScheduleEntry{
			Exam:    exam,
			Subject: subjectByID[exam.SubjectID],
			Room:    roomByID[exam.RoomID],
		}
		if seat, ok := own[exam.ID]; ok {
			entry.Seat = &seat
		}
		entry.SeatMap, err = s.seatRows(ctx, entry.Subject, seatsByExam[exam.ID])
		if err != nil {
			return nil, err
		}
		sortSeats(entry.SeatMap)
		sched.Exams = append(sched.Exams, entry)
	}
	return sched, nil
}

// lookupOwnSeats fetches the student's seat for each exam individually,
// bounded by the lookup concurrency.
func (s *Service) lookupOwnSeats(ctx context.Context, profileID string, examIDs []string) (map[string]Seat, error) {
	if len(examIDs) == 0 {
		return nil, nil
	}
	found := make([]*Seat, len(examIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.LookupConcurrency)
	for i, examID := range examIDs {
		g.Go(func() error {
			rows, err := s.store.Select(gctx, store.TableSeating,
				store.Eq("exam_id", examID).Eq("student_id", profileID).First(1))
			if err != nil {
				return fmt.Errorf("seat lookup for exam %s: %w", examID, err)
			}
			if len(rows) > 0 {
				seat := seatFromRecord(rows[0])
				found[i] = &seat
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]Seat)
	for i, seat := range found {
		if seat != nil {
			out[examIDs[i]] = *seat
		}
	}
	return out, nil
}

package core

// EnrolledSubject is one subject a student is enrolled in.
type EnrolledSubject struct {
	SubjectID string
	Label     string
}

// SeatSubject describes the exam a seat belongs to.
type SeatSubject struct {
	StudentID    string // profile id
	SubjectID    string // exam's subject
	SubjectLabel string // exam's subject label, used when the student has no enrollments
}

// ResolveSubject picks the subject label to show next to a seat. With no
// enrollments the exam's own subject is used. Otherwise an enrollment in
// the exam's subject wins, falling back to the first enrollment listed.
// It reports false when no label can be produced.
func ResolveSubject(seat SeatSubject, enrollments []EnrolledSubject) (string, bool) {
	if len(enrollments) == 0 {
		return seat.SubjectLabel, seat.SubjectLabel != ""
	}
	chosen := enrollments[0]
	for _, e := range enrollments {
		if e.SubjectID == seat.SubjectID {
			chosen = e
			break
		}
	}
	if chosen.Label == "" {
		return seat.SubjectLabel, seat.SubjectLabel != ""
	}
	return chosen.Label, true
}

package core

import "testing"

func TestResolveSubject(t *testing.T) {
	seat := SeatSubject{StudentID: "p1", SubjectID: "math", SubjectLabel: "Mathematics (M1)"}

	tests := []struct {
		name        string
		seat        SeatSubject
		enrollments []EnrolledSubject
		want        string
		wantOK      bool
	}{
		{
			name:   "no enrollments uses exam subject",
			seat:   seat,
			want:   "Mathematics (M1)",
			wantOK: true,
		},
		{
			name:        "single enrollment",
			seat:        seat,
			enrollments: []EnrolledSubject{{SubjectID: "phys", Label: "Physics (P1)"}},
			want:        "Physics (P1)",
			wantOK:      true,
		},
		{
			name: "match preferred over first",
			seat: seat,
			enrollments: []EnrolledSubject{
				{SubjectID: "phys", Label: "Physics (P1)"},
				{SubjectID: "math", Label: "Mathematics (M1)"},
			},
			want:   "Mathematics (M1)",
			wantOK: true,
		},
		{
			name: "no match falls back to first",
			seat: seat,
			enrollments: []EnrolledSubject{
				{SubjectID: "chem", Label: "Chemistry (C1)"},
				{SubjectID: "phys", Label: "Physics (P1)"},
			},
			want:   "Chemistry (C1)",
			wantOK: true,
		},
		{
			name:   "nothing known",
			seat:   SeatSubject{StudentID: "p1", SubjectID: "x"},
			want:   "",
			wantOK: false,
		},
		{
			name:        "enrollment without label uses exam subject",
			seat:        seat,
			enrollments: []EnrolledSubject{{SubjectID: "gone"}},
			want:        "Mathematics (M1)",
			wantOK:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveSubject(tt.seat, tt.enrollments)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ResolveSubject() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveSubject_MatchIsOrderIndependent(t *testing.T) {
	seat := SeatSubject{SubjectID: "math", SubjectLabel: "exam"}
	a := EnrolledSubject{SubjectID: "math", Label: "Math"}
	b := EnrolledSubject{SubjectID: "phys", Label: "Physics"}

	for _, list := range [][]EnrolledSubject{{a, b}, {b, a}} {
		if got, _ := ResolveSubject(seat, list); got != "Math" {
			t.Errorf("ResolveSubject(%v) = %q, want Math", list, got)
		}
	}
}

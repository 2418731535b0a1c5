package core

import "strings"

// SessionGroupKey identifies one exam session within an import:
// subject code, date, start time and room.
type SessionGroupKey string

// KeyOf derives the session key of a normalized row.
func KeyOf(r NormalizedRow) SessionGroupKey {
	return SessionGroupKey(strings.Join([]string{r.SubjectCode, r.ExamDate, r.StartTime, r.RoomNumber}, "||"))
}

// SessionGroup holds the rows of one session in input order. Session-level
// attributes (subject name, capacity, duration) come from the first row.
type SessionGroup struct {
	Key  SessionGroupKey
	Rows []NormalizedRow
}

// First returns the row whose session-level attributes win.
func (g SessionGroup) First() NormalizedRow {
	return g.Rows[0]
}

// StudentIDs returns the distinct student ids in first-appearance order.
func (g SessionGroup) StudentIDs() []string {
	seen := make(map[string]bool, len(g.Rows))
	ids := make([]string, 0, len(g.Rows))
	for _, r := range g.Rows {
		if seen[r.StudentID] {
			continue
		}
		seen[r.StudentID] = true
		ids = append(ids, r.StudentID)
	}
	return ids
}

// GroupSessions partitions rows by session key. Groups are returned in
// order of each key's first appearance.
func GroupSessions(rows []NormalizedRow) []SessionGroup {
	index := make(map[SessionGroupKey]int)
	var groups []SessionGroup
	for _, r := range rows {
		key := KeyOf(r)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, SessionGroup{Key: key})
		}
		groups[i].Rows = append(groups[i].Rows, r)
	}
	return groups
}

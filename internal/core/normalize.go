package core

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Import column names after header normalization.
const (
	ColStudentID       = "student_id"
	ColFullName        = "full_name"
	ColSubjectCode     = "subject_code"
	ColSubjectName     = "subject_name"
	ColRoomNumber      = "room_number"
	ColRoomCapacity    = "room_capacity"
	ColExamDate        = "exam_date"
	ColStartTime       = "start_time"
	ColDurationMinutes = "duration_minutes"
)

// RequiredColumns must appear in the header of every import. start_time is
// optional; a missing column reads as DefaultStartTime.
var RequiredColumns = []string{
	ColStudentID,
	ColFullName,
	ColSubjectCode,
	ColRoomNumber,
	ColExamDate,
}

// ImportColumns is the full template header, in download order.
var ImportColumns = []string{
	ColStudentID,
	ColFullName,
	ColSubjectCode,
	ColSubjectName,
	ColRoomNumber,
	ColRoomCapacity,
	ColExamDate,
	ColStartTime,
	ColDurationMinutes,
}

// DefaultStartTime is used when a start time is blank or unreadable.
const DefaultStartTime = "09:00"

const (
	dateLayout = "2006-01-02"

	// Days between the spreadsheet epoch (1899-12-30) and 1970-01-01.
	serialEpochOffset = 25569
	// Serial day of 9999-12-31.
	maxSerialDay = 2958465
)

// generalDateLayouts are unambiguous formats tried before the
// day-month-year fallback. Slash or dot dates with a leading day or month
// are deliberately absent.
var generalDateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006/1/2",
	"20060102",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"Mon Jan 2 2006",
	"Mon, 02 Jan 2006",
}

var (
	numericCell = regexp.MustCompile(`^\d+(\.\d+)?$`)
	digitsOnly  = regexp.MustCompile(`^\d+$`)
	clockTime   = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::\d{2})?$`)
	dateSep     = regexp.MustCompile(`[/.\-]`)
)

// HeaderKey normalizes a header cell: trimmed, lowercased, spaces to
// underscores. "Student ID" -> "student_id".
func HeaderKey(h string) string {
	h = strings.ToLower(CleanCell(h))
	return strings.Join(strings.Fields(h), "_")
}

// CleanCell removes whitespace and spreadsheet export artifacts such as
// ="..." wrappers and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// keyed returns raw with normalized header keys. When two headers normalize
// to the same key, the first non-empty one in sorted header order wins.
// sheet.Decode already folds such columns in file order, so this only
// matters for rows built by hand.
func keyed(raw RawRow) map[string]any {
	names := make([]string, 0, len(raw))
	for k := range raw {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make(map[string]any, len(raw))
	for _, k := range names {
		v := raw[k]
		key := HeaderKey(k)
		if prev, ok := out[key]; ok && cellText(prev) != "" {
			continue
		}
		out[key] = v
	}
	return out
}

// ValidateHeaders fails when a required column is absent from every row.
func ValidateHeaders(rows []RawRow) error {
	if len(rows) == 0 {
		return &ValidationError{Reason: "empty file: no data rows"}
	}
	seen := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			seen[HeaderKey(k)] = true
		}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// cellText renders any decoded cell as trimmed NFC text.
func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return norm.NFC.String(CleanCell(x))
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.Format(dateLayout)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func isBlankRow(row RawRow) bool {
	for _, v := range row {
		if cellText(v) != "" {
			return false
		}
	}
	return true
}

// Normalize converts one raw row. line is the row's 1-based spreadsheet
// line. A non-nil SkippedRow means the row must not be imported.
func Normalize(raw RawRow, line int) (NormalizedRow, *SkippedRow) {
	row := keyed(raw)
	n := NormalizedRow{
		Line:            line,
		StudentID:       cellText(row[ColStudentID]),
		FullName:        cellText(row[ColFullName]),
		SubjectCode:     cellText(row[ColSubjectCode]),
		SubjectName:     cellText(row[ColSubjectName]),
		RoomNumber:      cellText(row[ColRoomNumber]),
		RoomCapacity:    cellText(row[ColRoomCapacity]),
		DurationMinutes: cellText(row[ColDurationMinutes]),
	}

	for _, req := range []struct{ col, val string }{
		{ColStudentID, n.StudentID},
		{ColSubjectCode, n.SubjectCode},
		{ColRoomNumber, n.RoomNumber},
	} {
		if req.val == "" {
			return NormalizedRow{}, &SkippedRow{Line: line, Reason: "required field " + req.col + " is empty"}
		}
	}

	date, err := ParseExamDate(row[ColExamDate])
	if err != nil {
		return NormalizedRow{}, &SkippedRow{Line: line, Reason: err.Error(), Value: cellText(row[ColExamDate])}
	}
	n.ExamDate = date
	n.StartTime = ParseStartTime(row[ColStartTime])
	return n, nil
}

// NormalizeRows normalizes a batch. Entirely blank rows are ignored
// without being counted; rows[0] is spreadsheet line 2.
func NormalizeRows(rows []RawRow) ([]NormalizedRow, []SkippedRow) {
	var (
		out     = make([]NormalizedRow, 0, len(rows))
		skipped []SkippedRow
	)
	for i, raw := range rows {
		if isBlankRow(raw) {
			continue
		}
		n, skip := Normalize(raw, i+2)
		if skip != nil {
			skipped = append(skipped, *skip)
			continue
		}
		out = append(out, n)
	}
	return out, skipped
}

// ParseExamDate converts a date cell to YYYY-MM-DD. Accepted inputs, in
// order: a native date, a spreadsheet serial day, an unambiguous date
// string, then a separated date read as day-month-year (or
// year-month-day when the first part has four digits).
func ParseExamDate(v any) (string, error) {
	switch x := v.(type) {
	case time.Time:
		return x.Format(dateLayout), nil
	case float64:
		if s, ok := serialDate(x); ok {
			return s, nil
		}
	case int:
		if s, ok := serialDate(float64(x)); ok {
			return s, nil
		}
	case int64:
		if s, ok := serialDate(float64(x)); ok {
			return s, nil
		}
	}

	s := cellText(v)
	if s == "" {
		return "", fmt.Errorf("invalid date: exam_date is empty")
	}
	// Serial days, with an optional time-of-day fraction from datetime cells.
	if numericCell.MatchString(s) {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			if out, ok := serialDate(n); ok {
				return out, nil
			}
		}
	}
	for _, layout := range generalDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout), nil
		}
	}
	if out, ok := separatedDate(s); ok {
		return out, nil
	}
	return "", fmt.Errorf("invalid date %q", s)
}

// serialDate converts a spreadsheet serial day number.
func serialDate(n float64) (string, bool) {
	if n < 1 || n > maxSerialDay || math.IsNaN(n) {
		return "", false
	}
	ms := math.Round((n - serialEpochOffset) * 86400 * 1000)
	return time.UnixMilli(int64(ms)).UTC().Format(dateLayout), true
}

func separatedDate(s string) (string, bool) {
	parts := dateSep.Split(s, -1)
	if len(parts) != 3 {
		return "", false
	}
	for _, p := range parts {
		if !digitsOnly.MatchString(p) {
			return "", false
		}
	}
	y, m, d := parts[2], parts[1], parts[0]
	if len(parts[0]) == 4 {
		y, d = parts[0], parts[2]
	}
	if len(y) > 4 || len(m) > 2 || len(d) > 2 {
		return "", false
	}
	out := leftPad(y, 4) + "-" + leftPad(m, 2) + "-" + leftPad(d, 2)
	if _, err := time.Parse(dateLayout, out); err != nil {
		return "", false
	}
	return out, true
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// ParseStartTime converts a time cell to HH:MM. Fractions of a day, integer
// clock encodings (9, 14, 930, 1430) and H:MM strings are accepted; anything
// else, including blanks, yields DefaultStartTime.
func ParseStartTime(v any) string {
	switch x := v.(type) {
	case nil:
		return DefaultStartTime
	case time.Time:
		return x.Format("15:04")
	case float64:
		return timeFromNumber(x)
	case int:
		return timeFromNumber(float64(x))
	case int64:
		return timeFromNumber(float64(x))
	}

	s := cellText(v)
	if s == "" {
		return DefaultStartTime
	}
	if numericCell.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return DefaultStartTime
		}
		return timeFromNumber(f)
	}
	if m := clockTime.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h < 24 && min < 60 {
			return fmt.Sprintf("%02d:%02d", h, min)
		}
	}
	return DefaultStartTime
}

func timeFromNumber(f float64) string {
	if f > 0 && f < 1 {
		mins := int(math.Round(f*1440)) % 1440
		return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
	}
	if f < 0 || f != math.Trunc(f) || f > 2359 {
		return DefaultStartTime
	}
	s := strconv.Itoa(int(f))
	hh, mm := s, "00"
	if len(s) > 2 {
		hh, mm = s[:len(s)-2], s[len(s)-2:]
	}
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if h > 23 || m > 59 {
		return DefaultStartTime
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// ComputeEndTime adds minutes to an HH:MM start, wrapping past midnight.
// The result is formatted HH:MM:00.
func ComputeEndTime(start string, minutes int) string {
	h, m := 9, 0
	if parts := strings.SplitN(start, ":", 3); len(parts) >= 2 {
		if v, err := strconv.Atoi(parts[0]); err == nil {
			h = v
		}
		if v, err := strconv.Atoi(parts[1]); err == nil {
			m = v
		}
	}
	total := ((h*60+m+minutes)%1440 + 1440) % 1440
	return fmt.Sprintf("%02d:%02d:00", total/60, total%60)
}

// positiveInt parses a count cell, returning def for blanks, non-numbers,
// and values <= 0. Fractions are truncated.
func positiveInt(s string, def int) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 1 {
		return def
	}
	return int(f)
}

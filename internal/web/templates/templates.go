// Package templates renders the server's HTML pages as templ components.
package templates

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/ExamSeat/internal/core"
)

const styles = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}
table{border-collapse:collapse}td,th{border:1px solid #d1d5db;padding:.4rem .6rem;vertical-align:top}
.grid td{width:9rem;height:4rem}.seat{font-weight:600}.muted{color:#6b7280;font-size:.85em}
.alert{border:1px solid #fca5a5;background:#fef2f2;padding:1rem;border-radius:.4rem}`

// page wraps body in the shared document shell.
func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head><body>",
			templ.EscapeString(title), styles); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert" role="alert"><strong>%s</strong>`, templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, `<p>%s</p>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, `<p class="muted">Code: %s</p></div>`, templ.EscapeString(code))
		return err
	})
}

// ErrorPage is ErrorAlert as a full document.
func ErrorPage(msg core.UserMessage) templ.Component {
	return page("Error", ErrorAlert(msg.Message, msg.Action, msg.Code))
}

// ExamIndex lists exam sessions with links to their seating pages.
func ExamIndex(exams []core.ExamListing) templ.Component {
	return page("Exams", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<h1>Exams</h1>")
		if len(exams) == 0 {
			b.WriteString(`<p class="muted">No exams scheduled. Import a spreadsheet to create sessions.</p>`)
		} else {
			b.WriteString("<table><thead><tr><th>Date</th><th>Time</th><th>Subject</th><th>Room</th><th>Seats</th></tr></thead><tbody>")
			for _, e := range exams {
				fmt.Fprintf(&b, `<tr><td>%s</td><td>%s&ndash;%s</td><td><a href="/exams/%s/seating">%s</a></td><td>%s</td><td>%d</td></tr>`,
					esc(e.ExamDate), esc(hhmm(e.StartTime)), esc(hhmm(e.EndTime)),
					esc(e.ID), esc(e.Subject.Label()), esc(e.Room.RoomNumber), e.SeatCount)
			}
			b.WriteString("</tbody></table>")
		}
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

// SeatingPage renders the room grid of one exam session.
func SeatingPage(view *core.SeatingView) templ.Component {
	title := view.Subject.Label() + " seating"
	return page(title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, "<h1>%s</h1>", esc(view.Subject.Label()))
		fmt.Fprintf(&b, `<p>Room %s &middot; %s %s&ndash;%s &middot; %d seated</p>`,
			esc(view.Room.RoomNumber), esc(view.Exam.ExamDate),
			esc(hhmm(view.Exam.StartTime)), esc(hhmm(view.Exam.EndTime)), len(view.Seats))

		if len(view.Seats) == 0 {
			b.WriteString(`<p class="muted">No seats generated yet.</p>`)
		} else {
			writeGrid(&b, view.Seats)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

// writeGrid lays seats out by row and column. Seats without a position are
// listed after the grid.
func writeGrid(b *strings.Builder, seats []core.SeatingViewRow) {
	cells := make(map[[2]int]core.SeatingViewRow)
	var rows, cols int
	var loose []core.SeatingViewRow
	for _, s := range seats {
		if s.RowNumber <= 0 || s.ColumnNumber <= 0 {
			loose = append(loose, s)
			continue
		}
		cells[[2]int{s.RowNumber, s.ColumnNumber}] = s
		rows = max(rows, s.RowNumber)
		cols = max(cols, s.ColumnNumber)
	}

	if len(cells) > 0 {
		b.WriteString(`<table class="grid"><tbody>`)
		for r := 1; r <= rows; r++ {
			b.WriteString("<tr>")
			for c := 1; c <= cols; c++ {
				s, ok := cells[[2]int{r, c}]
				if !ok {
					b.WriteString("<td></td>")
					continue
				}
				writeSeat(b, s)
			}
			b.WriteString("</tr>")
		}
		b.WriteString("</tbody></table>")
	}

	if len(loose) > 0 {
		sort.Slice(loose, func(i, j int) bool { return loose[i].SeatNumber < loose[j].SeatNumber })
		b.WriteString("<h2>Unplaced seats</h2><table><tbody><tr>")
		for _, s := range loose {
			writeSeat(b, s)
		}
		b.WriteString("</tr></tbody></table>")
	}
}

func writeSeat(b *strings.Builder, s core.SeatingViewRow) {
	fmt.Fprintf(b, `<td><div class="seat">%s</div><div>%s</div><div class="muted">%s &middot; %s</div></td>`,
		esc(s.SeatNumber), esc(s.StudentName), esc(s.StudentID), esc(s.Subject))
}

func esc(s string) string { return templ.EscapeString(s) }

// hhmm trims seconds from a "HH:MM:SS" time.
func hhmm(t string) string {
	if len(t) == len("15:04:05") {
		return t[:5]
	}
	return t
}

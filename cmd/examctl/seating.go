package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ExamSeat/internal/core"
)

func newExamsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "exams",
		Short: "List exam sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service, _ *backend) error {
				exams, err := svc.ListExams(cmd.Context())
				if err != nil {
					return withCode(exitDB, err)
				}
				if asJSON {
					return writeJSON(a, exams)
				}
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tTIME\tSUBJECT\tROOM\tSEATS")
				for _, e := range exams {
					fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\t%d\n",
						e.ID, e.ExamDate, hhmm(e.StartTime), hhmm(e.EndTime),
						e.Subject.Label(), e.Room.RoomNumber, e.SeatCount)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newSeatingCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "seating <exam-id>",
		Short: "Print the seat map of an exam session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service, _ *backend) error {
				view, err := svc.GetSeatingView(cmd.Context(), args[0])
				if err != nil {
					return lookupErr(err)
				}
				if asJSON {
					return writeJSON(a, view)
				}
				return printSeating(a, view)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printSeating(a *app, v *core.SeatingView) error {
	fmt.Fprintf(a.out, "%s  room %s  %s %s-%s\n",
		v.Subject.Label(), v.Room.RoomNumber, v.Exam.ExamDate, hhmm(v.Exam.StartTime), hhmm(v.Exam.EndTime))
	if len(v.Seats) == 0 {
		fmt.Fprintln(a.out, "No seats generated yet.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEAT\tROW\tCOL\tSTUDENT\tNAME\tSUBJECT")
	for _, s := range v.Seats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\n",
			s.SeatNumber, s.RowNumber, s.ColumnNumber, s.StudentID, s.StudentName, s.Subject)
	}
	return tw.Flush()
}

func newGenerateCmd(a *app) *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "generate <exam-id>",
		Short: "Ask the seat generator to seat an exam session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), a, args[0], level)
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Anti-cheat level: basic, strict or max")
	return cmd
}

func runGenerate(ctx context.Context, a *app, examID, level string) error {
	lvl := core.Strictness(strings.ToLower(level))
	switch lvl {
	case "", core.StrictnessBasic, core.StrictnessStrict, core.StrictnessMax:
	default:
		return withCode(exitUsage, fmt.Errorf("invalid --level %q: use basic, strict or max", level))
	}
	return a.withService(ctx, func(svc *core.Service, _ *backend) error {
		res, err := svc.GenerateSeating(ctx, examID, lvl)
		if err != nil {
			return lookupErr(err)
		}
		return writeJSON(a, res)
	})
}

func lookupErr(err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return withCode(exitValidation, err)
	}
	return err
}

func hhmm(t string) string {
	if len(t) >= 5 {
		return t[:5]
	}
	return t
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ExamSeat/internal/core"
	"github.com/JonMunkholm/ExamSeat/internal/store"
)

func newRemindCmd(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Email students sitting an exam on a given day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now().AddDate(0, 0, 1)
			if date != "" {
				d, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return withCode(exitUsage, fmt.Errorf("invalid --date %q: use YYYY-MM-DD", date))
				}
				day = d
			}
			return a.withService(cmd.Context(), func(svc *core.Service, _ *backend) error {
				res, err := svc.SendReminders(cmd.Context(), day)
				if err != nil {
					return err
				}
				if err := writeJSON(a, res); err != nil {
					return err
				}
				if res.Failed > 0 {
					return fmt.Errorf("%d reminder(s) failed", res.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Exam day as YYYY-MM-DD (default tomorrow)")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			b, err := a.open(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer b.close()
			if b.db == nil {
				return withCode(exitDB, errors.New("migrate needs a SQL database"))
			}
			if err := store.Migrate(cmd.Context(), b.db); err != nil {
				return withCode(exitDB, err)
			}
			fmt.Fprintln(a.out, "schema applied")
			return nil
		},
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ExamSeat/internal/core"
	"github.com/JonMunkholm/ExamSeat/internal/sheet"
	"github.com/JonMunkholm/ExamSeat/internal/store"
)

type importOptions struct {
	file         string
	autoGenerate bool
	level        string
	dryRun       bool
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import an exam schedule spreadsheet (.csv or .xlsx)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.file = args[0]
			return runImport(cmd.Context(), a, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.autoGenerate, "auto-generate", false, "Generate seating for every imported session")
	cmd.Flags().StringVar(&opts.level, "level", "", "Anti-cheat level: basic, strict or max (default from IMPORT_DEFAULT_ANTI_CHEAT)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Reconcile against a snapshot of the database without writing")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if opts.dryRun && opts.autoGenerate {
			return withCode(exitUsage, errors.New("--auto-generate cannot be combined with --dry-run"))
		}
		return nil
	}
	return cmd
}

func runImport(ctx context.Context, a *app, opts importOptions) error {
	f, err := os.Open(opts.file)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer f.Close()

	rows, err := sheet.Decode(filepath.Base(opts.file), f)
	if err != nil {
		return withCode(exitValidation, fmt.Errorf("%s: %w", opts.file, err))
	}

	return a.withService(ctx, func(svc *core.Service, b *backend) error {
		if opts.dryRun {
			snap, err := snapshot(ctx, b.gw)
			if err != nil {
				return withCode(exitDB, err)
			}
			if svc, err = a.service(snap); err != nil {
				return err
			}
		}

		result, err := svc.ImportSpreadsheet(ctx, rows, core.ImportOptions{
			AutoGenerate:   opts.autoGenerate,
			AntiCheatLevel: core.Strictness(strings.ToLower(opts.level)),
		})
		if result != nil {
			if werr := writeJSON(a, result); werr != nil {
				return werr
			}
		}
		return classifyImportErr(err)
	})
}

// snapshot copies every table into a memory gateway so a dry run sees the
// same conflicts a real import would.
func snapshot(ctx context.Context, gw store.Gateway) (*store.Memory, error) {
	mem := store.NewMemory()
	for _, table := range store.Tables {
		rows, err := gw.Select(ctx, table, store.All())
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", table, err)
		}
		mem.Seed(table, rows...)
	}
	return mem, nil
}

func classifyImportErr(err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *core.ValidationError
		ue *core.UnresolvedIdentityError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ue):
		return withCode(exitValidation, err)
	case errors.Is(err, core.ErrImportBusy):
		return withCode(exitFailure, err)
	}
	var se *core.StepError
	if errors.As(err, &se) && se.Step != core.StepGenerate {
		return withCode(exitDB, err)
	}
	return err
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

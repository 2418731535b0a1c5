package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "examctl",
		Short:         "Import exam schedules and manage seating",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)

	root.AddCommand(
		newImportCmd(a),
		newTemplateCmd(a),
		newExamsCmd(a),
		newSeatingCmd(a),
		newGenerateCmd(a),
		newRemindCmd(a),
		newMigrateCmd(a),
	)
	return root
}

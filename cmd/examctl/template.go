package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ExamSeat/internal/sheet"
)

func newTemplateCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a blank import template",
		Long:  "Write a blank import template. The format follows the --output extension; without --output a CSV template is written to stdout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return sheet.WriteTemplate(a.out, sheet.FormatCSV)
			}
			format, err := sheet.FormatOf(output)
			if err != nil {
				return withCode(exitUsage, err)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := sheet.WriteTemplate(f, format); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (.csv or .xlsx)")
	return cmd
}

package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report what this host allows the monitor to do",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := a.preflight(cmd.Context(), a.prober())

			data := pterm.TableData{{"Check", "Result", "Detail"}}
			for _, f := range report.Findings {
				result := pterm.Green("ok")
				switch {
				case !f.OK && f.Required:
					result = pterm.Red("failed")
				case !f.OK:
					result = pterm.Yellow("unavailable")
				}
				data = append(data, []string{f.Name, result, f.Detail})
			}
			return pterm.DefaultTable.WithHasHeader(true).WithData(data).Render()
		},
	}
}

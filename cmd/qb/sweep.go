package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/mkernan/questboard/internal/sweep"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue quest runs",
		Long:  "Runs a single deadline sweep pass, expiring quest runs past their effective deadline.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "questboard.yaml", "path to Questboard config file")
	return cmd
}

func runSweep(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	expired, err := sweep.RunOnce(gormDB, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(expired) == 0 {
		fmt.Fprintln(out, "No overdue quest runs.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tMEMBER\tQUEST")
	for _, uq := range expired {
		fmt.Fprintf(w, "%s\t%s\t%s\n", uq.ID, uq.UserID, truncate(uq.Quest.Title, 40))
	}
	w.Flush()
	fmt.Fprintf(out, "\nExpired %d quest run(s).\n", len(expired))
	return nil
}

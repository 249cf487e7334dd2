package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alekspetrov/dobby/internal/adapters/feishu"
	"github.com/alekspetrov/dobby/internal/intent"
)

func newTasksCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the open tasks of an owner",
		Long: `Print the open tasks assigned to --owner, latest due date first.

Examples:
  dobby tasks --owner ou_123
  dobby --config ./dev.yaml tasks --owner ou_123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return errors.New("--owner is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			closeLog, err := initCLILogging(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			dates, err := dateParser(cfg)
			if err != nil {
				return err
			}

			records, closer, err := openRecordStore(cfg, feishu.NewClient(cfg.Feishu))
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			tasks, err := newAdapter(records, intent.NewLLMClient(cfg.LLM)).QueryOpen(cmd.Context(), owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No open tasks.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tQUADRANT\tDUE\tDESCRIPTION")
			for _, t := range tasks {
				due := "-"
				if t.Due != nil {
					due = dates.FormatDue(*t.Due)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.RecordID, t.Status.Label(), t.Quadrant.Label(), due, t.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner user id")
	return cmd
}

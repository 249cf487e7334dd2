package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alekspetrov/dobby/internal/intent"
)

func newClassifyCmd() *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "classify TEXT",
		Short: "Classify a message and print the command as JSON",
		Long: `Run the two-tier classifier on TEXT without touching any chat or store.

The LLM is used when llm.api_key is configured; otherwise, or when it
fails, the rule-based classifier answers.

Examples:
  dobby classify "修复登录 紧急 2025-06-01"
  dobby classify --sender 张三 "我的任务"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			classifier := intent.NewClassifier(intent.NewLLMClient(cfg.LLM))
			result, source := classifier.Classify(cmd.Context(), intent.Input{
				Text:       strings.Join(args, " "),
				SenderName: sender,
				Now:        time.Now().In(dates.Location()),
			})

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "source: %s\n", source)
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "display name of the sender")
	return cmd
}

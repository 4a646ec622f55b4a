package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"flash-quiz/internal/parser"
)

var segmentCmd = &cobra.Command{
	Use:   "segment <notes-file>",
	Short: "Split a notes file into flashcards by headings and bullets, without a model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read notes: %w", err)
		}
		cards := parser.Segment(string(data))

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cards)
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cards); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	segmentCmd.Flags().Bool("json", false, "output JSON instead of YAML")
	rootCmd.AddCommand(segmentCmd)
}

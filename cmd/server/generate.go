package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"flash-quiz/internal/llm"
	"flash-quiz/internal/services"
)

var generateCmd = &cobra.Command{
	Use:   "generate <notes-file>",
	Short: "Generate flashcards and a quiz from a notes file and print them as YAML",
	Long: `Generate runs the same pipeline as the upload page against a local .txt,
.md or .pdf file and writes the flashcards and quiz to stdout as YAML.
Nothing is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().Bool("strict", false, "reject replies whose label counts differ")
	generateCmd.Flags().Bool("flashcards-only", false, "skip the quiz call")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		cfg.StrictParse = true
	}
	logger := cfg.Logger()

	notes, err := services.NewNotesService("", cfg.MaxNoteChars).ReadFile(args[0])
	if err != nil {
		return err
	}

	gen, err := llm.New(cfg)
	if err != nil {
		return err
	}
	pipeline := services.NewGenerationService(gen, logger, cfg.StrictParse)

	var out *services.Generated
	if only, _ := cmd.Flags().GetBool("flashcards-only"); only {
		cards, err := pipeline.Flashcards(cmd.Context(), notes.Text)
		if err != nil {
			return err
		}
		out = &services.Generated{Flashcards: cards, Model: gen.Model()}
	} else {
		out, err = pipeline.Generate(cmd.Context(), notes.Text, nil)
		if err != nil {
			return err
		}
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

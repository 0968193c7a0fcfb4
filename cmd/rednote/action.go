package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rednote/pkg/models"
	"rednote/pkg/ui"
)

// actionCmd represents the action command
var actionCmd = &cobra.Command{
	Use:   "action <file>",
	Short: "Replay likes and comments from a list",
	Long: `Replay a list of interactions, one note at a time, on a single session.

The file is YAML or JSON holding a list of requests:

  - url: https://www.xiaohongshu.com/explore/67da6467000000000602ae8a
    action: like
  - url: https://www.xiaohongshu.com/explore/67da6467000000000602ae8b
    action: comment
    comment: 好喝!

Liking an already liked note is a no-op. Each request reports its own
result; a failed request does not stop the rest.`,
	Example: `  rednote action actions.yaml
  cat actions.json | rednote action -`,
	Args: cobra.ExactArgs(1),
	RunE: runAction,
}

func init() {
	actionCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "result format: json, yaml")
	rootCmd.AddCommand(actionCmd)
}

// actionResult is the per-request outcome printed by the action command.
type actionResult struct {
	URL    string            `json:"url" yaml:"url"`
	Action models.ActionKind `json:"action" yaml:"action"`
	OK     bool              `json:"ok" yaml:"ok"`
}

// parseActions decodes a YAML or JSON request list.
func parseActions(data []byte) ([]models.ActionRequest, error) {
	var reqs []models.ActionRequest
	if err := yaml.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("failed to parse actions: %w", err)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no actions found")
	}
	return reqs, nil
}

func runAction(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return fmt.Errorf("failed to read actions: %w", err)
	}
	reqs, err := parseActions(data)
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ok, err := a.engine.PostActions(cmd.Context(), reqs)
	if err != nil {
		return err
	}

	results := make([]actionResult, len(reqs))
	failed := 0
	for i, req := range reqs {
		results[i] = actionResult{URL: req.URL, Action: req.Action, OK: i < len(ok) && ok[i]}
		if !results[i].OK {
			failed++
		}
	}

	if failed > 0 {
		ui.PrintWarning(fmt.Sprintf("%d of %d actions failed", failed, len(reqs)))
	} else {
		ui.PrintSuccess(fmt.Sprintf("All %d actions succeeded", len(reqs)))
	}
	return writeResult(cmd.OutOrStdout(), outputFormat, results)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rednote/pkg/config"
	"rednote/pkg/logger"
	"rednote/pkg/models"
	"rednote/pkg/storage"
	"rednote/pkg/ui"
)

var (
	// Extraction flags
	limit        int
	withImages   bool
	sortOrder    string
	period       string
	outputFormat string
	saveNotes    bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Extract notes from keyword search results",
	Long: `Search for a keyword and extract up to --limit notes from the results.

Each note holds the title, content, tags, image and video URLs, engagement
counts and the author's follow/fan/like totals. With --images the images are
downloaded and embedded as base64. With --save every note is also written
to output.base_directory.`,
	Example: `  # Five most liked notes of the last week
  rednote search 咖啡 --limit 5 --sort most_liked --period week

  # Save notes and images to ./notes
  rednote search 手冲 --images --save`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

// userCmd represents the user command
var userCmd = &cobra.Command{
	Use:   "user <profile-url>",
	Short: "Extract notes from a user's profile",
	Example: `  rednote user https://www.xiaohongshu.com/user/profile/5f1a2b3c000000000101abcd --limit 20`,
	Args:    cobra.ExactArgs(1),
	RunE:    runUser,
}

// noteCmd represents the note command
var noteCmd = &cobra.Command{
	Use:   "note <url-or-share-text>",
	Short: "Extract a single note",
	Long: `Extract a single note from its URL or from share text copied from the
app, which contains the URL somewhere inside it.`,
	Example: `  rednote note "https://www.xiaohongshu.com/explore/67da6467000000000602ae8a"
  rednote note "看看这篇笔记 http://xhslink.com/a/AbCd 复制本条信息"`,
	Args: cobra.ExactArgs(1),
	RunE: runNote,
}

// commentsCmd represents the comments command
var commentsCmd = &cobra.Command{
	Use:   "comments <url-or-share-text>",
	Short: "Extract the comments shown on a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runComments,
}

func init() {
	for _, cmd := range []*cobra.Command{searchCmd, userCmd} {
		cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum notes to extract (default crawl.default_limit)")
		cmd.Flags().BoolVar(&withImages, "images", false, "download images and embed them as base64")
		cmd.Flags().BoolVar(&saveNotes, "save", false, "write notes and images to the output directory")
		cmd.Flags().StringP("output", "o", "", "output directory for --save")
	}
	searchCmd.Flags().StringVar(&sortOrder, "sort", string(models.SortGeneral), "general, latest, most_liked, most_commented, most_collected")
	searchCmd.Flags().StringVar(&period, "period", string(models.PeriodAll), "all, day, week, half_year")

	for _, cmd := range []*cobra.Command{searchCmd, userCmd, noteCmd, commentsCmd} {
		cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "result format: json, yaml")
		rootCmd.AddCommand(cmd)
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	keyword := strings.TrimSpace(args[0])
	if err := validateSearchFlags(); err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ui.PrintInfo("Keyword", keyword)
	notes, err := a.engine.SearchAndExtract(cmd.Context(), keyword,
		models.SortOrder(sortOrder), models.Period(period), limitOr(a.cfg), withImages)
	if err != nil {
		return err
	}
	return finishNotes(cmd, a.cfg, notes)
}

func runUser(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ui.PrintInfo("Profile", args[0])
	notes, err := a.engine.ListUserItemsAndExtract(cmd.Context(), strings.TrimSpace(args[0]), limitOr(a.cfg), withImages)
	if err != nil {
		return err
	}
	return finishNotes(cmd, a.cfg, notes)
}

func runNote(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	detail, err := a.engine.GetItem(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), outputFormat, detail)
}

func runComments(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	comments, err := a.engine.GetComments(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), outputFormat, comments)
}

func validateSearchFlags() error {
	switch models.SortOrder(sortOrder) {
	case models.SortGeneral, models.SortLatest, models.SortMostLiked, models.SortMostCommented, models.SortMostCollected:
	default:
		return fmt.Errorf("unknown sort order %q", sortOrder)
	}
	switch models.Period(period) {
	case models.PeriodAll, models.PeriodDay, models.PeriodWeek, models.PeriodHalfYear:
	default:
		return fmt.Errorf("unknown period %q", period)
	}
	return nil
}

func limitOr(cfg *config.Config) int {
	if limit > 0 {
		return limit
	}
	return cfg.Crawl.DefaultLimit
}

// finishNotes saves notes when requested and prints them.
func finishNotes(cmd *cobra.Command, cfg *config.Config, notes []models.Note) error {
	if saveNotes {
		store, err := storage.NewManager(cfg.Output.BaseDirectory)
		if err != nil {
			return err
		}
		fresh := saveAll(store, notes)
		ui.PrintSuccess(fmt.Sprintf("Saved %d notes to %s (%d new, %d on disk in total)",
			len(notes), store.GetOutputDir(), fresh, store.GetSavedCount()))
	}

	ui.PrintInfo("Extracted", fmt.Sprintf("%d notes", len(notes)))
	return writeResult(cmd.OutOrStdout(), outputFormat, notes)
}

// saveAll writes every note, overwriting earlier exports, and returns how
// many were not on disk before.
func saveAll(store *storage.Manager, notes []models.Note) int {
	fresh := 0
	for _, note := range notes {
		existed := store.IsSaved(note.Detail.URL)
		dir, err := store.SaveNote(note, withImages)
		if err != nil {
			logger.WithError(err).WithField("url", note.Detail.URL).Error("failed to save note")
			continue
		}
		if !existed {
			fresh++
		}
		logger.WithField("dir", dir).Debug("note saved")
	}
	return fresh
}

// writeResult prints v as indented JSON or YAML.
func writeResult(w io.Writer, format string, v interface{}) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// readInput reads a file, or standard input for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

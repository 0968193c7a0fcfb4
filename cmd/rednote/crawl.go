package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rednote/pkg/checkpoint"
	"rednote/pkg/crawler"
	"rednote/pkg/logger"
	"rednote/pkg/metrics"
	"rednote/pkg/models"
	"rednote/pkg/platform"
	"rednote/pkg/storage"
	"rednote/pkg/ui"
)

var (
	// Crawl flags
	crawlKeyword string
	crawlProfile string
	crawlLimit   int
	resumeCrawl  bool
	forceRestart bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl a search feed or profile and export every note",
	Long: `Walk a keyword search feed or a user's profile, scrolling for more items
until the feed stops growing or --limit notes have been exported.

Every note is written to output.base_directory as <note-id>/note.json,
with its images next to it when --images is set. Notes already in the
output directory are skipped. With --resume the crawl also records each
exported note in a checkpoint and a later run for the same source skips
notes it already has. --force-restart discards the checkpoint and
re-extracts notes already on disk.

With --metrics-addr a Prometheus endpoint is served at /metrics for the
duration of the crawl.`,
	Example: `  # Export up to 200 notes about coffee, resumable
  rednote crawl --keyword 咖啡 --limit 200 --resume

  # Export a whole profile with images and metrics
  rednote crawl --user https://www.xiaohongshu.com/user/profile/5f1a2b3c000000000101abcd --images --metrics-addr :9090

  # Start over, ignoring the existing checkpoint
  rednote crawl --keyword 咖啡 --resume --force-restart`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().StringVarP(&crawlKeyword, "keyword", "k", "", "search keyword")
	crawlCmd.Flags().StringVarP(&crawlProfile, "user", "u", "", "profile URL")
	crawlCmd.Flags().IntVarP(&crawlLimit, "limit", "n", 0, "stop after this many notes (0 crawls until the feed ends)")
	crawlCmd.Flags().BoolVar(&withImages, "images", false, "download images next to each note")
	crawlCmd.Flags().StringVar(&sortOrder, "sort", string(models.SortGeneral), "search sort order")
	crawlCmd.Flags().StringVar(&period, "period", string(models.PeriodAll), "search period")
	crawlCmd.Flags().BoolVar(&resumeCrawl, "resume", false, "checkpoint progress and skip notes exported by earlier runs")
	crawlCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard the checkpoint and re-extract notes already on disk")
	crawlCmd.Flags().StringP("output", "o", "", "output directory")
	crawlCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(crawlCmd)
}

// skipURLs lists the notes a crawl must not open again: those already in
// the output directory and those recorded in cp. force only keeps cp.
func skipURLs(store *storage.Manager, cp *checkpoint.Checkpoint, force bool) []string {
	var urls []string
	if !force {
		urls = append(urls, store.SavedURLs()...)
	}
	if cp != nil {
		urls = append(urls, cp.SeenURLs()...)
	}
	return urls
}

// checkpointName names the checkpoint of a crawl source.
func checkpointName(src crawler.Source) string {
	if src.Keyword != "" {
		return "search-" + src.Keyword
	}
	return "profile-" + path.Base(strings.TrimRight(src.ProfileURL, "/"))
}

func runCrawl(cmd *cobra.Command, args []string) error {
	src := crawler.Source{
		Keyword:    strings.TrimSpace(crawlKeyword),
		ProfileURL: strings.TrimSpace(crawlProfile),
		Sort:       models.SortOrder(sortOrder),
		Period:     models.Period(period),
	}
	if _, err := src.URL(); err != nil {
		return err
	}
	if err := validateSearchFlags(); err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	log := logger.GetLogger()

	if a.cfg.Metrics.Addr != "" {
		stop := serveMetrics(a.cfg.Metrics.Addr, a.metrics, log)
		defer stop()
	}

	store, err := storage.NewManager(a.cfg.Output.BaseDirectory)
	if err != nil {
		return err
	}

	name := checkpointName(src)
	var (
		cpm *checkpoint.Manager
		cp  *checkpoint.Checkpoint
	)
	if resumeCrawl {
		cpm, err = checkpoint.NewManager(name)
		if err != nil {
			return err
		}
		if forceRestart {
			if err := cpm.Delete(); err != nil {
				return err
			}
		}
		var resumed bool
		cp, resumed, err = cpm.LoadOrCreate(name, src.Keyword+src.ProfileURL)
		if err != nil {
			return err
		}
		if resumed {
			if err := cpm.BackupCheckpoint(); err != nil {
				log.WithError(err).Warn("failed to back up checkpoint")
			}
			ui.PrintInfo("Resuming", fmt.Sprintf("%d notes already exported", cp.TotalYielded))
		}
	}

	display := ui.NewProgressDisplay(cmd.ErrOrStderr(), name, crawlLimit, verbose)
	notifier := ui.NewNotifier(notifications)

	it := a.engine.Iterate()
	defer it.Teardown()

	if err := it.Init(ctx, src); err != nil {
		notifier.SendError("Crawl failed", err.Error())
		return err
	}
	skip := skipURLs(store, cp, forceRestart)
	if len(skip) > 0 {
		ui.PrintInfo("Skipping", fmt.Sprintf("%d notes already exported", len(skip)))
	}
	it.Seed(skip)

	for crawlLimit <= 0 || it.Yielded() < crawlLimit {
		note, err := it.Next(ctx, withImages)
		if errors.Is(err, crawler.ErrEndOfFeed) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				ui.PrintWarning("Interrupted")
				break
			}
			display.Complete()
			notifier.SendError("Crawl failed", err.Error())
			return err
		}

		dir, err := store.SaveNote(*note, withImages)
		if err != nil {
			display.FailNote(note.Detail.URL, err)
			continue
		}
		display.CompleteNote(*note, dir)

		if cp != nil {
			if err := cpm.RecordNote(cp, platform.NormalizeURL(note.Detail.URL), note.Detail.Title); err != nil {
				log.WithError(err).Warn("failed to update checkpoint")
			}
		}
	}

	display.Complete()
	saved, _, _ := display.Tracker().Counts()
	notifier.SendSuccess("Crawl complete", fmt.Sprintf("%d notes from %s saved to %s", saved, name, store.GetOutputDir()))
	return nil
}

// serveMetrics exposes m on addr until the returned stop function runs.
func serveMetrics(addr string, m *metrics.Metrics, log logger.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("metrics server forced to shut down")
		}
	}
}

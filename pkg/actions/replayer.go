// Package actions replays likes and comments on an open note with
// human-looking pacing.
package actions

import (
	"context"
	"time"

	"rednote/pkg/browser"
	errs "rednote/pkg/errors"
	"rednote/pkg/humanize"
	"rednote/pkg/logger"
	"rednote/pkg/metrics"
	"rednote/pkg/models"
	"rednote/pkg/selectors"
)

// Pacing ranges. These are part of the behaviour, not tuning knobs.
const (
	preActionMin = time.Second
	preActionMax = 6 * time.Second
	submitMin    = 500 * time.Millisecond
	submitMax    = 1500 * time.Millisecond
	focusDelay   = 500 * time.Millisecond
	settleDelay  = 2 * time.Second
)

// Navigator opens a URL in the page the replayer acts on.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Replayer performs interactions on the note currently shown in a page.
type Replayer struct {
	sel     *selectors.Set
	pacer   *humanize.Pacer
	timeout time.Duration
	metrics *metrics.Metrics
	log     logger.Logger
}

// NewReplayer creates a replayer; timeout bounds each wait for an element.
func NewReplayer(sel *selectors.Set, pacer *humanize.Pacer, timeout time.Duration, m *metrics.Metrics, log logger.Logger) *Replayer {
	if sel == nil {
		sel = selectors.Default()
	}
	if pacer == nil {
		pacer = humanize.NewPacer(nil)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Replayer{sel: sel, pacer: pacer, timeout: timeout, metrics: m, log: log}
}

func (r *Replayer) wait(ctx context.Context, page browser.Page, selector string) error {
	return browser.WaitFor(ctx, r.timeout, selector, page.WaitVisible)
}

// PerformAction replays req on the note open in page. The caller navigates
// first. Liking an already liked note succeeds without clicking.
func (r *Replayer) PerformAction(ctx context.Context, page browser.Page, req models.ActionRequest) (err error) {
	if err := req.Validate(); err != nil {
		return err
	}
	defer func() { r.metrics.ObserveAction(string(req.Action), err == nil) }()

	if err := r.wait(ctx, page, r.sel.InputBox); err != nil {
		return err
	}
	if err := r.wait(ctx, page, r.sel.InputContent); err != nil {
		return err
	}
	if err := r.pacer.Pause(ctx, preActionMin, preActionMax); err != nil {
		return err
	}

	switch req.Action {
	case models.ActionLike:
		return r.like(ctx, page)
	case models.ActionComment:
		return r.comment(ctx, page, req.Comment)
	default:
		return errs.New(errs.ErrorTypeInvalidAction, "unknown action %q", req.Action)
	}
}

func (r *Replayer) like(ctx context.Context, page browser.Page) error {
	href, ok, err := page.Attribute(ctx, r.sel.LikeState, "xlink:href")
	if err != nil {
		return err
	}
	if ok && href == r.sel.LikedHref {
		r.log.Debug("note already liked")
		return nil
	}

	if err := r.wait(ctx, page, r.sel.LikeButton); err != nil {
		return err
	}
	if err := page.Click(ctx, r.sel.LikeButton); err != nil {
		return err
	}
	return r.pacer.Sleep(ctx, settleDelay)
}

// comment types text one character at a time by rewriting the growing
// prefix into the editor.
func (r *Replayer) comment(ctx context.Context, page browser.Page, text string) error {
	if err := r.wait(ctx, page, r.sel.CommentOpen); err != nil {
		return err
	}
	if err := page.Click(ctx, r.sel.CommentOpen); err != nil {
		return err
	}
	if err := r.pacer.Sleep(ctx, focusDelay); err != nil {
		return err
	}
	if err := r.wait(ctx, page, r.sel.CommentEditor); err != nil {
		return err
	}

	runes := []rune(text)
	for i := range runes {
		if err := r.pacer.Sleep(ctx, r.pacer.TypingInterval()); err != nil {
			return err
		}
		if err := page.Fill(ctx, r.sel.CommentInput, string(runes[:i+1])); err != nil {
			return err
		}
	}

	if err := r.wait(ctx, page, r.sel.CommentSubmit); err != nil {
		return err
	}
	if err := r.pacer.Pause(ctx, submitMin, submitMax); err != nil {
		return err
	}
	if err := page.Click(ctx, r.sel.CommentSubmit); err != nil {
		return err
	}
	return r.pacer.Sleep(ctx, settleDelay)
}

// PostActionList navigates to each request's note and replays it. The
// result has one entry per request in input order; a failed item is false
// and never stops the batch.
func (r *Replayer) PostActionList(ctx context.Context, nav Navigator, page browser.Page, reqs []models.ActionRequest) []bool {
	results := make([]bool, len(reqs))
	for i, req := range reqs {
		log := r.log.WithFields(map[string]interface{}{
			"index":  i,
			"url":    req.URL,
			"action": string(req.Action),
		})
		if ctx.Err() != nil {
			log.Warn("batch cancelled, skipping action")
			continue
		}
		if err := req.Validate(); err != nil {
			log.WithError(err).Warn("invalid action request")
			continue
		}
		if err := nav.Navigate(ctx, req.URL); err != nil {
			log.WithError(err).Warn("failed to open note for action")
			r.metrics.ObserveAction(string(req.Action), false)
			continue
		}
		if err := r.PerformAction(ctx, page, req); err != nil {
			log.WithError(err).Warn("action failed")
			continue
		}
		results[i] = true
		log.Info("action performed")
	}
	return results
}

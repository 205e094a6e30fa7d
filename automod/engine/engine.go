package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/socialdesk/moddesk/automod/audit"
	"github.com/socialdesk/moddesk/automod/cachestore"
	"github.com/socialdesk/moddesk/automod/countstore"
	"github.com/socialdesk/moddesk/automod/flagstore"
	"github.com/socialdesk/moddesk/automod/setstore"
)

// runtime for evaluating rules against content, executing their actions, and recording the outcomes.
//
// All interface fields are required, except Cache (role lookups are then uncached) and Clock.
type Engine struct {
	Logger   *slog.Logger
	Rules    RuleSource
	Content  ContentStore
	Users    UserStore
	Notifier Notifier
	Counters countstore.CountStore
	Sets     setstore.SetStore
	Cache    cachestore.RoleCache
	Flags    flagstore.FlagStore
	Recorder audit.Recorder
	Config   EngineConfig
	// defaults to time.Now
	Clock func() time.Time
}

type EngineConfig struct {
	// Maximum ban actions per UTC day. Zero disables the circuit breaker.
	QuotaBanDay int
	// Maximum remove actions per UTC day. Zero disables the circuit breaker.
	QuotaRemoveDay int
}

func (eng *Engine) now() time.Time {
	if eng.Clock != nil {
		return eng.Clock().UTC()
	}
	return time.Now().UTC()
}

// Fetches the content item and runs it through all active rules. See ProcessItem.
func (eng *Engine) ProcessContent(ctx context.Context, contentID string) ([]ActionOutcome, error) {
	item, err := eng.Content.GetContentItem(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("fetching content item: %w", err)
	}
	return eng.ProcessItem(ctx, item)
}

// Evaluates all active rules against the item, then executes each match in evaluation order.
//
// Action failures are reported in the outcomes, not as an error. An error is returned if rules could not be loaded or evaluated, or if any record could not be written; remaining matches are still executed in the latter case.
func (eng *Engine) ProcessItem(ctx context.Context, item *ContentItem) (outcomes []ActionOutcome, err error) {
	if item == nil {
		return nil, fmt.Errorf("%w: content item is required", ErrValidation)
	}

	start := time.Now()
	defer func() {
		duration := time.Since(start)
		itemProcessDuration.WithLabelValues(string(item.Type)).Observe(duration.Seconds())
		itemProcessCount.WithLabelValues(string(item.Type)).Inc()
		if err != nil {
			itemErrorCount.WithLabelValues(string(item.Type)).Inc()
		}
	}()
	// similar to an HTTP server, we want to recover any panics from rule execution. Registered last so it runs before the metrics above.
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("moderation processing exception", "err", r, "target", item.TargetRef())
			err = fmt.Errorf("rule processing panic: %v", r)
		}
	}()

	rules, err := eng.Rules.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active rules: %w", err)
	}
	matches, err := eng.Evaluate(ctx, item, rules)
	if err != nil {
		return nil, err
	}

	outcomes = make([]ActionOutcome, 0, len(matches))
	var recErrs []error
	for _, m := range matches {
		out, err := eng.Execute(ctx, m)
		if err != nil {
			eng.Logger.Error("failed to record moderation action", "rule", m.Rule.ID, "target", item.TargetRef(), "err", err)
			recErrs = append(recErrs, err)
		}
		outcomes = append(outcomes, *out)
	}

	// actions may already have been applied, so bookkeeping outlives the request deadline
	if err := eng.CountOwnerContent(context.WithoutCancel(ctx), item); err != nil {
		recErrs = append(recErrs, fmt.Errorf("counting owner content: %w", err))
	}

	eng.canonicalLogLine(item, outcomes)
	return outcomes, errors.Join(recErrs...)
}

// Adds the item to its owner's content count, once per item no matter how often it is processed.
func (eng *Engine) CountOwnerContent(ctx context.Context, item *ContentItem) error {
	seen, err := eng.ownerContentCounted(ctx, item)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	if err := eng.Counters.IncrementDistinct(ctx, OwnerContentCounter, item.OwnerID, item.ID); err != nil {
		return err
	}
	return eng.Counters.IncrementPeriod(ctx, ownerContentSeen, item.TargetRef(), countstore.PeriodTotal)
}

func (eng *Engine) ownerContentCounted(ctx context.Context, item *ContentItem) (bool, error) {
	n, err := eng.Counters.GetCount(ctx, ownerContentSeen, item.TargetRef(), countstore.PeriodTotal)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (eng *Engine) canonicalLogLine(item *ContentItem, outcomes []ActionOutcome) {
	rules := make([]string, len(outcomes))
	failed := 0
	for i, o := range outcomes {
		rules[i] = o.Match.Rule.ID
		if o.Status == audit.StatusFailed {
			failed++
		}
	}
	eng.Logger.Info("canonical-content-line",
		"target", item.TargetRef(),
		"owner", item.OwnerID,
		"matchedRules", rules,
		"failedRecords", failed,
	)
}

func (eng *Engine) GetCount(ctx context.Context, name, val, period string) (int, error) {
	return eng.Counters.GetCount(ctx, name, val, period)
}

func (eng *Engine) InSet(ctx context.Context, name, val string) (bool, error) {
	return eng.Sets.InSet(ctx, name, val)
}

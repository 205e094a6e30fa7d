package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/socialdesk/moddesk/automod/audit"
	"github.com/socialdesk/moddesk/automod/countstore"
)

// Counter namespace for daily action quotas. Values are action kinds.
const quotaCounter = "moddesk-quota"

// Upper bound on writing one record, independent of the caller's deadline.
const recordTimeout = 5 * time.Second

type ActionResult struct {
	Action ActionKind `json:"action"`
	// nil on success
	Err error `json:"-"`
}

func (r ActionResult) OK() bool {
	return r.Err == nil
}

type ActionOutcome struct {
	Match    MatchResult    `json:"match"`
	Results  []ActionResult `json:"results"`
	Status   audit.Status   `json:"status"`
	RecordID string         `json:"recordId"`
}

// Runs every action of a matched rule, in order, and appends exactly one record to the action log.
//
// Action failures never abort sibling actions; any failure marks the whole record FAILED. The record is written even if ctx has expired by then. The returned error is only non-nil if the record itself could not be written, in which case the outcome is still returned.
func (eng *Engine) Execute(ctx context.Context, match MatchResult) (*ActionOutcome, error) {
	rule := match.Rule
	item := match.Item
	logger := eng.Logger.With("rule", rule.ID, "target", item.TargetRef())

	out := &ActionOutcome{
		Match:   match,
		Results: make([]ActionResult, 0, len(rule.Actions)),
		Status:  audit.StatusCompleted,
	}
	for _, act := range rule.Actions {
		err := eng.runAction(ctx, match, act)
		if err != nil {
			logger.Warn("moderation action failed", "action", act.Kind(), "err", err)
			out.Status = audit.StatusFailed
			actionErrorCount.WithLabelValues(string(act.Kind())).Inc()
		} else {
			actionCount.WithLabelValues(string(act.Kind())).Inc()
		}
		out.Results = append(out.Results, ActionResult{Action: act.Kind(), Err: err})
	}

	entries := make([]audit.ActionEntry, len(out.Results))
	for i, res := range out.Results {
		entries[i] = audit.ActionEntry{Action: string(res.Action)}
		if res.Err != nil {
			entries[i].Error = res.Err.Error()
		}
	}
	rec := audit.Record{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		TargetRef: item.TargetRef(),
		OwnerID:   item.OwnerID,
		Actions:   rule.Actions.Kinds(),
		Status:    out.Status,
		Results:   entries,
		Metadata: map[string]string{
			"triggerType": string(rule.TriggerType),
		},
		CreatedAt: match.MatchedAt,
	}
	if match.Blacklisted {
		rec.Metadata["blacklisted"] = "true"
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := eng.Recorder.Record(rctx, &rec); err != nil {
		return out, fmt.Errorf("recording moderation action: %w", err)
	}
	out.RecordID = rec.ID
	return out, nil
}

func (eng *Engine) runAction(ctx context.Context, match MatchResult, act Action) error {
	item := match.Item
	if err := eng.circuitBreak(ctx, act.Kind()); err != nil {
		return err
	}

	var err error
	switch a := act.(type) {
	case BanAction:
		err = eng.Users.BanUser(ctx, item.OwnerID, a.Reason, a.Duration())
		if err == nil {
			if perr := eng.PurgeUserCaches(ctx, item.OwnerID); perr != nil {
				eng.Logger.Warn("failed to purge user cache", "user", item.OwnerID, "err", perr)
			}
		}
	case RemoveAction:
		err = eng.Content.RemoveContent(ctx, item.ID, a.Reason)
	case FlagAction:
		err = eng.Flags.Add(ctx, item.TargetRef(), []string{a.Flag})
	case NotifyAction:
		target := a.Target
		if target == NotifyOwner {
			target = item.OwnerID
		}
		err = eng.Notifier.Notify(ctx, target, renderMessage(a.Message, match))
	default:
		return fmt.Errorf("%w: unhandled action type %T", ErrActionExecution, act)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrActionExecution, act.Kind(), err)
	}

	if eng.quota(act.Kind()) > 0 {
		if err := eng.Counters.IncrementPeriod(context.WithoutCancel(ctx), quotaCounter, string(act.Kind()), countstore.PeriodDay); err != nil {
			eng.Logger.Error("failed to increment action quota", "action", act.Kind(), "err", err)
		}
	}
	return nil
}

func (eng *Engine) quota(kind ActionKind) int {
	switch kind {
	case ActionBan:
		return eng.Config.QuotaBanDay
	case ActionRemove:
		return eng.Config.QuotaRemoveDay
	}
	return 0
}

// Returns ErrCircuitBreaker (wrapped) if the daily quota for this kind of action is exhausted.
func (eng *Engine) circuitBreak(ctx context.Context, kind ActionKind) error {
	quota := eng.quota(kind)
	if quota <= 0 {
		return nil
	}
	c, err := eng.Counters.GetCount(ctx, quotaCounter, string(kind), countstore.PeriodDay)
	if err != nil {
		return fmt.Errorf("checking action quota: %w", err)
	}
	if c >= quota {
		eng.Logger.Warn("CIRCUIT BREAKER: automod action", "action", kind, "count", c, "quota", quota)
		circuitBreakCount.WithLabelValues(string(kind)).Inc()
		return fmt.Errorf("%w: %s daily quota (%d) reached", ErrCircuitBreaker, kind, quota)
	}
	return nil
}

func renderMessage(tmpl string, match MatchResult) string {
	r := strings.NewReplacer(
		"{rule}", match.Rule.Name,
		"{target}", match.Item.TargetRef(),
		"{owner}", match.Item.OwnerID,
	)
	return r.Replace(tmpl)
}

// Collects the errors of failed actions, or returns nil if all succeeded.
func (o *ActionOutcome) Err() error {
	var errs []error
	for _, r := range o.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

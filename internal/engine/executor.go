package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/altafino/imap-message-filter/internal/filter"
)

// Options control a single Apply call
type Options struct {
	DryRun bool
	// RuleName restricts execution to the rule with exactly this name
	RuleName string
	// Limit caps how many of the given ids are looked at, 0 means all
	Limit int
}

// Executor runs rule actions against a mail store
type Executor struct {
	store   MailStore
	matcher *filter.Matcher
	logger  *slog.Logger
	now     func() time.Time
}

// NewExecutor creates an executor for one run over rs
func NewExecutor(store MailStore, rs filter.RuleSet, logger *slog.Logger) *Executor {
	return &Executor{
		store:   store,
		matcher: filter.NewMatcher(rs),
		logger:  logger,
		now:     time.Now,
	}
}

// Apply processes ids one at a time in the given order. Failures of single
// actions are recorded in the summary and do not stop the run. A
// connection-level failure or a canceled context ends the run and is
// returned together with the summary so far.
func (e *Executor) Apply(ctx context.Context, ids []MessageID, opts Options) (*RunSummary, error) {
	summary := &RunSummary{DryRun: opts.DryRun}

	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}

	e.logger.Info("applying filters",
		"messages", len(ids),
		"dry_run", opts.DryRun,
		"rule", opts.RuleName,
	)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := e.processMessage(ctx, id, opts, summary); err != nil {
			e.logger.Error("aborting run", "uid", id, "error", err)
			return summary, err
		}
	}

	e.logger.Info("filter run complete",
		"examined", summary.Examined,
		"processed", summary.Processed,
		"moved", summary.Moved,
		"copied", summary.Copied,
		"deleted", summary.Deleted,
		"marked", summary.Marked,
		"errors", len(summary.Errors),
	)

	return summary, nil
}

// processMessage returns an error only when the run must stop
func (e *Executor) processMessage(ctx context.Context, id MessageID, opts Options, summary *RunSummary) error {
	envelopes, err := e.store.FetchEnvelopes(ctx, []MessageID{id})
	if err != nil {
		if IsFatal(err) {
			return err
		}
		e.logger.Debug("skipping message, metadata unavailable", "uid", id, "error", err)
		return nil
	}
	env, ok := envelopes[id]
	if !ok {
		e.logger.Debug("skipping message, not found", "uid", id)
		return nil
	}
	summary.Examined++

	msg := MessageFromEnvelope(env)
	rules := e.matcher.Match(msg)
	if opts.RuleName != "" {
		rules = restrictTo(rules, opts.RuleName)
	}
	if len(rules) == 0 {
		e.logger.Debug("no filters matched", "uid", id, "subject", env.Subject)
		return nil
	}

	summary.Processed++
	summary.Matched += len(rules)

	for _, rule := range rules {
		e.logger.Info("message matches filter",
			"uid", id,
			"rule", rule.Name,
			"subject", env.Subject,
		)
		for _, action := range rule.Actions {
			err := e.execute(ctx, id, action, opts.DryRun)
			if err == nil {
				count(summary, action)
				continue
			}
			if IsFatal(err) {
				return err
			}
			e.logger.Warn("action failed",
				"uid", id,
				"rule", rule.Name,
				"action", action.String(),
				"error", err,
			)
			summary.Errors = append(summary.Errors, ActionError{
				MessageID: id,
				Rule:      rule.Name,
				Action:    action.String(),
				Err:       err,
				Time:      e.now().UTC(),
			})
		}
	}

	return nil
}

func (e *Executor) execute(ctx context.Context, id MessageID, action filter.Action, dryRun bool) error {
	if dryRun {
		e.logger.Info("dry run, not executing action", "uid", id, "action", action.String())
		return nil
	}

	switch a := action.(type) {
	case filter.Move:
		if err := e.store.EnsureFolder(ctx, a.Folder); err != nil {
			return fmt.Errorf("failed to ensure folder %s: %w", a.Folder, err)
		}
		if err := e.store.Move(ctx, id, a.Folder); err != nil {
			return fmt.Errorf("failed to move message: %w", err)
		}
	case filter.Copy:
		if err := e.store.EnsureFolder(ctx, a.Folder); err != nil {
			return fmt.Errorf("failed to ensure folder %s: %w", a.Folder, err)
		}
		if err := e.store.Copy(ctx, id, a.Folder); err != nil {
			return fmt.Errorf("failed to copy message: %w", err)
		}
	case filter.Delete:
		if err := e.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete message: %w", err)
		}
	case filter.Mark:
		if err := e.store.Mark(ctx, id, a.Flag); err != nil {
			return fmt.Errorf("failed to mark message: %w", err)
		}
	default:
		return fmt.Errorf("unsupported action %T", action)
	}

	e.logger.Debug("action done", "uid", id, "action", action.String())
	return nil
}

func count(summary *RunSummary, action filter.Action) {
	switch action.Type() {
	case filter.ActionMove:
		summary.Moved++
	case filter.ActionCopy:
		summary.Copied++
	case filter.ActionDelete:
		summary.Deleted++
	case filter.ActionMark:
		summary.Marked++
	}
}

func restrictTo(rules []filter.Rule, name string) []filter.Rule {
	var out []filter.Rule
	for _, r := range rules {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// MessageFromEnvelope builds the evaluation snapshot for one message.
// Empty text values are treated as absent.
func MessageFromEnvelope(env Envelope) filter.Message {
	msg := filter.Message{
		filter.FieldSize: strconv.FormatInt(env.Size, 10),
	}

	text := map[filter.Field]string{
		filter.FieldFrom:    env.From,
		filter.FieldTo:      env.To,
		filter.FieldCc:      env.Cc,
		filter.FieldBcc:     env.Bcc,
		filter.FieldSubject: env.Subject,
	}
	for field, value := range text {
		if value != "" {
			msg[field] = value
		}
	}

	if !env.Date.IsZero() {
		msg[filter.FieldDate] = env.Date.Format(time.RFC3339)
	}
	if env.Body != nil {
		msg[filter.FieldBody] = *env.Body
	}
	if env.HasAttachment != nil {
		msg[filter.FieldHasAttachment] = strconv.FormatBool(*env.HasAttachment)
	}

	return msg
}

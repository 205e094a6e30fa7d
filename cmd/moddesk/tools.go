package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/socialdesk/moddesk/automod/audit"
	"github.com/socialdesk/moddesk/automod/cachestore"
	"github.com/socialdesk/moddesk/automod/countstore"
	"github.com/socialdesk/moddesk/automod/engine"
	"github.com/socialdesk/moddesk/automod/flagstore"
	"github.com/socialdesk/moddesk/automod/keyword"
	"github.com/socialdesk/moddesk/automod/notify"
	"github.com/socialdesk/moddesk/automod/setstore"

	cli "github.com/urfave/cli/v2"
)

var validateRulesCmd = &cli.Command{
	Name:      "validate-rules",
	Usage:     "checks a JSON file of rule definitions, without touching any database",
	ArgsUsage: "<rules.json>",
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expected a single rules file argument")
		}
		drafts, err := loadRuleDrafts(cctx.Args().First())
		if err != nil {
			return err
		}
		return validateDrafts(os.Stdout, drafts)
	},
}

func loadRuleDrafts(p string) ([]engine.RuleDraft, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var drafts []engine.RuleDraft
	if err := json.NewDecoder(f).Decode(&drafts); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", p, err)
	}
	return drafts, nil
}

// Prints one line per rule, and returns an error if any were invalid.
func validateDrafts(out io.Writer, drafts []engine.RuleDraft) error {
	invalid := 0
	for i, d := range drafts {
		res := engine.ValidateRule(&d)
		if res.IsValid {
			fmt.Fprintf(out, "OK\t%d\t%s\n", i, d.Name)
			continue
		}
		invalid++
		fmt.Fprintf(out, "INVALID\t%d\t%s\n", i, d.Name)
		for _, msg := range res.Errors {
			fmt.Fprintf(out, "\t- %s\n", msg)
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d rules invalid", invalid, len(drafts))
	}
	return nil
}

// Offline engine over in-process stores, with every draft treated as an active rule.
func offlineEngine(drafts []engine.RuleDraft, sets *setstore.MemSetStore, logger *slog.Logger) (*engine.Engine, error) {
	rules := engine.StaticRules{}
	for i, d := range drafts {
		if err := engine.ValidateRule(&d).Err(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, d.Name, err)
		}
		d.IsActive = true
		rules = append(rules, &engine.Rule{ID: fmt.Sprintf("rule-%d", i), RuleDraft: d})
	}
	return &engine.Engine{
		Logger:   logger,
		Rules:    rules,
		Content:  engine.NewMemContentStore(),
		Users:    engine.NewMemUserStore(),
		Notifier: &notify.LogNotifier{Logger: logger},
		Counters: countstore.NewMemCountStore(),
		Sets:     sets,
		Cache:    cachestore.NewMemRoleCache(1000, 0, 0),
		Flags:    flagstore.NewMemFlagStore(),
		Recorder: audit.NewMemRecorder(),
	}, nil
}

var matchCmd = &cli.Command{
	Name:  "match",
	Usage: "reads lines of text from stdin, evaluates each as a post against a rules file, outputs matches",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "rules-file",
			Usage:    "path to JSON file containing rule definitions",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "sets-json-path",
			Usage: "path to JSON file containing keyword and domain sets",
		},
		&cli.StringFlag{
			Name:  "owner",
			Usage: "owner ID to attribute the content to",
			Value: "cli-user",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger, err := configLogger(cctx, os.Stderr)
		if err != nil {
			return err
		}
		drafts, err := loadRuleDrafts(cctx.String("rules-file"))
		if err != nil {
			return err
		}
		sets := setstore.NewMemSetStore()
		if p := cctx.String("sets-json-path"); p != "" {
			if err := sets.LoadFromFileJSON(p); err != nil {
				return err
			}
		}
		eng, err := offlineEngine(drafts, sets, logger)
		if err != nil {
			return err
		}
		return matchLines(ctx, eng, cctx.String("owner"), os.Stdin, os.Stdout)
	},
}

func matchLines(ctx context.Context, eng *engine.Engine, owner string, in io.Reader, out io.Writer) error {
	rules, err := eng.Rules.ActiveRules(ctx)
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(in)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		item := &engine.ContentItem{
			ID:      fmt.Sprintf("line-%d", n),
			Type:    engine.ContentPost,
			OwnerID: owner,
			Body:    line,
		}
		matches, err := eng.Evaluate(ctx, item, rules)
		if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Fprintf(out, "MATCH\t%s\t%s\n", m.Rule.Name, line)
		}
		if err := eng.CountOwnerContent(ctx, item); err != nil {
			return err
		}
	}
	return scanner.Err()
}

var tokensCmd = &cli.Command{
	Name:  "tokens",
	Usage: "reads lines of text from stdin, tokenizes and matches against a keyword set",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "sets-json-path",
			Usage:    "path to JSON file containing keyword sets",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "set-name",
			Usage: "which set within the set file to use",
			Value: "bad-words",
		},
	},
	Action: func(cctx *cli.Context) error {
		sets := setstore.NewMemSetStore()
		if err := sets.LoadFromFileJSON(cctx.String("sets-json-path")); err != nil {
			return err
		}
		return tokenLines(cctx.Context, sets, cctx.String("set-name"), os.Stdin, os.Stdout)
	},
}

func tokenLines(ctx context.Context, sets setstore.SetStore, setName string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		tokens := keyword.TokenizeText(line)
		for _, tok := range tokens {
			ok, err := sets.InSet(ctx, setName, tok)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(out, "MATCH\t%s\t%s\n", tok, line)
			}
		}
		slog.Debug("tokenized", "line", line, "tokens", strings.Join(tokens, " "))
	}
	return scanner.Err()
}

package filter

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bakkerme/atomsplit/internal/atom"
	"github.com/bakkerme/atomsplit/internal/config"
	"github.com/bakkerme/atomsplit/internal/core"
)

const (
	ResultDrop = "drop"
	ResultKeep = "keep"
)

// Rule is a compiled filter expression evaluated once per entry.
type Rule struct {
	name    string
	result  string
	program *vm.Program
}

func NewRule(cfg *config.FilterRule) (*Rule, error) {
	if cfg == nil {
		return nil, fmt.Errorf("filter rule config is required")
	}
	if cfg.Name == "" || cfg.Rule == "" {
		return nil, fmt.Errorf("rule name and expression are required")
	}
	result := cfg.Result
	if result == "" {
		result = ResultDrop
	}
	if result != ResultDrop && result != ResultKeep {
		return nil, fmt.Errorf("filter rule %q: unknown result %q", cfg.Name, cfg.Result)
	}
	program, err := expr.Compile(cfg.Rule, expr.Env(compileEnv), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter rule %q: %w", cfg.Name, err)
	}
	return &Rule{
		name:    cfg.Name,
		result:  result,
		program: program,
	}, nil
}

// Compile builds every rule in order.
func Compile(cfgs []config.FilterRule) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(cfgs))
	for i := range cfgs {
		rule, err := NewRule(&cfgs[i])
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *Rule) Name() string {
	return r.name
}

// Evaluate returns the entries that survive the rule, in their original
// order. An entry whose evaluation fails is kept and logged.
func (r *Rule) Evaluate(ctx context.Context, entries []atom.Entry) []atom.Entry {
	logger := core.LoggerFromContext(ctx)
	filtered := make([]atom.Entry, 0, len(entries))

	for _, entry := range entries {
		result, err := expr.Run(r.program, entryEnv(entry))
		if err != nil {
			logger.Warn("filter rule failed", "rule", r.name, "entry_id", atom.Value(entry.ID), "error", err)
			filtered = append(filtered, entry)
			continue
		}
		matched, _ := result.(bool)
		if r.result == ResultDrop && matched {
			continue
		}
		if r.result == ResultKeep && !matched {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

// Apply runs rules in sequence.
func Apply(ctx context.Context, rules []*Rule, entries []atom.Entry) []atom.Entry {
	for _, rule := range rules {
		entries = rule.Evaluate(ctx, entries)
	}
	return entries
}

// compileEnv gives the checker the names and shapes a rule may reference.
var compileEnv = entryEnv(atom.Entry{Authors: []atom.Author{}})

func entryEnv(entry atom.Entry) map[string]interface{} {
	authors := make([]map[string]interface{}, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, map[string]interface{}{
			"name":  atom.Value(a.Name),
			"uri":   atom.Value(a.URI),
			"email": atom.Value(a.Email),
		})
	}
	title := atom.Value(entry.Title)
	content := atom.Value(entry.Content)
	return map[string]interface{}{
		"title": map[string]interface{}{
			"value":   title,
			"length":  len(title),
			"present": entry.Title != nil,
		},
		"content": map[string]interface{}{
			"value":   content,
			"length":  len(content),
			"present": entry.Content != nil,
		},
		"link":    atom.Value(entry.Link),
		"id":      atom.Value(entry.ID),
		"updated": atom.Value(entry.Updated),
		"authors": authors,
	}
}

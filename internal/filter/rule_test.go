package filter

import (
	"context"
	"testing"

	"github.com/bakkerme/atomsplit/internal/atom"
	"github.com/bakkerme/atomsplit/internal/config"
)

func str(s string) *string {
	return &s
}

func TestRuleDropsMatchingEntries(t *testing.T) {
	rule, err := NewRule(&config.FilterRule{
		Name: "title_length",
		Rule: "title.length > 5",
	})
	if err != nil {
		t.Fatalf("expected rule to compile, got error: %v", err)
	}

	entries := []atom.Entry{
		{ID: str("short"), Title: str("abc")},
		{ID: str("long"), Title: str("longer title")},
	}

	filtered := rule.Evaluate(context.Background(), entries)
	if len(filtered) != 1 {
		t.Fatalf("expected 1 entry after filtering, got %d", len(filtered))
	}
	if atom.Value(filtered[0].ID) != "short" {
		t.Errorf("expected short title to remain, got %s", atom.Value(filtered[0].ID))
	}
}

func TestRuleKeepsOnlyMatchingEntries(t *testing.T) {
	rule, err := NewRule(&config.FilterRule{
		Name:   "by_ann",
		Rule:   `any(authors, .name == "Ann")`,
		Result: ResultKeep,
	})
	if err != nil {
		t.Fatalf("expected rule to compile, got error: %v", err)
	}

	entries := []atom.Entry{
		{ID: str("1"), Authors: []atom.Author{{Name: str("Bob")}}},
		{ID: str("2"), Authors: []atom.Author{{Name: str("Ann")}, {Name: str("Bob")}}},
		{ID: str("3"), Authors: []atom.Author{}},
	}

	filtered := rule.Evaluate(context.Background(), entries)
	if len(filtered) != 1 || atom.Value(filtered[0].ID) != "2" {
		t.Fatalf("unexpected entries: %+v", filtered)
	}
}

func TestRuleSeesAbsentFields(t *testing.T) {
	rule, err := NewRule(&config.FilterRule{Name: "no_content", Rule: "!content.present"})
	if err != nil {
		t.Fatalf("expected rule to compile, got error: %v", err)
	}

	entries := []atom.Entry{
		{ID: str("absent")},
		{ID: str("empty"), Content: str("")},
	}
	filtered := rule.Evaluate(context.Background(), entries)
	if len(filtered) != 1 || atom.Value(filtered[0].ID) != "empty" {
		t.Fatalf("expected only the empty-content entry to remain, got %+v", filtered)
	}
}

func TestApplyRunsRulesInOrder(t *testing.T) {
	rules, err := Compile([]config.FilterRule{
		{Name: "has_link", Rule: `link != ""`, Result: ResultKeep},
		{Name: "no_drafts", Rule: `title.value startsWith "[draft]"`},
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	entries := []atom.Entry{
		{ID: str("a"), Title: str("[draft] wip"), Link: str("https://example.com/a")},
		{ID: str("b"), Title: str("Published"), Link: str("https://example.com/b")},
		{ID: str("c"), Title: str("No link")},
	}
	filtered := Apply(context.Background(), rules, entries)
	if len(filtered) != 1 || atom.Value(filtered[0].ID) != "b" {
		t.Fatalf("unexpected entries: %+v", filtered)
	}
}

func TestNewRuleRejectsInvalidConfig(t *testing.T) {
	cases := []*config.FilterRule{
		nil,
		{Name: "", Rule: "true"},
		{Name: "x", Rule: ""},
		{Name: "x", Rule: "true", Result: "maybe"},
		{Name: "x", Rule: "title.length +"},
		{Name: "x", Rule: `"not a bool"`},
		{Name: "x", Rule: "summary.length > 1"},
	}
	for i, cfg := range cases {
		if _, err := NewRule(cfg); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestNewRuleCompilesEveryEntryField(t *testing.T) {
	rules := []string{
		"title.length > 5",
		"title.present && title.value != \"\"",
		"content.length == 0 || !content.present",
		`link != ""`,
		`id matches "^urn:"`,
		`updated < "2024-01-01"`,
		`any(authors, .name == "Ann" || .email endsWith "@example.com" || .uri != "")`,
		"len(authors) == 0",
	}
	for _, rule := range rules {
		if _, err := NewRule(&config.FilterRule{Name: "field", Rule: rule}); err != nil {
			t.Errorf("rule %q: expected to compile, got %v", rule, err)
		}
	}
}

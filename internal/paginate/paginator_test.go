package paginate

import (
	"testing"

	"golang.org/x/net/html"

	"github.com/webharvest/webharvest/internal/extract"
	"github.com/webharvest/webharvest/internal/model"
)

// mustParse parses test HTML or fails the test.
func mustParse(t *testing.T, s string) *html.Node {
	t.Helper()
	root, err := extract.Parse(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

// enabledRule returns a pagination rule matching a.next with the given
// page budget.
func enabledRule(maxPages int) model.PaginationRule {
	return model.PaginationRule{
		Enabled:      true,
		NextSelector: model.Selector{Expr: "a.next"},
		MaxPages:     maxPages,
	}
}

const pageWithNext = `<html><body><a class="next" href="/page/2">next</a></body></html>`

// TestNextContinues tests relative link resolution against the current URL.
func TestNextContinues(t *testing.T) {
	t.Parallel()

	root := mustParse(t, pageWithNext)
	action := Next(root, enabledRule(10), 1, "https://example.com/page/1", map[string]bool{})

	if !action.Continue {
		t.Fatalf("expected continue, got stop (%s)", action.Reason)
	}
	if action.URL != "https://example.com/page/2" {
		t.Errorf("next URL = %q", action.URL)
	}
}

// TestNextStops tests every stop condition.
func TestNextStops(t *testing.T) {
	t.Parallel()

	current := "https://example.com/page/1"

	t.Run("rule disabled", func(t *testing.T) {
		t.Parallel()
		root := mustParse(t, pageWithNext)
		action := Next(root, model.PaginationRule{}, 0, current, map[string]bool{})
		if action.Continue {
			t.Error("disabled rule must stop after one page")
		}
	})

	t.Run("max pages reached", func(t *testing.T) {
		t.Parallel()
		root := mustParse(t, pageWithNext)
		action := Next(root, enabledRule(3), 3, current, map[string]bool{})
		if action.Continue {
			t.Error("page budget spent, must stop")
		}
	})

	t.Run("no matching node", func(t *testing.T) {
		t.Parallel()
		root := mustParse(t, `<html><body><p>end</p></body></html>`)
		action := Next(root, enabledRule(10), 1, current, map[string]bool{})
		if action.Continue {
			t.Error("selector matched nothing, must stop")
		}
	})

	t.Run("cycle guard", func(t *testing.T) {
		t.Parallel()
		root := mustParse(t, `<html><body><a class="next" href="/page/1">next</a></body></html>`)
		action := Next(root, enabledRule(10), 1, current, map[string]bool{})
		if action.Continue {
			t.Error("next link equals current URL, must stop")
		}
	})

	t.Run("duplicate guard", func(t *testing.T) {
		t.Parallel()
		root := mustParse(t, pageWithNext)
		visited := map[string]bool{Normalize("https://example.com/page/2"): true}
		action := Next(root, enabledRule(10), 1, current, visited)
		if action.Continue {
			t.Error("next link already visited, must stop")
		}
	})

	t.Run("javascript link", func(t *testing.T) {
		t.Parallel()
		root := mustParse(t, `<html><body><a class="next" href="javascript:void(0)">next</a></body></html>`)
		action := Next(root, enabledRule(10), 1, current, map[string]bool{})
		if action.Continue {
			t.Error("javascript link is not a page, must stop")
		}
	})
}

// TestNextXPathSelector tests a next-page rule written in XPath.
func TestNextXPathSelector(t *testing.T) {
	t.Parallel()

	root := mustParse(t, pageWithNext)
	rule := model.PaginationRule{
		Enabled:      true,
		NextSelector: model.Selector{Expr: "//a[@class='next']", Kind: model.KindXPath},
		MaxPages:     5,
	}

	action := Next(root, rule, 1, "https://example.com/page/1", map[string]bool{})
	if !action.Continue || action.URL != "https://example.com/page/2" {
		t.Errorf("action = %+v", action)
	}
}

// TestNormalize tests visit-set canonicalization.
func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM", "https://example.com/"},
		{"https://example.com/x#frag", "https://example.com/x"},
		{"https://example.com/x?page=2", "https://example.com/x?page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestNextAbsoluteLink tests that absolute next links pass through.
func TestNextAbsoluteLink(t *testing.T) {
	t.Parallel()

	root := mustParse(t, `<html><body><a class="next" href="https://other.example.com/p2">next</a></body></html>`)
	action := Next(root, enabledRule(10), 1, "https://example.com/p1", map[string]bool{})
	if !action.Continue || action.URL != "https://other.example.com/p2" {
		t.Errorf("action = %+v", action)
	}
}

package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/webharvest/webharvest/internal/model"
)

// TestParseSelectorPairs tests the name=expression flag parsing.
func TestParseSelectorPairs(t *testing.T) {
	t.Parallel()

	t.Run("valid pairs keep order and kind", func(t *testing.T) {
		t.Parallel()

		fields, err := parseSelectorPairs(
			[]string{"title=h1", "price=.price > span"},
			model.KindCSS, true,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fields) != 2 {
			t.Fatalf("fields = %d, want 2", len(fields))
		}
		if fields[0].Name != "title" || fields[0].Selector.Expr != "h1" {
			t.Errorf("field 0 = %+v", fields[0])
		}
		// Expressions may contain '=' themselves; only the first one splits.
		if fields[1].Selector.Expr != ".price > span" {
			t.Errorf("field 1 expr = %q", fields[1].Selector.Expr)
		}
		if fields[1].Selector.Kind != model.KindCSS || !fields[1].Selector.Repeating {
			t.Errorf("field 1 = %+v", fields[1].Selector)
		}
	})

	t.Run("expression containing equals", func(t *testing.T) {
		t.Parallel()

		fields, err := parseSelectorPairs(
			[]string{`link=//a[@rel="next"]`},
			model.KindXPath, false,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fields[0].Selector.Expr != `//a[@rel="next"]` {
			t.Errorf("expr = %q", fields[0].Selector.Expr)
		}
	})

	t.Run("invalid pairs", func(t *testing.T) {
		t.Parallel()

		for _, pair := range []string{"noequals", "=expr", "name="} {
			if _, err := parseSelectorPairs([]string{pair}, model.KindCSS, false); err == nil {
				t.Errorf("expected error for %q", pair)
			}
		}
	})
}

// fastDefaultsConfig writes a defaults-only config with a tiny rate
// limit so multi-page tests do not sleep out the polite default.
func fastDefaultsConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	if err := os.WriteFile(path, []byte("scraper:\n  rate_limit: 1ms\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestRunGrabCmd tests the end-to-end ad-hoc grab against a local server.
func TestRunGrabCmd(t *testing.T) {
	srv := bookServer(t)
	outPath := filepath.Join(t.TempDir(), "grab.csv")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{
		"grab",
		"-u", srv.URL + "/",
		"-c", fastDefaultsConfig(t),
		"-r",
		"-s", "title=article h3",
		"-s", "price=article .price",
		"-o", outPath,
		"--no-db",
	})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	// Single page: header + 2 records.
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3:\n%v", len(rows), rows)
	}
	if rows[1][0] != "Book One" || rows[2][1] != "12.50" {
		t.Errorf("records = %v", rows[1:])
	}
}

// TestRunGrabCmdPagination tests that --next follows pages.
func TestRunGrabCmdPagination(t *testing.T) {
	srv := bookServer(t)
	outPath := filepath.Join(t.TempDir(), "grab.csv")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{
		"grab",
		"-u", srv.URL + "/",
		"-c", fastDefaultsConfig(t),
		"-r",
		"-s", "title=article h3",
		"--next", "a.next",
		"--max-pages", "5",
		"-o", outPath,
		"--no-db",
	})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Errorf("rows = %d, want header + 3 records over 2 pages", len(rows))
	}
}

// TestRunGrabCmdErrors tests grab's validation paths.
func TestRunGrabCmdErrors(t *testing.T) {
	srv := bookServer(t)

	tests := []struct {
		name    string
		args    []string
		wantSub string
	}{
		{
			name:    "no selectors",
			args:    []string{"grab", "-u", srv.URL, "--no-db"},
			wantSub: "no selectors",
		},
		{
			name:    "malformed selector",
			args:    []string{"grab", "-u", srv.URL, "-s", "broken", "--no-db"},
			wantSub: "expected name=expression",
		},
		{
			name:    "relative url",
			args:    []string{"grab", "-u", "/books", "-s", "t=h1", "--no-db"},
			wantSub: "configuration error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

// TestRunGrabCmdFailure tests that a failed grab reports a non-nil error
// for the exit code.
func TestRunGrabCmdFailure(t *testing.T) {
	srv := bookServer(t)

	cmd := NewRootCmd()
	cmd.SetArgs([]string{
		"grab",
		"-u", srv.URL + "/missing",
		"-s", "title=h1",
		"-o", filepath.Join(t.TempDir(), "out.csv"),
		"--no-db",
	})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for failed grab")
	}
	if !strings.Contains(err.Error(), "http_status") {
		t.Errorf("error = %v, want failure kind http_status", err)
	}
}

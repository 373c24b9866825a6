package main

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// bookServer serves a small two-page catalogue for CLI tests.
func bookServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			http.NotFound(w, r)
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body>
				<article><h3>Book One</h3><p class="price">10.00</p></article>
				<article><h3>Book Two</h3><p class="price">12.50</p></article>
				<a class="next" href="/page2">next</a>
			</body></html>`)
		case "/page2":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body>
				<article><h3>Book Three</h3><p class="price">8.75</p></article>
			</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeScrapeConfig writes a config file pointing at the test server.
func writeScrapeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	content := fmt.Sprintf(`
scraper:
  rate_limit: 1ms
  timeout: 5s
targets:
  books:
    base_url: %s/
    selectors:
      title:
        selector: "article h3"
        repeating: true
      price:
        selector: "article .price"
        repeating: true
    pagination:
      enabled: true
      next_selector: "a.next"
      max_pages: 5
`, baseURL)

	path := filepath.Join(t.TempDir(), "webharvest.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestRunScrapeCmd tests the end-to-end scrape command against a local
// server: config load, pagination, CSV output.
func TestRunScrapeCmd(t *testing.T) {
	srv := bookServer(t)
	configPath := writeScrapeConfig(t, srv.URL)
	outPath := filepath.Join(t.TempDir(), "books.csv")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"scrape", "-c", configPath, "-o", outPath, "--no-db", "books"})

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
	// Header + 3 records across 2 pages.
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4:\n%v", len(rows), rows)
	}
	if rows[0][0] != "title" || rows[0][1] != "price" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[3][0] != "Book Three" || rows[3][1] != "8.75" {
		t.Errorf("page-2 record = %v", rows[3])
	}
	// Provenance columns: page numbers advance across pagination.
	if rows[1][3] != "1" || rows[3][3] != "2" {
		t.Errorf("page_number cells = %q, %q", rows[1][3], rows[3][3])
	}
}

// TestRunScrapeCmdAllTargets tests that no arguments means every
// configured target.
func TestRunScrapeCmdAllTargets(t *testing.T) {
	srv := bookServer(t)
	configPath := writeScrapeConfig(t, srv.URL)
	outPath := filepath.Join(t.TempDir(), "out.csv")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"scrape", "-c", configPath, "-o", outPath, "--no-db"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

// TestRunScrapeCmdErrors tests the configuration error paths.
func TestRunScrapeCmdErrors(t *testing.T) {
	srv := bookServer(t)
	configPath := writeScrapeConfig(t, srv.URL)

	tests := []struct {
		name    string
		args    []string
		wantSub string
	}{
		{
			name:    "missing config file",
			args:    []string{"scrape", "-c", filepath.Join(t.TempDir(), "nope.yaml"), "--no-db"},
			wantSub: "config file not found",
		},
		{
			name:    "unknown target",
			args:    []string{"scrape", "-c", configPath, "--no-db", "nope"},
			wantSub: "target not found",
		},
		{
			name:    "conflicting formats",
			args:    []string{"scrape", "-c", configPath, "--no-db", "--json", "--markdown", "books"},
			wantSub: "mutually exclusive",
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

// TestRunScrapeCmdTotalFailure tests the exit policy: a run yielding no
// records at all reports an error.
func TestRunScrapeCmdTotalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	configPath := writeScrapeConfig(t, srv.URL)
	outPath := filepath.Join(t.TempDir(), "out.csv")

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"scrape", "-c", configPath, "-o", outPath, "--no-db", "books"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for a run with no records")
	}
	if !strings.Contains(err.Error(), "http_status") {
		t.Errorf("error = %v, want failure kind http_status", err)
	}
}

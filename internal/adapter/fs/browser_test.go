package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeBrowserExport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "browser_data.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write export: %v", err)
	}
	return path
}

func TestReadBrowserHistoryByDay(t *testing.T) {
	path := writeBrowserExport(t, `{
		"records_by_day": {
			"2026-01-02": [
				{"title": "Later", "url": "https://example.com/b"}
			],
			"2026-01-01": [
				{"title": "Earlier", "url": "https://example.com/a", "search_query": "example"},
				"not a record",
				null
			]
		}
	}`)

	records, err := ReadBrowserHistory(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	// Days come back sorted regardless of JSON key order.
	if records[0]["title"] != "Earlier" || records[1]["title"] != "Later" {
		t.Errorf("records out of day order: %v", records)
	}

	if got := records[0].Text(); got != "Earlier https://example.com/a example" {
		t.Errorf("unexpected search text: %q", got)
	}
	if got := records[1].Text(); got != "Later https://example.com/b" {
		t.Errorf("unexpected search text: %q", got)
	}
}

func TestReadBrowserHistoryFlatList(t *testing.T) {
	path := writeBrowserExport(t, `[
		{"title": "One", "url": "https://one.test"},
		42,
		{"title": "Two", "url": "https://two.test"}
	]`)

	records, err := ReadBrowserHistory(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records from flat list, got %d", len(records))
	}
	if records[0]["title"] != "One" || records[1]["title"] != "Two" {
		t.Errorf("unexpected records: %v", records)
	}
}

func TestReadBrowserHistoryWithoutRecords(t *testing.T) {
	path := writeBrowserExport(t, `{"exported_at": "2026-01-01"}`)

	records, err := ReadBrowserHistory(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestReadBrowserHistoryBadInput(t *testing.T) {
	if _, err := ReadBrowserHistory(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeBrowserExport(t, `not json at all`)
	if _, err := ReadBrowserHistory(path); err == nil {
		t.Error("expected error for malformed JSON")
	}

	path = writeBrowserExport(t, `"a bare string"`)
	if _, err := ReadBrowserHistory(path); err == nil {
		t.Error("expected error for unrecognized top-level shape")
	}
}

func TestBrowserRecordTextMissingFields(t *testing.T) {
	r := BrowserRecord{"url": "https://only-url.test"}
	if got := r.Text(); got != " https://only-url.test" {
		t.Errorf("unexpected text for title-less record: %q", got)
	}
}

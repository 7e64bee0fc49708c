package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// BrowserRecord is one exported browser-history entry. The collector
// writes arbitrary per-record fields; the whole record rides along as
// item metadata.
type BrowserRecord map[string]any

// Text builds the searchable text for a record: title and URL, plus the
// search query when the record has one.
func (r BrowserRecord) Text() string {
	title, _ := r["title"].(string)
	url, _ := r["url"].(string)
	text := title + " " + url

	if q, ok := r["search_query"].(string); ok && q != "" {
		text += " " + q
	}
	return text
}

// ReadBrowserHistory parses a browser-history export. The collector
// groups records under "records_by_day"; older exports are a flat list.
// Days are read in sorted order so repeated runs ingest identically.
// Entries that are not JSON objects are skipped.
func ReadBrowserHistory(path string) ([]BrowserRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read browser history: %w", err)
	}

	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse browser history: %w", err)
	}

	switch v := root.(type) {
	case map[string]any:
		byDay, _ := v["records_by_day"].(map[string]any)

		days := make([]string, 0, len(byDay))
		for day := range byDay {
			days = append(days, day)
		}
		sort.Strings(days)

		var records []BrowserRecord
		for _, day := range days {
			list, ok := byDay[day].([]any)
			if !ok {
				continue
			}
			records = append(records, recordsFromList(list)...)
		}
		return records, nil

	case []any:
		return recordsFromList(v), nil
	}

	return nil, fmt.Errorf("unrecognized browser history format in %s", path)
}

func recordsFromList(list []any) []BrowserRecord {
	var out []BrowserRecord
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, BrowserRecord(m))
		}
	}
	return out
}

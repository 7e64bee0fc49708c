package fs

import "os"

// PlainText reads file contents as UTF-8 text. Richer extraction (PDF,
// transcripts, OCR) happens upstream in the collectors; by the time a
// file reaches the indexer it is a text producer like any other.
type PlainText struct{}

func (PlainText) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

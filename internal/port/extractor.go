package port

// TextExtractor turns a file into text to ingest. Document parsers,
// OCR, and transcription engines all sit behind this; the indexer
// treats their output as opaque text.
type TextExtractor interface {
	Extract(path string) (string, error)
}

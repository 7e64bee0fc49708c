package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// sentenceEnd matches a sentence-ending punctuation mark followed by
// whitespace. The match end includes the whitespace run.
var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// boundaryWindow is how far back from a window end to look for a
// sentence boundary.
const boundaryWindow = 200

// SentenceChunker splits long text into overlapping windows, preferring
// to end each window just after a nearby sentence boundary.
type SentenceChunker struct {
	size    int
	overlap int
}

func NewSentenceChunker(size, overlap int) *SentenceChunker {
	return &SentenceChunker{
		size:    size,
		overlap: overlap,
	}
}

// Segment is one chunk of a longer text. Start and End are byte offsets
// into the input (end exclusive); Text is the window with surrounding
// whitespace trimmed.
type Segment struct {
	Text  string
	Start int
	End   int
}

// ShouldChunk reports whether text is too long to embed as one unit.
func (c *SentenceChunker) ShouldChunk(text string) bool {
	return len(text) > c.size
}

// Chunk splits text into overlapping segments. Text no longer than the
// chunk size is returned as a single segment spanning the whole string.
// Window boundaries never split a UTF-8 rune.
func (c *SentenceChunker) Chunk(text string) ([]Segment, error) {
	if c.size <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", c.size)
	}

	overlap := c.overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap > c.size-1 {
		overlap = c.size - 1
	}

	if len(text) <= c.size {
		return []Segment{{Text: text, Start: 0, End: len(text)}}, nil
	}

	var segments []Segment
	start := 0

	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			end = len(text)
		} else {
			end = runeFloor(text, end)
			if end <= start {
				end = nextRuneStart(text, start)
			}
		}

		if end < len(text) {
			searchFrom := end - boundaryWindow
			if searchFrom < start {
				searchFrom = start
			}
			searchFrom = runeCeil(text, searchFrom)
			if searchFrom < end {
				if locs := sentenceEnd.FindAllStringIndex(text[searchFrom:end], -1); len(locs) > 0 {
					end = searchFrom + locs[len(locs)-1][1]
				}
			}
		}

		seg := strings.TrimSpace(text[start:end])
		if seg != "" {
			segments = append(segments, Segment{Text: seg, Start: start, End: end})
		}

		if end >= len(text) {
			break
		}

		// Overlap the next window, but always move forward.
		next := end - overlap
		if next > start {
			next = runeFloor(text, next)
		}
		if next <= start {
			next = nextRuneStart(text, start)
		}
		start = next
	}

	return segments, nil
}

// runeFloor rounds i down to the start of the rune containing it.
func runeFloor(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil rounds i up to the next rune start.
func runeCeil(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// nextRuneStart returns the index just past the rune beginning at i.
func nextRuneStart(s string, i int) int {
	i++
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

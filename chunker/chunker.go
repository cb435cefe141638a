// Package chunker splits document text into bounded, index-ordered segments.
// Segment offsets never overlap: the configured overlap duplicates the tail of
// the previous span into the next segment's text instead of widening its span,
// so offsets always partition the source and insertion order equals physical
// order.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anycompany/docsearch/config"
)

// approxCharsPerToken converts the token-denominated chunk size option into a
// character count. Close enough for window sizing; exact tokenization is the
// model's business.
const approxCharsPerToken = 4

// Chunk is one bounded span of a document. Start and End are byte offsets into
// the normalized source text; Text may additionally carry duplicated content
// from the previous span when overlap is configured.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

type Chunker interface {
	Chunk(text string) []Chunk
}

func New(cfg config.ChunkingConfig) (Chunker, error) {
	switch cfg.Strategy {
	case config.ChunkingNone:
		return wholeChunker{}, nil
	case config.ChunkingFixed:
		size := cfg.ChunkTokens * approxCharsPerToken
		if size <= 0 {
			return nil, fmt.Errorf("chunk size must be positive")
		}
		overlap := int(float64(size) * cfg.OverlapFraction)
		if overlap < 0 || overlap >= size {
			return nil, fmt.Errorf("overlap fraction must be in [0, 1)")
		}
		return &fixedChunker{size: size, overlap: overlap}, nil
	case config.ChunkingAuto:
		return &paragraphChunker{target: 1000, overlap: true}, nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy: %s", cfg.Strategy)
	}
}

// Normalize prepares raw document text for chunking. Offsets produced by any
// chunker are relative to the normalized text.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimRight(text, "\n ")
}

type wholeChunker struct{}

func (wholeChunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []Chunk{{Index: 0, Start: 0, End: len(text), Text: text}}
}

type fixedChunker struct {
	size    int
	overlap int
}

func (c *fixedChunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	chunks := make([]Chunk, 0, len(text)/c.size+1)
	start := 0
	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			end = len(text)
		} else {
			end = splitPoint(text, end)
			if end <= start {
				// A single token longer than the window. Cut it hard
				// rather than stalling and dropping the remainder.
				end = boundary(text, start+c.size)
			}
		}
		if end <= start {
			break
		}

		body := text[start:end]
		prefix := ""
		if c.overlap > 0 && start > 0 {
			from := start - c.overlap
			if from < 0 {
				from = 0
			}
			prefix = text[boundary(text, from):start]
		}

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			End:   end,
			Text:  prefix + body,
		})
		start = end
	}

	return chunks
}

// splitPoint moves a tentative cut backwards to the nearest whitespace so
// words survive intact, falling back to the nearest rune boundary.
func splitPoint(text string, at int) int {
	at = boundary(text, at)
	lowest := at - 200
	if lowest < 0 {
		lowest = 0
	}
	for i := at; i > lowest; i-- {
		if text[i-1] == ' ' || text[i-1] == '\n' || text[i-1] == '\t' {
			return i
		}
	}
	return at
}

// boundary snaps an offset back onto a UTF-8 rune boundary.
func boundary(text string, at int) int {
	for at > 0 && at < len(text) && !utf8.RuneStart(text[at]) {
		at--
	}
	return at
}

// paragraphChunker packs whole paragraphs up to a target size, repeating the
// last paragraph of the previous chunk when overlap is enabled.
type paragraphChunker struct {
	target  int
	overlap bool
}

type paragraph struct {
	start int
	end   int
	text  string
}

func (c *paragraphChunker) Chunk(text string) []Chunk {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0)
	current := make([]paragraph, 0)
	currentLen := 0
	carried := ""

	flush := func() {
		if len(current) == 0 {
			return
		}
		parts := make([]string, 0, len(current)+1)
		if carried != "" {
			parts = append(parts, carried)
		}
		for _, p := range current {
			parts = append(parts, p.text)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: current[0].start,
			End:   current[len(current)-1].end,
			Text:  strings.Join(parts, "\n\n"),
		})
		if c.overlap {
			carried = current[len(current)-1].text
		}
		current = current[:0]
		currentLen = 0
	}

	for _, p := range paragraphs {
		if currentLen+len(p.text) > c.target && len(current) > 0 {
			flush()
		}
		current = append(current, p)
		currentLen += len(p.text)
	}
	flush()

	return chunks
}

func splitParagraphs(text string) []paragraph {
	paragraphs := make([]paragraph, 0)
	offset := 0
	for offset < len(text) {
		next := strings.Index(text[offset:], "\n\n")
		end := len(text)
		if next >= 0 {
			end = offset + next
		}

		raw := text[offset:end]
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			lead := strings.Index(raw, trimmed)
			paragraphs = append(paragraphs, paragraph{
				start: offset + lead,
				end:   offset + lead + len(trimmed),
				text:  trimmed,
			})
		}

		if next < 0 {
			break
		}
		offset = end + 2
	}
	return paragraphs
}

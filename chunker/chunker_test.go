package chunker

import (
	"strings"
	"testing"

	"github.com/anycompany/docsearch/config"
)

func fixed(t *testing.T, tokens int, overlap float64) Chunker {
	t.Helper()
	c, err := New(config.ChunkingConfig{
		Strategy:        config.ChunkingFixed,
		ChunkTokens:     tokens,
		OverlapFraction: overlap,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestFixedChunkerOffsetsPartitionSource(t *testing.T) {
	text := Normalize(strings.Repeat("alpha beta gamma delta epsilon ", 40))
	chunks := fixed(t, 20, 0.10).Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	if chunks[0].Start != 0 {
		t.Fatalf("first chunk must start at 0, got %d", chunks[0].Start)
	}
	if chunks[len(chunks)-1].End != len(text) {
		t.Fatalf("last chunk must end at %d, got %d", len(text), chunks[len(chunks)-1].End)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d carries index %d", i, c.Index)
		}
		if c.End <= c.Start {
			t.Fatalf("chunk %d has empty span [%d, %d)", i, c.Start, c.End)
		}
		if i > 0 && c.Start != chunks[i-1].End {
			t.Fatalf("chunk %d starts at %d but previous ends at %d", i, c.Start, chunks[i-1].End)
		}
	}
}

func TestFixedChunkerOverlapDuplicatesPreviousTail(t *testing.T) {
	text := Normalize(strings.Repeat("one two three four five six seven eight ", 30))
	chunks := fixed(t, 20, 0.10).Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		span := text[chunks[i].Start:chunks[i].End]
		if !strings.HasSuffix(chunks[i].Text, span) {
			t.Fatalf("chunk %d text must end with its own span", i)
		}
		prefix := strings.TrimSuffix(chunks[i].Text, span)
		if prefix == "" {
			t.Fatalf("chunk %d expected a duplicated prefix", i)
		}
		if !strings.HasSuffix(text[:chunks[i].Start], prefix) {
			t.Fatalf("chunk %d prefix is not the tail of the preceding text", i)
		}
	}
}

func TestFixedChunkerZeroOverlap(t *testing.T) {
	text := Normalize(strings.Repeat("word ", 200))
	chunks := fixed(t, 20, 0).Chunk(text)
	for i, c := range chunks {
		if c.Text != text[c.Start:c.End] {
			t.Fatalf("chunk %d text must equal its span when overlap is zero", i)
		}
	}
}

func TestFixedChunkerPrefersWordBoundaries(t *testing.T) {
	text := Normalize(strings.Repeat("boundary ", 100))
	chunks := fixed(t, 10, 0).Chunk(text)
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c.Text, " ") && text[c.End] != ' ' {
			t.Fatalf("chunk %d cut mid-word at offset %d", i, c.End)
		}
	}
}

func TestFixedChunkerTokenLongerThanWindow(t *testing.T) {
	// A small window followed by an unbroken run longer than the window must
	// not stall the scan: the oversized token gets hard cuts and the tail of
	// the document still comes through.
	text := Normalize(strings.Repeat("a", 150) + " " + strings.Repeat("b", 300) + " tail")
	chunks := fixed(t, 40, 0).Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0].Start != 0 {
		t.Fatalf("first chunk must start at 0, got %d", chunks[0].Start)
	}
	if last := chunks[len(chunks)-1]; last.End != len(text) {
		t.Fatalf("last chunk ends at %d, dropping %d bytes", last.End, len(text)-last.End)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start != chunks[i-1].End {
			t.Fatalf("chunk %d starts at %d but previous ends at %d", i, chunks[i].Start, chunks[i-1].End)
		}
	}
	if !strings.HasSuffix(chunks[len(chunks)-1].Text, "tail") {
		t.Fatal("document tail missing from the final chunk")
	}
}

func TestWholeChunkerSingleSpan(t *testing.T) {
	c, err := New(config.ChunkingConfig{Strategy: config.ChunkingNone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := "a short document"
	chunks := c.Chunk(text)
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(chunks))
	}
	if chunks[0].Start != 0 || chunks[0].End != len(text) || chunks[0].Text != text {
		t.Fatalf("unexpected chunk: %+v", chunks[0])
	}
}

func TestChunkersSkipEmptyInput(t *testing.T) {
	for _, strategy := range []string{config.ChunkingNone, config.ChunkingFixed, config.ChunkingAuto} {
		c, err := New(config.ChunkingConfig{Strategy: strategy, ChunkTokens: 100, OverlapFraction: 0.1})
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", strategy, err)
		}
		if got := c.Chunk("  \n\n  "); len(got) != 0 {
			t.Fatalf("%s: expected no chunks for blank input, got %d", strategy, len(got))
		}
	}
}

func TestParagraphChunkerKeepsParagraphsIntact(t *testing.T) {
	c, err := New(config.ChunkingConfig{Strategy: config.ChunkingAuto})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := strings.Repeat("first paragraph sentence. ", 20)
	second := strings.Repeat("second paragraph sentence. ", 20)
	third := strings.Repeat("third paragraph sentence. ", 20)
	text := Normalize(first + "\n\n" + second + "\n\n" + third)

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start < chunks[i-1].End {
			t.Fatalf("chunk %d span overlaps previous", i)
		}
	}
	// Overlap carries the previous chunk's last paragraph as text only.
	if !strings.Contains(chunks[1].Text, strings.TrimSpace(first)) {
		t.Fatal("expected second chunk to repeat the carried paragraph")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(config.ChunkingConfig{Strategy: config.ChunkingFixed, ChunkTokens: 0}); err == nil {
		t.Fatal("expected error for zero chunk size")
	}
	if _, err := New(config.ChunkingConfig{Strategy: config.ChunkingFixed, ChunkTokens: 100, OverlapFraction: 1.0}); err == nil {
		t.Fatal("expected error for overlap fraction of 1")
	}
	if _, err := New(config.ChunkingConfig{Strategy: "sliding"}); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestNormalizeLineEndings(t *testing.T) {
	got := Normalize("line one\r\nline two\rline three\n\n")
	want := "line one\nline two\nline three"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

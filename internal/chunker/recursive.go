// Package chunker splits documents into overlapping, page-tagged chunks.
package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"contractrag/internal/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1100

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 150

// pageSample is how many leading characters of a chunk vote on its page.
const pageSample = 200

// pageJoin separates pages in the text handed to the splitter so that page
// boundaries are preferred split points.
const pageJoin = "\n\n"

// DefaultSeparators is the split preference order: paragraph, line, sentence, word.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// RecursiveChunker splits on the coarsest separator that occurs in the text and
// recurses into pieces that are still too large, then greedily merges pieces
// back up to the chunk size with the configured overlap.
type RecursiveChunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the chunker.
type Option func(*RecursiveChunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *RecursiveChunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *RecursiveChunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator preference order.
func WithSeparators(seps ...string) Option {
	return func(c *RecursiveChunker) {
		if len(seps) > 0 {
			c.separators = append([]string(nil), seps...)
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *RecursiveChunker {
	c := &RecursiveChunker{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Chunk splits every document in order. Documents without text produce no chunks.
func (c *RecursiveChunker) Chunk(docs []domain.Document) []domain.Chunk {
	var out []domain.Chunk
	for _, d := range docs {
		out = append(out, c.chunkDocument(d)...)
	}
	return out
}

func (c *RecursiveChunker) chunkDocument(doc domain.Document) []domain.Chunk {
	full, pm := layout(doc)
	if strings.TrimSpace(full) == "" {
		return nil
	}
	maxPage := doc.PageCount
	if maxPage < 1 {
		maxPage = 1
	}
	pieces := c.split(full, c.separators)
	chunks := make([]domain.Chunk, 0, len(pieces))
	cursor := 0
	for i, text := range pieces {
		start := cursor
		if rel := strings.Index(full[cursor:], text); rel >= 0 {
			start = cursor + rel
			cursor = start + 1
		}
		n := runeLen(text)
		if n > pageSample {
			n = pageSample
		}
		page := pm.vote(full, start, n)
		if page < 1 {
			page = 1
		}
		if page > maxPage {
			page = maxPage
		}
		chunks = append(chunks, domain.Chunk{
			ID:           chunkID(doc.Name, i, text),
			DocumentName: doc.Name,
			Page:         page,
			Content:      text,
		})
	}
	return chunks
}

func chunkID(name string, index int, content string) string {
	h := sha1.Sum([]byte(name + "|" + strconv.Itoa(index) + "|" + content))
	return hex.EncodeToString(h[:6])
}

// split is the recursive step. Pieces keep their trailing separator so the
// merged chunks are contiguous spans of the input.
func (c *RecursiveChunker) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			sep = s
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var out []string
	var good []string
	for _, piece := range splitKeep(text, sep) {
		if runeLen(piece) < c.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, c.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, c.merge(good)...)
	}
	return out
}

// splitKeep splits text on sep, leaving each separator at the end of the piece
// before it. Empty pieces are dropped. An empty sep splits into characters.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge greedily packs pieces into chunks of at most chunkSize characters,
// carrying up to overlap characters of trailing pieces into the next chunk.
func (c *RecursiveChunker) merge(pieces []string) []string {
	var out []string
	var current []string
	total := 0
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > c.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				out = append(out, doc)
			}
			for len(current) > 0 && (total > c.overlap || total+n > c.chunkSize) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		out = append(out, doc)
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// pageMap records the byte offset at which each page's text begins in the
// joined document. Separator bytes belong to the preceding page.
type pageMap struct {
	starts []int
	pages  []int
}

func (m pageMap) at(offset int) int {
	i := sort.Search(len(m.starts), func(i int) bool { return m.starts[i] > offset }) - 1
	if i < 0 {
		return 1
	}
	return m.pages[i]
}

// vote returns the page holding the most of the n characters starting at
// offset, ties going to the lowest page.
func (m pageMap) vote(full string, offset, n int) int {
	counts := map[int]int{}
	pos := offset
	for k := 0; k < n && pos < len(full); k++ {
		counts[m.at(pos)]++
		_, size := utf8.DecodeRuneInString(full[pos:])
		pos += size
	}
	best, bestCount := 1, -1
	for p, cnt := range counts {
		if cnt > bestCount || (cnt == bestCount && p < best) {
			best, bestCount = p, cnt
		}
	}
	return best
}

// layout builds the text handed to the splitter and its page map. Without
// per-page text the full text is divided evenly across the page count.
func layout(doc domain.Document) (string, pageMap) {
	var b strings.Builder
	var pm pageMap
	if hasPageText(doc.Pages) {
		for i, p := range doc.Pages {
			if strings.TrimSpace(p) == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString(pageJoin)
			}
			pm.starts = append(pm.starts, b.Len())
			pm.pages = append(pm.pages, i+1)
			b.WriteString(p)
		}
		return b.String(), pm
	}

	runes := []rune(doc.FullText)
	pages := doc.PageCount
	if pages < 1 {
		pages = 1
	}
	per := len(runes) / pages
	if per < 1 {
		per = 1
	}
	for i := 0; i < pages; i++ {
		lo := i * per
		if lo >= len(runes) {
			break
		}
		hi := lo + per
		if i == pages-1 || hi > len(runes) {
			hi = len(runes)
		}
		pm.starts = append(pm.starts, b.Len())
		pm.pages = append(pm.pages, i+1)
		b.WriteString(string(runes[lo:hi]))
	}
	return b.String(), pm
}

func hasPageText(pages []string) bool {
	for _, p := range pages {
		if strings.IndexFunc(p, func(r rune) bool { return !unicode.IsSpace(r) }) >= 0 {
			return true
		}
	}
	return false
}

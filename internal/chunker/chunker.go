// Package chunker splits raw document text into retrieval-sized chunks.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the window size in characters when none is configured.
const DefaultChunkSize = 5000

// boundaryFloor is the fraction of the window below which a natural boundary
// is ignored, preventing degenerate tiny chunks.
const boundaryFloor = 0.3

// Chunker splits text on natural boundaries: fenced code blocks, paragraph
// breaks, then sentence ends, falling back to raw cuts when none qualifies.
type Chunker struct {
	chunkSize int
}

// New creates a chunker with the given window size in characters.
// Non-positive sizes fall back to DefaultChunkSize.
func New(chunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chunker{chunkSize: chunkSize}
}

// Split scans text in windows of the configured size and cuts each window at
// the best boundary found past the floor: a ``` fence, a blank line, or a
// ". " sentence end, in that priority order. Chunks are trimmed and empty ones
// dropped; the final remainder is always emitted whole. The next window starts
// at max(start+1, cut), so progress is guaranteed even on pathological input.
// All positions are rune offsets, so a cut never lands inside a multi-byte
// character.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	runes := []rune(text)
	start := 0
	n := len(runes)
	floor := int(float64(c.chunkSize) * boundaryFloor)

	for start < n {
		end := start + c.chunkSize

		if end >= n {
			if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
				chunks = append(chunks, tail)
			}
			break
		}

		window := string(runes[start:end])
		if fence := strings.LastIndex(window, "```"); fence != -1 && runeOffset(window, fence) > floor {
			end = start + runeOffset(window, fence)
		} else if strings.Contains(window, "\n\n") {
			if brk := runeOffset(window, strings.LastIndex(window, "\n\n")); brk > floor {
				end = start + brk
			}
		} else if strings.Contains(window, ". ") {
			if period := runeOffset(window, strings.LastIndex(window, ". ")); period > floor {
				end = start + period + 1
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if next := start + 1; end > next {
			start = end
		} else {
			start = next
		}
	}

	return chunks
}

// runeOffset converts a byte index returned by the strings package into a rune
// offset within s.
func runeOffset(s string, byteIdx int) int {
	return utf8.RuneCountInString(s[:byteIdx])
}

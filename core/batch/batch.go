// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package batch packs translation units into size-bounded batches for dispatch.

Units are packed greedily in order, never splitting a unit across batches --
unless a single unit alone exceeds the byte budget, in which case it is split
at sentence boundaries into chunks that each become a single-unit batch and
are reassembled after translation.
*/
package batch

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"codeberg.org/linguafe/linguafe/core/codec"
	"codeberg.org/linguafe/linguafe/core/idgen"
)

// DefaultBudget is the byte budget applied when none is configured.
const DefaultBudget = 4000

// chunkFill leaves headroom for delimiter and encoding variance when filling
// chunks of an oversized unit.
const chunkFill = 0.9

// Unit is one translatable fragment (or one chunk of an oversized fragment)
// as it moves through the pipeline. It is created at batch-preparation time
// and discarded once its translation is applied or permanently failed.
type Unit struct {
	// Source is the original markup the unit was encoded from.
	Source string

	// Encoded is the placeholder-encoded text sent for translation.
	Encoded string

	// Placeholders maps placeholder tokens back to the original tags.
	Placeholders codec.PlaceholderMap

	// Chunk metadata, set only for pieces of a split oversized unit.
	ChunkID     string
	ChunkIndex  int
	TotalChunks int

	// Parent is the unsplit unit a chunk was derived from.
	Parent *Unit
}

// IsChunk reports whether the unit is one piece of a split oversized unit.
func (u *Unit) IsChunk() bool {
	return u.ChunkID != ""
}

// Plan groups units into batches whose concatenated encoded size, including
// delimiterLen bytes between adjacent units, does not exceed budget. Unit
// order is preserved. A unit whose own size exceeds the budget is split via
// [SplitOversized]; each of its chunks becomes its own single-unit batch.
func Plan(units []*Unit, budget, delimiterLen int) [][]*Unit {
	if budget <= 0 {
		budget = DefaultBudget
	}

	var (
		batches [][]*Unit
		current []*Unit
		size    int
	)

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
			size = 0
		}
	}

	for _, unit := range units {
		if len(unit.Encoded) > budget {
			// Oversized units never share a batch with anything.
			flush()

			for _, chunk := range SplitOversized(unit, budget) {
				batches = append(batches, []*Unit{chunk})
			}

			continue
		}

		added := len(unit.Encoded)
		if len(current) > 0 {
			added += delimiterLen
		}

		if size+added > budget && len(current) > 0 {
			flush()

			added = len(unit.Encoded)
		}

		current = append(current, unit)
		size += added
	}

	flush()

	return batches
}

// SplitOversized splits a unit whose encoded text exceeds the budget into
// chunks at sentence boundaries, greedily filling each chunk to 90% of the
// budget. When a single sentence alone exceeds that headroom it is
// force-split at rune offsets. All chunks share a freshly generated ChunkID
// and carry their index and total for reassembly.
func SplitOversized(unit *Unit, budget int) []*Unit {
	if budget <= 0 {
		budget = DefaultBudget
	}

	target := int(chunkFill * float64(budget))

	pieces := packSentences(splitSentences(unit.Encoded), target)

	log.Info().
		Int("size", len(unit.Encoded)).
		Int("budget", budget).
		Int("chunks", len(pieces)).
		Msg("Splitting oversized fragment")

	chunkID := idgen.Make()
	chunks := make([]*Unit, len(pieces))

	for i, piece := range pieces {
		chunks[i] = &Unit{
			Source:       unit.Source,
			Encoded:      piece,
			Placeholders: unit.Placeholders,
			ChunkID:      chunkID,
			ChunkIndex:   i,
			TotalChunks:  len(pieces),
			Parent:       unit,
		}
	}

	return chunks
}

// splitSentences cuts text after '.', '!' or '?' followed by whitespace or
// end-of-string. Whitespace between sentences is dropped; chunks are rejoined
// with single spaces later.
func splitSentences(text string) []string {
	var sentences []string

	start := 0

	for i := 0; i < len(text); i++ {
		if !isSentenceEnd(text[i]) {
			continue
		}

		if i+1 < len(text) && !isSpace(text[i+1]) {
			continue
		}

		if sentence := strings.TrimSpace(text[start : i+1]); sentence != "" {
			sentences = append(sentences, sentence)
		}

		start = i + 1
	}

	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}

// packSentences greedily fills chunks up to target bytes, joining sentences
// within a chunk by single spaces. A sentence that alone exceeds the target
// is force-split at rune offsets.
func packSentences(sentences []string, target int) []string {
	var (
		chunks  []string
		current strings.Builder
	)

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, sentence := range sentences {
		if len(sentence) > target {
			// A run-on longer than the headroom: cut at raw offsets.
			flush()

			chunks = append(chunks, forceSplit(sentence, target)...)

			continue
		}

		added := len(sentence)
		if current.Len() > 0 {
			added++ // joining space
		}

		if current.Len()+added > target {
			flush()
		}

		if current.Len() > 0 {
			current.WriteByte(' ')
		}

		current.WriteString(sentence)
	}

	flush()

	return chunks
}

// forceSplit cuts s into pieces of at most target bytes without breaking a
// UTF-8 sequence.
func forceSplit(s string, target int) []string {
	var pieces []string

	for len(s) > target {
		cut := target
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}

		if cut == 0 {
			cut = target
		}

		pieces = append(pieces, s[:cut])
		s = s[cut:]
	}

	if s != "" {
		pieces = append(pieces, s)
	}

	return pieces
}

func isSentenceEnd(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

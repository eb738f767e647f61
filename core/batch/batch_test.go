// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package batch

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeUnits(texts ...string) []*Unit {
	units := make([]*Unit, len(texts))
	for i, text := range texts {
		units[i] = &Unit{Source: text, Encoded: text}
	}

	return units
}

func batchSize(units []*Unit, delimiterLen int) int {
	size := 0

	for i, unit := range units {
		if i > 0 {
			size += delimiterLen
		}

		size += len(unit.Encoded)
	}

	return size
}

func TestPlan_GreedyPacking(t *testing.T) {
	t.Parallel()

	units := makeUnits(
		strings.Repeat("a", 30),
		strings.Repeat("b", 35),
	)

	batches := Plan(units, 100, 17)

	// 30 + 17 + 35 = 82 fits within 100.
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

func TestPlan_OverflowStartsNewBatch(t *testing.T) {
	t.Parallel()

	units := makeUnits(
		strings.Repeat("a", 30),
		strings.Repeat("b", 35),
		strings.Repeat("c", 80),
	)

	batches := Plan(units, 100, 17)

	// 82 + 17 + 80 exceeds 100, so the third unit opens a second batch.
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
	assert.Equal(t, units[2], batches[1][0])
}

func TestPlan_PreservesOrder(t *testing.T) {
	t.Parallel()

	units := makeUnits("one", "two", "three", "four", "five")

	batches := Plan(units, 9, 1)

	var flattened []*Unit
	for _, b := range batches {
		flattened = append(flattened, b...)
	}

	require.Len(t, flattened, len(units))

	for i, unit := range flattened {
		assert.Equal(t, units[i], unit)
	}
}

func TestPlan_SizeBound(t *testing.T) {
	t.Parallel()

	units := makeUnits(
		strings.Repeat("a", 40),
		strings.Repeat("b", 12),
		strings.Repeat("c", 55),
		strings.Repeat("d", 3),
		strings.Repeat("e", 60),
		strings.Repeat("f", 29),
	)

	const (
		budget       = 64
		delimiterLen = 5
	)

	for _, b := range Plan(units, budget, delimiterLen) {
		assert.LessOrEqual(t, batchSize(b, delimiterLen), budget)
	}
}

func TestPlan_OversizedUnitIsChunked(t *testing.T) {
	t.Parallel()

	sentences := []string{
		"The first sentence is fairly long and detailed.",
		"The second one follows it closely!",
		"Does a third one fit?",
		"A fourth rounds things out.",
	}

	units := makeUnits("short", strings.Join(sentences, " "), "tail")

	batches := Plan(units, 60, 3)

	// Every chunk must live alone in its batch.
	for _, b := range batches {
		if b[0].IsChunk() {
			assert.Len(t, b, 1)
		}
	}

	var chunks []*Unit
	for _, b := range batches {
		for _, unit := range b {
			if unit.IsChunk() {
				chunks = append(chunks, unit)
			}
		}
	}

	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.Equal(t, chunks[0].ChunkID, chunk.ChunkID)
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Equal(t, len(chunks), chunk.TotalChunks)
		assert.Equal(t, units[1], chunk.Parent)
	}

	// Rejoining the chunks must reproduce the original text modulo the
	// single-space joins.
	var parts []string
	for _, chunk := range chunks {
		parts = append(parts, chunk.Encoded)
	}

	assert.Equal(t, strings.Join(sentences, " "), strings.Join(parts, " "))
}

func TestSplitOversized_SentenceBoundaries(t *testing.T) {
	t.Parallel()

	unit := &Unit{
		Encoded: "One short sentence here. Another short sentence there. And a third one too.",
	}

	chunks := SplitOversized(unit, 40)

	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Encoded), 36)

		// Sentence-safe cuts end on terminal punctuation.
		last := chunk.Encoded[len(chunk.Encoded)-1]
		assert.Contains(t, ".!?", string(last))
	}
}

func TestSplitOversized_NoBoundaryForceSplits(t *testing.T) {
	t.Parallel()

	unit := &Unit{Encoded: strings.Repeat("x", 250)}

	chunks := SplitOversized(unit, 100)

	require.Greater(t, len(chunks), 1)

	var rejoined strings.Builder
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Encoded), 90)
		rejoined.WriteString(chunk.Encoded)
	}

	assert.Equal(t, unit.Encoded, rejoined.String())
}

func TestSplitOversized_RuneSafe(t *testing.T) {
	t.Parallel()

	unit := &Unit{Encoded: strings.Repeat("ありがとう", 40)}

	for _, chunk := range SplitOversized(unit, 100) {
		assert.True(t, utf8.ValidString(chunk.Encoded))
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "Mixed terminators",
			text: "Hello there. How are you? Fine!",
			want: []string{"Hello there.", "How are you?", "Fine!"},
		},
		{
			name: "Abbreviation-like dot not followed by space",
			text: "Version 1.5 is out. Enjoy.",
			want: []string{"Version 1.5 is out.", "Enjoy."},
		},
		{
			name: "Unterminated tail",
			text: "First part. trailing words",
			want: []string{"First part.", "trailing words"},
		},
		{
			name: "No boundaries",
			text: "just one stretch of words",
			want: []string{"just one stretch of words"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, splitSentences(tt.text))
		})
	}
}

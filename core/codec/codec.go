// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package codec reversibly encodes markup tags as inline textual placeholders so
that HTML can pass through a text-only translation channel, and decodes them
back afterwards.

A placeholder looks like <p_0> or </strong_3>: a sanitized tag name plus an
index that increases in document order. Encoding never fails (anything the tag
pattern does not match is plain text); decoding never fails either, degrading
to best-effort reconstruction when the upstream translator mangles a
placeholder.
*/
package codec

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	// tagPattern matches one opening, closing, or self-closing tag occurrence.
	// Anything it does not match is treated as plain text.
	tagPattern = regexp.MustCompile(`</?[A-Za-z][^>]*>`)

	// namePattern extracts the leading tag name from a raw tag.
	namePattern = regexp.MustCompile(`^</?\s*([A-Za-z][A-Za-z0-9]*)`)

	// sanitizePattern strips everything but letters and digits from a tag name.
	sanitizePattern = regexp.MustCompile(`[^a-z0-9]+`)

	// orphanPattern matches anything still shaped like a placeholder after all
	// known placeholders have been resolved.
	orphanPattern = regexp.MustCompile(`<\s*/?\s*[A-Za-z][A-Za-z0-9]*_[0-9]+\s*>`)
)

// Placeholder associates one placeholder token with the verbatim tag text it
// stands in for, attributes included.
type Placeholder struct {
	Token string
	Tag   string
}

// PlaceholderMap is the ordered set of placeholders produced by one [Encode]
// pass, in document order of first appearance.
type PlaceholderMap []Placeholder

// Encode scans markup left to right and replaces each tag occurrence with a
// placeholder built from the sanitized, lower-cased tag name plus a strictly
// increasing index starting at 0. Plain text between tags passes through
// unchanged.
func Encode(markup string) (string, PlaceholderMap) {
	var placeholders PlaceholderMap

	encoded := tagPattern.ReplaceAllStringFunc(markup, func(tag string) string {
		token := placeholderToken(tag, len(placeholders))
		placeholders = append(placeholders, Placeholder{Token: token, Tag: tag})

		return token
	})

	return encoded, placeholders
}

// placeholderToken builds the placeholder for one tag occurrence.
func placeholderToken(tag string, index int) string {
	name := "tag"
	if m := namePattern.FindStringSubmatch(tag); m != nil {
		name = sanitizePattern.ReplaceAllString(strings.ToLower(m[1]), "")
	}

	closing := ""
	if strings.HasPrefix(tag, "</") {
		closing = "/"
	}

	return "<" + closing + name + "_" + strconv.Itoa(index) + ">"
}

// Decode restores the original tags in text using the placeholder map from the
// matching Encode pass.
//
// The upstream translator may reformat placeholders, so each entry is tried in
// four spellings: exact, with a space inserted after '<', with a space inserted
// before '>', and with both. Entries are applied longest-token-first so a
// short placeholder never consumes the prefix of a longer one. A final cleanup
// pass resolves remaining placeholder-shaped tokens case-insensitively
// (ignoring embedded whitespace) against the map, demoting anything still
// unknown to a bare tag. Decode never returns an error.
func Decode(text string, placeholders PlaceholderMap) string {
	ordered := make(PlaceholderMap, len(placeholders))
	copy(ordered, placeholders)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Token) > len(ordered[j].Token)
	})

	for _, entry := range ordered {
		text = replaceFuzzy(text, entry.Token, entry.Tag)
	}

	return cleanupOrphans(text, placeholders)
}

// replaceFuzzy substitutes the first occurrence of token (or one of its
// space-mangled spellings) with tag.
func replaceFuzzy(text, token, tag string) string {
	inner := token[1 : len(token)-1]

	for _, variant := range []string{
		token,               // exact
		"< " + inner + ">",  // space after the opening angle bracket
		"<" + inner + " >",  // space before the closing angle bracket
		"< " + inner + " >", // spaces on both sides
	} {
		if strings.Contains(text, variant) {
			return strings.Replace(text, variant, tag, 1)
		}
	}

	return text
}

// cleanupOrphans resolves or demotes any leftover placeholder-shaped tokens.
// Mismatches are logged at debug level only; the output must still render as
// valid markup even when the upstream translator corrupts placeholders.
func cleanupOrphans(text string, placeholders PlaceholderMap) string {
	if !orphanPattern.MatchString(text) {
		return text
	}

	// Whitespace-free, lower-cased token -> original tag, first entry winning.
	normalized := make(map[string]string, len(placeholders))
	restoredTags := make(map[string]bool, len(placeholders))

	for _, entry := range placeholders {
		key := strings.ToLower(entry.Token)
		if _, ok := normalized[key]; !ok {
			normalized[key] = entry.Tag
		}

		restoredTags[entry.Tag] = true
	}

	return orphanPattern.ReplaceAllStringFunc(text, func(orphan string) string {
		// An already-restored tag can itself be shaped like a placeholder
		// (a literal <em_3> in the source document); leave it untouched.
		if restoredTags[orphan] {
			return orphan
		}

		compact := strings.ToLower(removeWhitespace(orphan))

		if tag, ok := normalized[compact]; ok {
			log.Debug().
				Str("token", orphan).
				Msg("Recovered mangled placeholder")

			return tag
		}

		demoted := demote(compact)

		log.Debug().
			Str("token", orphan).
			Str("demoted", demoted).
			Msg("Demoted unknown placeholder to a bare tag")

		return demoted
	})
}

// demote strips the numeric suffix from a compact placeholder token, yielding
// a bare tag like <strong> or </p>.
func demote(compact string) string {
	if i := strings.LastIndex(compact, "_"); i >= 0 {
		return compact[:i] + ">"
	}

	return compact
}

func removeWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}

		return r
	}, s)
}

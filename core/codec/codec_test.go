// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Scenario(t *testing.T) {
	t.Parallel()

	text, placeholders := Encode("<p>Hello <strong>world</strong>!</p>")

	assert.Equal(t, "<p_0>Hello <strong_1>world</strong_2>!</p_3>", text)
	require.Len(t, placeholders, 4)

	assert.Equal(t, Placeholder{Token: "<p_0>", Tag: "<p>"}, placeholders[0])
	assert.Equal(t, Placeholder{Token: "<strong_1>", Tag: "<strong>"}, placeholders[1])
	assert.Equal(t, Placeholder{Token: "</strong_2>", Tag: "</strong>"}, placeholders[2])
	assert.Equal(t, Placeholder{Token: "</p_3>", Tag: "</p>"}, placeholders[3])
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		markup string
	}{
		{"Simple", "<p>Hello <strong>world</strong>!</p>"},
		{"Attributes", `<a href="https://example.com" target="_blank">link</a>`},
		{"SelfClosing", "line one<br/>line two<br />line three"},
		{"UppercaseTags", `<DIV CLASS="box"><SPAN>text</SPAN></DIV>`},
		{"RepeatedTags", "<em>a</em> and <em>b</em> and <em>c</em>"},
		{"NoTags", "plain text without any markup"},
		{"LooseAngleBrackets", "3 < 5 and 7 > 2, honest"},
		{"Nested", "<ul><li>one</li><li><b>two</b></li></ul>"},
		{"Empty", ""},
		{"PlaceholderLookalike", "literal <em_3> in the source"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			text, placeholders := Encode(tc.markup)
			assert.Equal(t, tc.markup, Decode(text, placeholders))
		})
	}
}

func TestEncode_PlaceholderUniqueness(t *testing.T) {
	t.Parallel()

	_, placeholders := Encode(strings.Repeat("<span>x</span>", 20))

	seen := make(map[string]bool, len(placeholders))

	for _, entry := range placeholders {
		if seen[entry.Token] {
			t.Fatalf("duplicate placeholder %s", entry.Token)
		}

		seen[entry.Token] = true
	}

	require.Len(t, placeholders, 40)
}

func TestEncode_MalformedTagIsText(t *testing.T) {
	t.Parallel()

	// "<3" does not start a tag, so nothing is encoded.
	text, placeholders := Encode("I <3 markup")

	assert.Equal(t, "I <3 markup", text)
	assert.Empty(t, placeholders)
}

func TestDecode_SpacedVariants(t *testing.T) {
	t.Parallel()

	original := "<p>Hello <strong>world</strong>!</p>"
	_, placeholders := Encode(original)

	cases := []struct {
		name    string
		mangled string
	}{
		{"SpaceAfterOpen", "< p_0>Hallo < strong_1>Welt</strong_2>!</p_3>"},
		{"SpaceBeforeClose", "<p_0 >Hallo <strong_1 >Welt</strong_2>!</p_3>"},
		{"SpacesBothSides", "< p_0 >Hallo <strong_1>Welt< /strong_2 >!</p_3>"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			decoded := Decode(tc.mangled, placeholders)

			assert.NotContains(t, decoded, "_0")
			assert.Contains(t, decoded, "<p>")
			assert.Contains(t, decoded, "<strong>")
			assert.Contains(t, decoded, "</strong>")
			assert.Contains(t, decoded, "</p>")
		})
	}
}

func TestDecode_OrphanRecovery(t *testing.T) {
	t.Parallel()

	_, placeholders := Encode("<p>Hello</p>")

	// Case-mangled token still resolves against the map.
	decoded := Decode("<P_0>Bonjour</p_1>", placeholders)
	assert.Equal(t, "<p>Bonjour</p>", decoded)
}

func TestDecode_OrphanDemotion(t *testing.T) {
	t.Parallel()

	_, placeholders := Encode("<p>Hello</p>")

	// A mis-numbered token not present in the map is demoted to a bare tag
	// rather than surfaced as an error.
	decoded := Decode("<p_0>Bonjour <strong_7>le monde</p_1>", placeholders)
	assert.Equal(t, "<p>Bonjour <strong>le monde</p>", decoded)
}

func TestDecode_PrefixSafety(t *testing.T) {
	t.Parallel()

	// Build a document with more than ten tags so single- and double-digit
	// placeholder indices coexist; <i_1> must not consume the prefix of <i_12>.
	markup := strings.Repeat("<i>x</i>", 7)
	text, placeholders := Encode(markup)

	assert.Equal(t, markup, Decode(text, placeholders))
}

func TestDecode_Idempotent(t *testing.T) {
	t.Parallel()

	original := `<div id="a"><p>one</p><p>two</p></div>`
	text, placeholders := Encode(original)

	once := Decode(text, placeholders)
	twice := Decode(once, placeholders)

	assert.Equal(t, original, once)
	assert.Equal(t, once, twice)
}

func TestDecode_AttributesVerbatim(t *testing.T) {
	t.Parallel()

	original := `<a href="/x?q=1&amp;r=2" data-v='ok'>go</a>`
	text, placeholders := Encode(original)

	require.Len(t, placeholders, 2)
	assert.Equal(t, `<a href="/x?q=1&amp;r=2" data-v='ok'>`, placeholders[0].Tag)
	assert.Equal(t, original, Decode(text, placeholders))
}

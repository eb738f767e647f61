// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package page adapts a full HTML document to the translation pipeline.

It discovers the translatable block elements of a parsed document, exposes
each one as a fragment the dispatcher can write translations back into, and
renders the mutated document out again. Elements the pipeline fails on keep
their original markup.
*/
package page

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"codeberg.org/linguafe/linguafe/core/dispatch"
)

// translatableSelector matches the block-level text-bearing elements worth
// translating. Inline tags inside them travel through the placeholder codec
// as part of the fragment.
const translatableSelector = "p, h1, h2, h3, h4, h5, h6, li, dt, dd, td, th, caption, figcaption, blockquote, summary"

// skippedAncestors excludes elements whose content must never be reflowed.
const skippedAncestors = "pre, code, script, style, textarea"

// StateAttr is set on processed elements so callers can style or retry them.
const StateAttr = "data-linguafe"

// Attribute values written by Mark.
const (
	stateTranslated = "translated"
	stateFailed     = "failed"
)

// Document wraps a parsed HTML page and its discovered fragments.
type Document struct {
	doc       *goquery.Document
	fragments []*ElementFragment
}

// Parse reads an HTML document and discovers its translatable fragments in
// document order.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML document: %w", err)
	}

	d := &Document{doc: doc}

	doc.Find(translatableSelector).Each(func(_ int, s *goquery.Selection) {
		if !translatable(s) {
			return
		}

		markup, err := s.Html()
		if err != nil {
			return
		}

		d.fragments = append(d.fragments, &ElementFragment{
			selection: s,
			content:   markup,
		})
	})

	return d, nil
}

// translatable filters out nested blocks, protected ancestors and elements
// without any text of their own.
func translatable(s *goquery.Selection) bool {
	// Translate leaf blocks only; a list item holding paragraphs is
	// covered by the paragraphs themselves.
	if s.Find(translatableSelector).Length() > 0 {
		return false
	}

	if s.ParentsFiltered(skippedAncestors).Length() > 0 {
		return false
	}

	return strings.TrimSpace(s.Text()) != ""
}

// Fragments returns the document's translatable fragments as pipeline
// fragments, in document order.
func (d *Document) Fragments() []dispatch.Fragment {
	frags := make([]dispatch.Fragment, len(d.fragments))
	for i, frag := range d.fragments {
		frags[i] = frag
	}

	return frags
}

// Render serializes the document, including any applied translations.
func (d *Document) Render() (string, error) {
	var b strings.Builder

	for _, node := range d.doc.Nodes {
		if err := html.Render(&b, node); err != nil {
			return "", fmt.Errorf("failed to render HTML document: %w", err)
		}
	}

	return b.String(), nil
}

// ElementFragment exposes one page element to the dispatcher.
type ElementFragment struct {
	selection *goquery.Selection
	content   string
}

// Content returns the element's inner HTML.
func (f *ElementFragment) Content() string {
	return f.content
}

// SetContent replaces the element's inner HTML with the translated markup.
func (f *ElementFragment) SetContent(markup string) {
	f.content = markup
	f.selection.SetHtml(markup)
}

// Mark records the element's terminal state in an attribute on the element
// itself, leaving failed content untouched.
func (f *ElementFragment) Mark(flag dispatch.Flag) {
	state := stateTranslated
	if flag == dispatch.FlagFailed {
		state = stateFailed
	}

	f.selection.SetAttr(StateAttr, state)
}

// Copyright 2024 - 2026, the LinguaFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package dispatch orchestrates the translation pipeline: placeholder encoding,
cache lookup, batch planning, rate-limited completion calls, response
splitting, chunk reassembly and write-back into caller-owned fragments.

Every fragment submitted to a pass terminates either translated or failed.
Failed fragments keep their original markup and may be resubmitted in a later
pass.
*/
package dispatch

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"codeberg.org/linguafe/linguafe/core/batch"
	"codeberg.org/linguafe/linguafe/core/codec"
	"codeberg.org/linguafe/linguafe/core/completion"
	"codeberg.org/linguafe/linguafe/core/ratequeue"
	"codeberg.org/linguafe/linguafe/core/transcache"
)

var (
	errShortResponse    = errors.New("batch response returned fewer segments than units sent")
	errEmptySegment     = errors.New("batch response segment was empty")
	errIncompleteChunks = errors.New("not all chunks of the fragment were translated")
)

// Flag marks the terminal state written back onto a fragment.
type Flag int

// Fragment state flags.
const (
	FlagTranslated Flag = iota
	FlagFailed
)

// Fragment is the minimal capability surface the pipeline needs from a
// translatable container. Page elements, API payload entries and test fakes
// all adapt to it; the pipeline itself carries no DOM or transport coupling.
type Fragment interface {
	Content() string
	SetContent(string)
	Mark(Flag)
}

// Status describes the per-fragment outcome of one translation pass.
type Status string

// Per-fragment outcomes.
const (
	StatusTranslated Status = "translated"
	StatusCached     Status = "cached"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Outcome reports what happened to one fragment during a pass. Outcomes are
// returned in fragment submission order.
type Outcome struct {
	Status Status
	Err    error
}

// DefaultDelimiter separates batch segments on the wire. The surrounding
// newlines keep models from merging adjacent segments into one sentence.
const DefaultDelimiter = "\n<<<>>>\n"

// defaultSplitPattern tolerates the model inserting whitespace around the
// default delimiter or repeating its angle-bracket characters.
var defaultSplitPattern = regexp.MustCompile(`\s*<{2,}>{2,}\s*`)

// Built-in prompt templates. {{targetLang}} and {{delimiter}} are substituted
// at send time.
const (
	DefaultSystemPrompt = `You are a professional translator. Translate the user's text into {{targetLang}}. ` +
		`The text contains placeholder tokens such as <p_0> or </strong_3>; keep every placeholder exactly as written, ` +
		`positioned to match its role in the translated sentence. ` +
		`Only return the translated text without any explanations.`

	DefaultBatchPrompt = DefaultSystemPrompt + "\n" +
		`The input consists of several independent segments separated by the literal delimiter {{delimiter}}. ` +
		`Translate each segment independently, keep the segments in order, and reproduce the delimiter exactly once between them.`
)

// Settings configures one translation pass. The zero value is not usable;
// TargetLang must be set. All other fields fall back to package defaults.
type Settings struct {
	// TargetLang is the language to translate into, as a BCP 47 tag or a
	// plain language name.
	TargetLang string

	// Model overrides the client's default model for this pass.
	Model string

	// SystemPrompt and BatchPrompt override the built-in templates.
	SystemPrompt string
	BatchPrompt  string

	// BatchBudget bounds the byte size of one batched request.
	BatchBudget int

	// Delimiter overrides the default segment separator. Custom delimiters
	// are split exactly; only the default one gets fuzzy splitting.
	Delimiter string

	// Sampling overrides passed through to the completion client.
	Temperature *float64
	MaxTokens   *int
}

// resolved is a Settings value with defaults applied and the target language
// normalized for both prompting and cache keying.
type resolved struct {
	Settings

	// langKey is the canonical tag used in cache keys, so "DE" and "de"
	// share entries.
	langKey string

	// langName is the human-readable language name used in prompts.
	langName string
}

func (s Settings) resolve() resolved {
	r := resolved{Settings: s, langKey: s.TargetLang, langName: s.TargetLang}

	if tag, err := language.Parse(s.TargetLang); err == nil {
		r.langKey = tag.String()
		r.langName = display.English.Tags().Name(tag)
	}

	if r.BatchBudget <= 0 {
		r.BatchBudget = batch.DefaultBudget
	}

	if r.Delimiter == "" {
		r.Delimiter = DefaultDelimiter
	}

	if r.SystemPrompt == "" {
		r.SystemPrompt = DefaultSystemPrompt
	}

	if r.BatchPrompt == "" {
		r.BatchPrompt = DefaultBatchPrompt
	}

	return r
}

func (r resolved) prompt(batched bool) string {
	template := r.SystemPrompt
	if batched {
		template = r.BatchPrompt
	}

	prompt := strings.ReplaceAll(template, "{{targetLang}}", r.langName)

	return strings.ReplaceAll(prompt, "{{delimiter}}", strings.TrimSpace(r.Delimiter))
}

// splitSegments cuts a batch response back into per-unit segments.
func (r resolved) splitSegments(response string) []string {
	if r.Delimiter == DefaultDelimiter {
		return defaultSplitPattern.Split(response, -1)
	}

	return strings.Split(response, r.Delimiter)
}

// Dispatcher drives translation passes over one session's shared cache,
// rate queue and completion client. Construct with New; methods are safe
// for concurrent use.
type Dispatcher struct {
	cache  *transcache.Cache
	queue  *ratequeue.Queue
	client *completion.Client
}

// New builds a Dispatcher from its collaborators. All three are owned by the
// caller and may be shared across dispatchers.
func New(cache *transcache.Cache, queue *ratequeue.Queue, client *completion.Client) *Dispatcher {
	return &Dispatcher{
		cache:  cache,
		queue:  queue,
		client: client,
	}
}

// ConfigureRate adjusts the outbound request rate for subsequent dispatches.
func (d *Dispatcher) ConfigureRate(rps float64) {
	d.queue.UpdateRPS(rps)
}

// ClearCache empties the session's translation cache.
func (d *Dispatcher) ClearCache() {
	d.cache.Clear()
}

// TranslateFragments runs one full pass over the given fragments and returns
// one Outcome per fragment, in submission order.
//
// Empty or whitespace-only fragments are skipped. Cached fragments are
// applied without network calls. The rest are batched, sent through the rate
// queue, and applied positionally from the split response. A failed batch
// request falls back to per-fragment requests so one bad unit cannot sink
// its batch-mates.
func (d *Dispatcher) TranslateFragments(ctx context.Context, frags []Fragment, settings Settings) []Outcome {
	p := &pass{
		dispatcher: d,
		settings:   settings.resolve(),
		outcomes:   make([]Outcome, len(frags)),
		fragments:  make(map[*batch.Unit]fragmentSlot, len(frags)),
		aggregates: make(map[string]*chunkAggregate),
	}

	pending := p.prepare(frags)

	for _, b := range batch.Plan(pending, p.settings.BatchBudget, len(p.settings.Delimiter)) {
		p.sendBatch(ctx, b)
	}

	// Chunk groups with failed members resolve to a failed parent.
	p.failIncompleteAggregates()

	return p.outcomes
}

// fragmentSlot ties a planned unit back to its fragment and outcome index.
type fragmentSlot struct {
	frag  Fragment
	index int
}

// chunkAggregate collects the translated pieces of one split oversized
// fragment until all slots are filled.
type chunkAggregate struct {
	parent    *batch.Unit
	slot      fragmentSlot
	parts     []string
	remaining int
	failed    bool
}

// pass holds the state of one TranslateFragments invocation.
type pass struct {
	dispatcher *Dispatcher
	settings   resolved

	mu         sync.Mutex
	outcomes   []Outcome
	fragments  map[*batch.Unit]fragmentSlot
	aggregates map[string]*chunkAggregate
}

// prepare filters, encodes and cache-checks the fragments, returning the
// units that still need a network round trip.
func (p *pass) prepare(frags []Fragment) []*batch.Unit {
	var pending []*batch.Unit

	for i, frag := range frags {
		content := frag.Content()

		if strings.TrimSpace(content) == "" {
			p.outcomes[i] = Outcome{Status: StatusSkipped}

			continue
		}

		encoded, placeholders := codec.Encode(content)

		if cached, ok := p.dispatcher.cache.Get(encoded, p.settings.langKey); ok {
			frag.SetContent(codec.Decode(cached, placeholders))
			frag.Mark(FlagTranslated)
			p.outcomes[i] = Outcome{Status: StatusCached}

			continue
		}

		unit := &batch.Unit{
			Source:       content,
			Encoded:      encoded,
			Placeholders: placeholders,
		}

		p.fragments[unit] = fragmentSlot{frag: frag, index: i}
		pending = append(pending, unit)
	}

	return pending
}

// sendBatch performs one rate-limited request for a planned batch and applies
// its response. Transport failures trigger the per-unit fallback.
func (p *pass) sendBatch(ctx context.Context, units []*batch.Unit) {
	texts := make([]string, len(units))
	for i, unit := range units {
		texts[i] = unit.Encoded
	}

	batched := len(units) > 1

	response, err := p.complete(ctx, p.settings.prompt(batched), strings.Join(texts, p.settings.Delimiter))
	if err != nil {
		log.Warn().
			Err(err).
			Int("units", len(units)).
			Msg("Batch translation failed, falling back to per-fragment requests")

		p.fallback(ctx, units)

		return
	}

	p.applySegments(units, p.settings.splitSegments(response))
}

// fallback retries every unit of a failed batch individually. Each unit still
// goes through the rate queue, and one unit's failure never affects another.
func (p *pass) fallback(ctx context.Context, units []*batch.Unit) {
	var group errgroup.Group

	for _, unit := range units {
		group.Go(func() error {
			response, err := p.complete(ctx, p.settings.prompt(false), unit.Encoded)
			if err != nil {
				p.fail(unit, err)

				return nil
			}

			if segment := strings.TrimSpace(response); segment != "" {
				p.apply(unit, segment)
			} else {
				p.fail(unit, errEmptySegment)
			}

			return nil
		})
	}

	_ = group.Wait()
}

// complete sends one request through the rate queue.
func (p *pass) complete(ctx context.Context, system, user string) (string, error) {
	var response string

	err := p.dispatcher.queue.Do(ctx, func(ctx context.Context) error {
		var err error

		response, err = p.dispatcher.client.Complete(ctx, completion.Request{
			Model:       p.settings.Model,
			System:      system,
			User:        user,
			Temperature: p.settings.Temperature,
			MaxTokens:   p.settings.MaxTokens,
		})

		return err
	})

	return response, err
}

// applySegments matches response segments to units positionally. Trailing
// units without a segment are failed, never silently dropped.
func (p *pass) applySegments(units []*batch.Unit, segments []string) {
	for i, unit := range units {
		if i >= len(segments) {
			p.fail(unit, errShortResponse)

			continue
		}

		segment := strings.TrimSpace(segments[i])
		if segment == "" {
			p.fail(unit, errEmptySegment)

			continue
		}

		p.apply(unit, segment)
	}
}

// apply records a translated segment: chunk units feed their aggregate,
// whole units are cached, decoded and written back immediately.
func (p *pass) apply(unit *batch.Unit, segment string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if unit.IsChunk() {
		p.applyChunkLocked(unit, segment)

		return
	}

	slot, ok := p.fragments[unit]
	if !ok {
		return
	}

	p.dispatcher.cache.Set(unit.Encoded, p.settings.langKey, segment)

	slot.frag.SetContent(codec.Decode(segment, unit.Placeholders))
	slot.frag.Mark(FlagTranslated)
	p.outcomes[slot.index] = Outcome{Status: StatusTranslated}
}

// applyChunkLocked stores one chunk's translation and resolves the aggregate
// once every chunk has arrived: parts are joined in chunk order with a single
// space and cached under the original unsplit text.
func (p *pass) applyChunkLocked(unit *batch.Unit, segment string) {
	agg := p.aggregates[unit.ChunkID]
	if agg == nil {
		slot, ok := p.fragments[unit.Parent]
		if !ok {
			return
		}

		agg = &chunkAggregate{
			parent:    unit.Parent,
			slot:      slot,
			parts:     make([]string, unit.TotalChunks),
			remaining: unit.TotalChunks,
		}
		p.aggregates[unit.ChunkID] = agg
	}

	if agg.failed {
		return
	}

	if agg.parts[unit.ChunkIndex] == "" {
		agg.remaining--
	}

	agg.parts[unit.ChunkIndex] = segment

	if agg.remaining > 0 {
		return
	}

	joined := strings.Join(agg.parts, " ")

	p.dispatcher.cache.Set(agg.parent.Encoded, p.settings.langKey, joined)

	agg.slot.frag.SetContent(codec.Decode(joined, agg.parent.Placeholders))
	agg.slot.frag.Mark(FlagTranslated)
	p.outcomes[agg.slot.index] = Outcome{Status: StatusTranslated}

	delete(p.aggregates, unit.ChunkID)
}

// fail marks a unit's fragment failed. For chunk units the whole group fails,
// since a partial reassembly would garble the fragment.
func (p *pass) fail(unit *batch.Unit, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := unit
	if unit.IsChunk() {
		target = unit.Parent

		if agg := p.aggregates[unit.ChunkID]; agg != nil {
			agg.failed = true
		} else {
			p.aggregates[unit.ChunkID] = &chunkAggregate{failed: true}
		}
	}

	slot, ok := p.fragments[target]
	if !ok {
		return
	}

	if existing := p.outcomes[slot.index]; existing.Status == StatusFailed || existing.Status == StatusTranslated {
		return
	}

	slot.frag.Mark(FlagFailed)
	p.outcomes[slot.index] = Outcome{Status: StatusFailed, Err: err}
}

// failIncompleteAggregates settles chunk groups that never filled all slots.
func (p *pass) failIncompleteAggregates() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, agg := range p.aggregates {
		delete(p.aggregates, id)

		if agg.parent == nil {
			continue
		}

		slot, ok := p.fragments[agg.parent]
		if !ok {
			continue
		}

		if p.outcomes[slot.index].Status == "" {
			slot.frag.Mark(FlagFailed)
			p.outcomes[slot.index] = Outcome{Status: StatusFailed, Err: errIncompleteChunks}
		}
	}
}

// Package pipeline runs the curation and categorization flows: extraction,
// knowledge base lookup, prompt composition, generation and parsing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/curador/internal/composer"
	"github.com/kalambet/curador/internal/document"
	"github.com/kalambet/curador/internal/engine"
	"github.com/kalambet/curador/internal/retrieval"
	"github.com/kalambet/curador/internal/schema"
)

// ErrInsufficientText is returned when the extracted text is too short to
// analyze.
var ErrInsufficientText = errors.New("texto insuficiente para análise")

// State is a step of a curation or categorization flow.
type State string

const (
	StateReceived          State = "RECEIVED"
	StateExtracted         State = "EXTRACTED"
	StateContextGathered   State = "CONTEXT_GATHERED"
	StateSchemaBuilt       State = "SCHEMA_BUILT"
	StatePrompted          State = "PROMPTED"
	StateGenerated         State = "GENERATED"
	StateParsed            State = "PARSED"
	StateDone              State = "DONE"
	StateRejectedShortText State = "REJECTED_SHORT_TEXT"
	StateFailed            State = "FAILED"
)

// Operation names used in logs and metrics.
const (
	OpCurate     = "curate"
	OpCategorize = "categorize"
)

// Request is a document submitted for curation or categorization.
type Request struct {
	EncodedContent string   `json:"encoded_content"`
	ContentType    string   `json:"content_type"`
	Headers        []string `json:"headers"`
	Category       string   `json:"category,omitempty"`
}

// CategoryResult is the outcome of Categorize.
type CategoryResult struct {
	Category string `json:"category"`
}

// TextExtractor turns an encoded payload into clean text.
type TextExtractor interface {
	Extract(encoded string, kind document.Kind) (document.Document, error)
}

// ContextRetriever looks up prior knowledge for a document. It never fails.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query string, limit int) retrieval.Digest
}

// Observer receives flow events, typically to feed metrics.
type Observer interface {
	ObserveRequest(op, state string)
	ObserveRetrieval(outcome string)
	ObserveGeneration(op string, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, string)                  {}
func (nopObserver) ObserveRetrieval(string)                        {}
func (nopObserver) ObserveGeneration(string, time.Duration, error) {}

// Options tunes a Curator. Zero numeric fields take the defaults.
type Options struct {
	TopK                int
	QueryChars          int
	CurateMinChars      int
	CategorizeMinChars  int
	CurateMaxTokens     int
	CategorizeMaxTokens int
	// LenientSchema returns the parsed object as the model wrote it. The
	// zero value reshapes and validates model output against the target.
	LenientSchema bool
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TopK:                retrieval.DefaultLimit,
		QueryChars:          retrieval.DefaultQueryChars,
		CurateMinChars:      150,
		CategorizeMinChars:  100,
		CurateMaxTokens:     4000,
		CategorizeMaxTokens: 50,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.QueryChars <= 0 {
		o.QueryChars = d.QueryChars
	}
	if o.CurateMinChars <= 0 {
		o.CurateMinChars = d.CurateMinChars
	}
	if o.CategorizeMinChars <= 0 {
		o.CategorizeMinChars = d.CategorizeMinChars
	}
	if o.CurateMaxTokens <= 0 {
		o.CurateMaxTokens = d.CurateMaxTokens
	}
	if o.CategorizeMaxTokens <= 0 {
		o.CategorizeMaxTokens = d.CategorizeMaxTokens
	}
	return o
}

// Curator orchestrates both flows. It holds no per-request state and is
// safe for concurrent use.
type Curator struct {
	extractor TextExtractor
	retriever ContextRetriever
	composer  *composer.Composer
	engine    engine.Engine
	observer  Observer
	opts      Options
}

// NewCurator wires a Curator. retriever may be nil, in which case every
// request sees the unconfigured digest.
func NewCurator(
	extractor TextExtractor,
	retriever ContextRetriever,
	comp *composer.Composer,
	eng engine.Engine,
	opts Options,
) *Curator {
	return &Curator{
		extractor: extractor,
		retriever: retriever,
		composer:  comp,
		engine:    eng,
		observer:  nopObserver{},
		opts:      opts.withDefaults(),
	}
}

// SetObserver installs an event observer.
func (c *Curator) SetObserver(o Observer) {
	if o != nil {
		c.observer = o
	}
}

// Engine returns the generation engine.
func (c *Curator) Engine() engine.Engine { return c.engine }

// Partition returns the rule-set partition prompts are composed from.
func (c *Curator) Partition() composer.Partition { return c.composer.Partition() }

// flow tracks one request through its states.
type flow struct {
	c     *Curator
	op    string
	id    string
	start time.Time
}

func (c *Curator) begin(op string) *flow {
	f := &flow{c: c, op: op, id: uuid.NewString(), start: time.Now()}
	f.enter(StateReceived)
	return f
}

func (f *flow) enter(s State, args ...any) {
	attrs := append([]any{"req_id", f.id, "op", f.op, "state", string(s), "elapsed_ms", time.Since(f.start).Milliseconds()}, args...)
	slog.Debug("curation.state", attrs...)
}

// finish moves to a terminal state and counts it.
func (f *flow) finish(s State, err error) {
	if err != nil {
		f.enter(s, "error", err)
	} else {
		f.enter(s)
	}
	f.c.observer.ObserveRequest(f.op, string(s))
}

func (f *flow) fail(err error) error {
	f.finish(StateFailed, err)
	return err
}

// Curate extracts metadata for req.Headers and renders a curation verdict.
func (c *Curator) Curate(ctx context.Context, req Request) (schema.Values, error) {
	f := c.begin(OpCurate)

	doc, err := c.extract(req)
	if err != nil {
		return schema.Values{}, f.fail(err)
	}
	f.enter(StateExtracted, "chars", doc.Length)

	if doc.Length < c.opts.CurateMinChars {
		if schema.RequestsCuration(req.Headers) {
			f.finish(StateRejectedShortText, nil)
			return schema.ShortTextRejection(), nil
		}
		err := fmt.Errorf("%w: %d characters, need %d", ErrInsufficientText, doc.Length, c.opts.CurateMinChars)
		f.finish(StateRejectedShortText, err)
		return schema.Values{}, err
	}

	digest := c.retrieve(ctx, doc.Text)
	f.enter(StateContextGathered, "outcome", digest.Outcome.String(), "hits", digest.Hits)

	target := schema.Build(req.Headers)
	f.enter(StateSchemaBuilt, "keys", target.Len())

	prompt := c.composer.Compose(req.Category, target, digest, doc.Text)
	f.enter(StatePrompted, "domain", string(c.composer.Partition().RuleSet(req.Category).Tag))

	raw, err := c.generate(ctx, OpCurate, engine.Request{
		System:    prompt.System,
		User:      prompt.User,
		MaxTokens: c.opts.CurateMaxTokens,
		JSON:      true,
	})
	if err != nil {
		return schema.Values{}, f.fail(err)
	}
	f.enter(StateGenerated, "output_chars", len(raw))

	values, err := c.parse(raw, target)
	if err != nil {
		slog.Warn("curation.malformed_output", "req_id", f.id, "error", err)
		return schema.Values{}, f.fail(err)
	}
	f.enter(StateParsed)

	f.finish(StateDone, nil)
	return values, nil
}

func (c *Curator) parse(raw string, target schema.Target) (schema.Values, error) {
	parsed, err := engine.ParseModelJSON(raw)
	if err != nil {
		return schema.Values{}, err
	}
	if c.opts.LenientSchema {
		return parsed, nil
	}
	values, rep, err := schema.Conform(target, parsed)
	if err != nil {
		return schema.Values{}, engine.Malformed(raw, err)
	}
	if len(rep.Dropped) > 0 || len(rep.Filled) > 0 {
		slog.Debug("curation.conformed", "dropped", rep.Dropped, "filled", rep.Filled)
	}
	return values, nil
}

// Categorize classifies the document into one tag of the partition.
func (c *Curator) Categorize(ctx context.Context, req Request) (CategoryResult, error) {
	f := c.begin(OpCategorize)

	doc, err := c.extract(req)
	if err != nil {
		return CategoryResult{}, f.fail(err)
	}
	f.enter(StateExtracted, "chars", doc.Length)

	if doc.Length < c.opts.CategorizeMinChars {
		err := fmt.Errorf("%w: %d characters, need %d", ErrInsufficientText, doc.Length, c.opts.CategorizeMinChars)
		f.finish(StateRejectedShortText, err)
		return CategoryResult{}, err
	}

	prompt := c.composer.ComposeCategorize(doc.Text)
	f.enter(StatePrompted)

	raw, err := c.generate(ctx, OpCategorize, engine.Request{
		System:    prompt.System,
		User:      prompt.User,
		MaxTokens: c.opts.CategorizeMaxTokens,
	})
	if err != nil {
		return CategoryResult{}, f.fail(err)
	}
	f.enter(StateGenerated, "output", strings.TrimSpace(raw))

	category := c.composer.Partition().InferCategory(raw, doc.Text)
	f.finish(StateDone, nil)
	slog.Info("categorize.done", "req_id", f.id, "category", string(category))
	return CategoryResult{Category: string(category)}, nil
}

func (c *Curator) extract(req Request) (document.Document, error) {
	kind, err := document.ParseKind(req.ContentType)
	if err != nil {
		return document.Document{}, err
	}
	return c.extractor.Extract(req.EncodedContent, kind)
}

func (c *Curator) retrieve(ctx context.Context, text string) retrieval.Digest {
	var d retrieval.Digest
	if c.retriever == nil {
		d = retrieval.UnconfiguredDigest()
	} else {
		d = c.retriever.RetrieveContext(ctx, truncate(text, c.opts.QueryChars), c.opts.TopK)
	}
	c.observer.ObserveRetrieval(d.Outcome.String())
	return d
}

func (c *Curator) generate(ctx context.Context, op string, req engine.Request) (string, error) {
	start := time.Now()
	raw, err := c.engine.Generate(ctx, req)
	c.observer.ObserveGeneration(op, time.Since(start), err)
	return raw, err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Sentinel digests. They are prompt text, so they are written in the prompt language.
const (
	SentinelUnconfigured = "Nenhum contexto prévio disponível."
	SentinelEmpty        = "Nenhum contexto prévio relevante encontrado."
	SentinelFailed       = "Erro ao acessar o banco de conhecimento."
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultLimit        = 3
	DefaultQueryChars   = 1000
	DefaultSnippetChars = 500
)

// Outcome classifies a retrieval attempt.
type Outcome int

const (
	OutcomeUnconfigured Outcome = iota
	OutcomeEmpty
	OutcomeFound
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnconfigured:
		return "unconfigured"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFound:
		return "found"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Digest is the rendered retrieval result handed to the prompt composer.
type Digest struct {
	Text    string
	Outcome Outcome
	Hits    int
}

// HadContext reports whether the digest carries real prior documents.
func (d Digest) HadContext() bool { return d.Outcome == OutcomeFound }

// UnconfiguredDigest is the digest of a service without a knowledge base.
func UnconfiguredDigest() Digest {
	return Digest{Text: SentinelUnconfigured, Outcome: OutcomeUnconfigured}
}

// Options tunes a Retriever.
type Options struct {
	Collection   string
	QueryChars   int
	SnippetChars int
}

// Retriever embeds a query and renders the nearest knowledge base documents.
type Retriever struct {
	embedder TextEmbedder
	store    VectorStore
	opts     Options
}

// NewRetriever creates a Retriever. A nil embedder or store yields a
// retriever that always reports OutcomeUnconfigured.
func NewRetriever(embedder TextEmbedder, store VectorStore, opts Options) *Retriever {
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.QueryChars <= 0 {
		opts.QueryChars = DefaultQueryChars
	}
	if opts.SnippetChars <= 0 {
		opts.SnippetChars = DefaultSnippetChars
	}
	return &Retriever{embedder: embedder, store: store, opts: opts}
}

// Collection returns the searched collection.
func (r *Retriever) Collection() string {
	if r == nil {
		return ""
	}
	return r.opts.Collection
}

// Configured reports whether the retriever can reach a knowledge base.
func (r *Retriever) Configured() bool {
	return r != nil && r.embedder != nil && r.store != nil
}

// RetrieveContext never fails: every problem is folded into a sentinel digest
// and logged.
func (r *Retriever) RetrieveContext(ctx context.Context, query string, limit int) Digest {
	if !r.Configured() {
		return UnconfiguredDigest()
	}
	query = strings.TrimSpace(truncate(query, r.opts.QueryChars))
	if query == "" {
		return Digest{Text: SentinelEmpty, Outcome: OutcomeEmpty}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	hits, err := r.Search(ctx, query, limit)
	if err != nil {
		slog.Warn("retrieval.failed", "collection", r.opts.Collection, "error", err)
		return Digest{Text: SentinelFailed, Outcome: OutcomeFailed}
	}

	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		if s := r.snippet(h.Payload); s != "" {
			lines = append(lines, "- "+s)
		}
	}
	if len(lines) == 0 {
		return Digest{Text: SentinelEmpty, Outcome: OutcomeEmpty}
	}
	return Digest{Text: strings.Join(lines, "\n"), Outcome: OutcomeFound, Hits: len(lines)}
}

// Search embeds query as is and returns the nearest records.
func (r *Retriever) Search(ctx context.Context, query string, limit int) ([]ScoredRecord, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.store.Search(ctx, r.opts.Collection, vec, limit)
}

// snippet joins the descriptive fields present, falling back to the text.
func (r *Retriever) snippet(p Payload) string {
	var parts []string
	for _, f := range []string{p.Title, p.Summary, p.Conclusion} {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	s := strings.Join(parts, " | ")
	if s == "" {
		s = strings.TrimSpace(p.Text)
	}
	return truncate(s, r.opts.SnippetChars)
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

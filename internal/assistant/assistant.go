package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/medcontext-mcp/internal/coref"
	"github.com/dshills/medcontext-mcp/internal/corpus"
	"github.com/dshills/medcontext-mcp/internal/llm"
	"github.com/dshills/medcontext-mcp/internal/metrics"
	"github.com/dshills/medcontext-mcp/internal/router"
	"github.com/dshills/medcontext-mcp/internal/searcher"
	"github.com/dshills/medcontext-mcp/internal/session"
	"github.com/dshills/medcontext-mcp/internal/symptom"
	"github.com/dshills/medcontext-mcp/pkg/types"
)

// Retrieval depths
const (
	DrugSpecificK = 1
	CompareK      = 4
	SuggestK      = 4
)

var ErrMissingDrug = errors.New("two drug names are required")

// Retriever returns fused documents for a query
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]types.SearchResult, error)
}

// Deps are the collaborators an Assistant dispatches to
type Deps struct {
	Records     []types.DrugRecord
	Names       *corpus.NameSet
	Dense       searcher.DenseSearcher
	Hybrid      Retriever
	Symptoms    *symptom.Matcher
	Generator   llm.Generator
	Sessions    session.Store // nil means an in-memory store
	Metrics     *metrics.Metrics
	SymptomTopK int
}

// Answer is the outcome of one conversational turn
type Answer struct {
	Query         string // normalized query as asked
	ResolvedQuery string // query after pronoun resolution
	Resolved      bool
	Route         router.Kind
	Drug          string // last mentioned drug in the session after this turn
	Text          string
	Documents     []types.SearchResult
	Candidates    []types.ScoredCandidate
	FollowUps     []string
}

// Reply is the outcome of a comparison or suggestion request
type Reply struct {
	Text      string
	Documents []types.SearchResult
}

// Assistant runs the question answering pipeline over read-only indices
type Assistant struct {
	records    []types.DrugRecord
	names      *corpus.NameSet
	conditions []string
	dense      searcher.DenseSearcher
	hybrid     Retriever
	symptoms   *symptom.Matcher
	gen        llm.Generator
	sessions   session.Store
	metrics    *metrics.Metrics
	topK       int
	logger     *slog.Logger
}

// New creates an Assistant. Names and Symptoms are derived from Records
// when not supplied.
func New(d Deps) *Assistant {
	if d.Names == nil {
		d.Names = corpus.NewNameSet(d.Records)
	}
	if d.Symptoms == nil {
		d.Symptoms = symptom.NewMatcher(d.Records)
	}
	if d.Sessions == nil {
		d.Sessions = session.NewMemoryStore()
	}
	if d.SymptomTopK <= 0 {
		d.SymptomTopK = symptom.DefaultTopK
	}

	return &Assistant{
		records:    d.Records,
		names:      d.Names,
		conditions: corpus.Conditions(d.Records),
		dense:      d.Dense,
		hybrid:     d.Hybrid,
		symptoms:   d.Symptoms,
		gen:        d.Generator,
		sessions:   d.Sessions,
		metrics:    d.Metrics,
		topK:       d.SymptomTopK,
		logger:     slog.Default().With("component", "assistant"),
	}
}

// Ask answers query within sessionID. A drug named in the query becomes
// the session's last mentioned drug before pronouns are resolved.
func (a *Assistant) Ask(ctx context.Context, sessionID, query string) (*Answer, error) {
	q := corpus.NormalizeQuery(query)
	if q == "" {
		a.metrics.ObserveQuery(string(router.KindEmpty))
		return &Answer{Route: router.KindEmpty}, nil
	}

	cc, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if cc.Remember(a.names.Detect(q)) {
		if err := a.sessions.Put(ctx, sessionID, cc); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}

	resolved, changed := coref.Resolve(q, cc)
	route := router.Classify(resolved, a.names)
	a.metrics.ObserveQuery(string(route.Kind))

	a.logger.Debug("routed query", "session", sessionID, "route", route.Kind, "drug", route.Drug, "resolved", changed)

	ans := &Answer{
		Query:         q,
		ResolvedQuery: resolved,
		Resolved:      changed,
		Route:         route.Kind,
		Drug:          cc.LastMentionedDrug,
		FollowUps:     FollowUps(cc.LastMentionedDrug),
	}

	switch route.Kind {
	case router.KindDrugSpecific:
		docs, err := a.dense.Search(ctx, resolved, DrugSpecificK, route.Drug)
		if err != nil {
			return nil, a.upstream(err)
		}
		ans.Documents = docs
		ans.Text, err = a.answerFromDocuments(ctx, resolved, docs)
		if err != nil {
			return nil, err
		}

	case router.KindExplanation:
		prompt, err := llm.ExplanationPrompt(route.Term)
		if err != nil {
			return nil, err
		}
		ans.Text, err = a.generate(ctx, prompt)
		if err != nil {
			return nil, err
		}

	case router.KindFuzzy:
		docs, err := a.hybrid.Retrieve(ctx, resolved)
		if err != nil {
			return nil, a.upstream(err)
		}
		ans.Documents = docs
		ans.Text, err = a.answerFromDocuments(ctx, resolved, docs)
		if err != nil {
			return nil, err
		}

	case router.KindSymptom:
		ans.Candidates = a.symptoms.Match(resolved, a.topK)
		ans.Text = FormatCandidates(ans.Candidates)
	}

	return ans, nil
}

// Compare contrasts two drugs using dense retrieval for each
func (a *Assistant) Compare(ctx context.Context, drugA, drugB string) (*Reply, error) {
	drugA, drugB = corpus.NormalizeName(drugA), corpus.NormalizeName(drugB)
	if drugA == "" || drugB == "" {
		return nil, ErrMissingDrug
	}

	var docsA, docsB []types.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docsA, err = a.dense.Search(gctx, drugA, CompareK, "")
		return err
	})
	g.Go(func() error {
		var err error
		docsB, err = a.dense.Search(gctx, drugB, CompareK, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, a.upstream(err)
	}

	docs := append(append([]types.SearchResult{}, docsA...), docsB...)
	reply := &Reply{Documents: docs}
	if len(docs) == 0 {
		reply.Text = llm.NotAvailable
		return reply, nil
	}

	prompt, err := llm.ComparisonPrompt(drugA, drugB, joinContents(docs))
	if err != nil {
		return nil, err
	}
	reply.Text, err = a.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Suggest proposes medications for a free-text symptom description
func (a *Assistant) Suggest(ctx context.Context, symptoms string) (*Reply, error) {
	symptoms = corpus.NormalizeQuery(symptoms)
	if symptoms == "" {
		return nil, types.ErrEmptyQuery
	}

	docs, err := a.dense.Search(ctx, symptoms, SuggestK, "")
	if err != nil {
		return nil, a.upstream(err)
	}

	reply := &Reply{Documents: docs}
	if len(docs) == 0 {
		reply.Text = llm.NotAvailable
		return reply, nil
	}

	prompt, err := llm.SuggestionPrompt(symptoms, joinContents(docs))
	if err != nil {
		return nil, err
	}
	reply.Text, err = a.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// MatchSymptoms ranks drugs for each symptom phrase in query
func (a *Assistant) MatchSymptoms(query string, topK int) []types.ScoredCandidate {
	if topK <= 0 {
		topK = a.topK
	}
	return a.symptoms.Match(query, topK)
}

// Conditions lists the distinct medical conditions in the corpus
func (a *Assistant) Conditions() []string {
	out := make([]string, len(a.conditions))
	copy(out, a.conditions)
	return out
}

// DrugsForCondition lists the drugs indicated for condition, in corpus order
func (a *Assistant) DrugsForCondition(condition string) []string {
	return corpus.DrugsForCondition(a.records, condition)
}

// ForgetSession drops the conversation context of sessionID
func (a *Assistant) ForgetSession(ctx context.Context, sessionID string) error {
	return a.sessions.Delete(ctx, sessionID)
}

func (a *Assistant) answerFromDocuments(ctx context.Context, question string, docs []types.SearchResult) (string, error) {
	if len(docs) == 0 {
		return llm.NotAvailable, nil
	}

	prompt, err := llm.QAPrompt(joinContents(docs), question)
	if err != nil {
		return "", err
	}
	return a.generate(ctx, prompt)
}

// generate calls the language model and formats its answer
func (a *Assistant) generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	raw, err := a.gen.Generate(ctx, prompt)
	a.metrics.ObserveLLM(time.Since(start))
	if err != nil {
		return "", a.upstream(err)
	}
	return llm.FormatMarkdown(llm.ExtractAnswer(raw)), nil
}

// upstream records collaborator failures by service
func (a *Assistant) upstream(err error) error {
	var ue *types.UpstreamServiceError
	if errors.As(err, &ue) {
		a.metrics.ObserveUpstreamError(ue.Service)
		a.logger.Warn("upstream service failed", "service", ue.Service, "op", ue.Op, "err", ue.Err)
	}
	return err
}

func joinContents(docs []types.SearchResult) string {
	parts := make([]string, len(docs))
	for i := range docs {
		parts[i] = strings.TrimSpace(docs[i].Document.Content)
	}
	return strings.Join(parts, "\n\n")
}

// FormatCandidates renders symptom matches as a markdown list
func FormatCandidates(candidates []types.ScoredCandidate) string {
	if len(candidates) == 0 {
		return llm.NotAvailable
	}

	var b strings.Builder
	b.WriteString("**Suggested drugs based on symptoms:**\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- **%s** _(Condition: *%s*)_\n", c.DrugName, c.MedicalCondition)
	}
	return b.String()
}

// FollowUps returns suggested next questions about drug
func FollowUps(drug string) []string {
	if drug == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("What is the dosage for %s?", drug),
		fmt.Sprintf("Are there any drug interactions with %s?", drug),
		fmt.Sprintf("What are alternatives to %s?", drug),
	}
}

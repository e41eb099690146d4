package adapter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	m "faultline.dev/pkg/faultline/internal/model"
)

// PredicateRequest describes the location predicates are proposed for.
type PredicateRequest struct {
	File      m.Path // relative to the module root
	Line      int
	Method    string
	Snippet   string
	Variables []m.Variable
}

// PredicateSource proposes candidate predicates for a location, sorted by
// descending probability.
type PredicateSource interface {
	Name() string
	Propose(ctx context.Context, req PredicateRequest) ([]m.Predicate, error)
}

// SortPredicates orders predicates by descending probability, then expression.
func SortPredicates(preds []m.Predicate) {
	sort.SliceStable(preds, func(i, j int) bool {
		if preds[i].Probability != preds[j].Probability {
			return preds[i].Probability > preds[j].Probability
		}

		return preds[i].Expression < preds[j].Expression
	})
}

// TSVPredicateSource serves predictions from a tab-separated file with a header
// line and rows "<file>:<line>\t<variable>\t<condition>\t<probability>". A "$"
// in condition stands for the variable.
type TSVPredicateSource struct {
	path m.Path

	once    sync.Once
	loadErr error
	byKey   map[string][]m.Predicate
}

// NewTSVPredicateSource constructs a source reading path on first use.
func NewTSVPredicateSource(path m.Path) *TSVPredicateSource {
	return &TSVPredicateSource{path: path}
}

// Name identifies the source.
func (s *TSVPredicateSource) Name() string { return "file" }

// Propose returns the predictions recorded for req's file and line.
func (s *TSVPredicateSource) Propose(ctx context.Context, req PredicateRequest) ([]m.Predicate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.once.Do(func() { s.byKey, s.loadErr = s.load() })

	if s.loadErr != nil {
		return nil, s.loadErr
	}

	preds := m.ClonePredicates(s.byKey[predictionKey(req.File, req.Line)])
	SortPredicates(preds)

	return preds, nil
}

func predictionKey(file m.Path, line int) string {
	return string(file) + ":" + strconv.Itoa(line)
}

func (s *TSVPredicateSource) load() (map[string][]m.Predicate, error) {
	f, err := os.Open(string(s.path))
	if err != nil {
		return nil, fmt.Errorf("open predictions %s: %w", s.path, err)
	}

	defer func() { _ = f.Close() }()

	out, err := ParsePredictions(bufio.NewScanner(f))
	if err != nil {
		return nil, fmt.Errorf("predictions %s: %w", s.path, err)
	}

	return out, nil
}

// ParsePredictions reads prediction rows keyed by "<file>:<line>". Malformed
// rows are skipped with a warning.
func ParsePredictions(scanner *bufio.Scanner) (map[string][]m.Predicate, error) {
	out := make(map[string][]m.Predicate)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		if lineNo == 1 {
			continue
		}

		row := scanner.Text()
		if strings.TrimSpace(row) == "" {
			continue
		}

		fields := strings.Split(row, "\t")
		if len(fields) < 4 {
			slog.Warn("skipping malformed prediction row", "row", lineNo, "error", m.ErrMalformedInput)
			continue
		}

		prob, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		if err != nil {
			slog.Warn("skipping prediction with invalid probability", "row", lineNo, "value", fields[3])
			continue
		}

		variable := strings.TrimSpace(fields[1])
		expr := strings.ReplaceAll(strings.TrimSpace(fields[2]), "$", variable)

		key := strings.TrimSpace(fields[0])
		out[key] = append(out[key], m.Predicate{Expression: expr, Variable: variable, Probability: prob})
	}

	return out, scanner.Err()
}

// HeuristicPredicateSource derives predicates from variable types alone.
type HeuristicPredicateSource struct{}

// NewHeuristicPredicateSource constructs a HeuristicPredicateSource.
func NewHeuristicPredicateSource() *HeuristicPredicateSource {
	return &HeuristicPredicateSource{}
}

// Name identifies the source.
func (s *HeuristicPredicateSource) Name() string { return "heuristic" }

// Propose emits sign tests for numbers, the value itself for booleans and nil
// tests for nil-able types.
func (s *HeuristicPredicateSource) Propose(_ context.Context, req PredicateRequest) ([]m.Predicate, error) {
	var preds []m.Predicate

	for _, v := range req.Variables {
		add := func(expr string, prob float64) {
			preds = append(preds, m.Predicate{Expression: expr, Variable: v.Name, VariableType: v.Type, Probability: prob})
		}

		switch {
		case isNumericType(v.Type):
			add(v.Name+" > 0", 0.5)
			add(v.Name+" < 0", 0.4)
			add(v.Name+" == 0", 0.3)
		case v.Type == "bool":
			add(v.Name, 0.5)
		case isNillableType(v.Type):
			add(v.Name+" == nil", 0.4)
		}
	}

	SortPredicates(preds)

	return preds, nil
}

func isNumericType(t string) bool {
	switch t {
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"float32", "float64", "byte", "rune":
		return true
	}

	return false
}

func isNillableType(t string) bool {
	return strings.HasPrefix(t, "*") ||
		strings.HasPrefix(t, "[]") ||
		strings.HasPrefix(t, "map[") ||
		strings.HasPrefix(t, "chan ") ||
		strings.HasPrefix(t, "func(") ||
		t == "error" || t == "any" || t == "interface{}"
}

// OpenAIPredicateSource asks an OpenAI-compatible chat endpoint for predicates.
type OpenAIPredicateSource struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

// NewOpenAIPredicateSource constructs a client for baseURL. requestsPerSecond
// paces calls; zero disables pacing.
func NewOpenAIPredicateSource(apiKey, baseURL, model string, requestsPerSecond float64) *OpenAIPredicateSource {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &OpenAIPredicateSource{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Name identifies the source.
func (s *OpenAIPredicateSource) Name() string { return "openai" }

type proposedPredicate struct {
	Variable    string  `json:"variable"`
	Condition   string  `json:"condition"`
	Probability float64 `json:"probability"`
}

const predicatePrompt = `Propose boolean Go expressions that may reveal a bug at line %d of %s (function %s).
Code:
%s
Variables in scope:
%s
Answer with a JSON array of objects {"variable": string, "condition": string, "probability": number}.
Use "$" in condition for the variable. Only use the listed variables. No function calls.`

// Propose sends one chat completion request and parses the JSON answer.
func (s *OpenAIPredicateSource) Propose(ctx context.Context, req PredicateRequest) ([]m.Predicate, error) {
	if len(req.Variables) == 0 {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var vars strings.Builder
	for _, v := range req.Variables {
		fmt.Fprintf(&vars, "- %s %s\n", v.Name, v.Type)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You suggest predicates for statistical fault localization."},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(predicatePrompt, req.Line, req.File, req.Method, req.Snippet, vars.String())},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("predicate request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("predicate service returned no choices")
	}

	return ParseProposals(resp.Choices[0].Message.Content, req.Variables)
}

// ParseProposals decodes a JSON array of proposals, tolerating surrounding
// prose or code fences, and drops proposals for unknown variables.
func ParseProposals(content string, vars []m.Variable) ([]m.Predicate, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")

	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON array in predicate answer", m.ErrMalformedInput)
	}

	var proposals []proposedPredicate
	if err := json.Unmarshal([]byte(content[start:end+1]), &proposals); err != nil {
		return nil, fmt.Errorf("%w: %v", m.ErrMalformedInput, err)
	}

	types := make(map[string]string, len(vars))
	for _, v := range vars {
		types[v.Name] = v.Type
	}

	var preds []m.Predicate

	for _, p := range proposals {
		typ, known := types[p.Variable]
		if !known || strings.TrimSpace(p.Condition) == "" {
			continue
		}

		preds = append(preds, m.Predicate{
			Expression:   strings.ReplaceAll(p.Condition, "$", p.Variable),
			Variable:     p.Variable,
			VariableType: typ,
			Probability:  p.Probability,
		})
	}

	SortPredicates(preds)

	return preds, nil
}

// CompositePredicateSource concatenates sources; a failing source is logged
// and contributes nothing.
type CompositePredicateSource struct {
	sources []PredicateSource
}

// NewCompositePredicateSource constructs a CompositePredicateSource.
func NewCompositePredicateSource(sources ...PredicateSource) *CompositePredicateSource {
	return &CompositePredicateSource{sources: sources}
}

// Name identifies the source.
func (s *CompositePredicateSource) Name() string {
	names := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		names = append(names, src.Name())
	}

	return strings.Join(names, "+")
}

// Propose merges every source's proposals.
func (s *CompositePredicateSource) Propose(ctx context.Context, req PredicateRequest) ([]m.Predicate, error) {
	var preds []m.Predicate

	for _, src := range s.sources {
		got, err := src.Propose(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			slog.Warn("predicate source failed", "source", src.Name(), "file", req.File, "line", req.Line, "error", err)

			continue
		}

		preds = append(preds, got...)
	}

	SortPredicates(preds)

	return preds, nil
}

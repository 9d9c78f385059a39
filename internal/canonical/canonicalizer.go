// Package canonical merges free-text recurring-issue descriptions into
// canonical category buckets. Recurring-issue text comes from free-form
// oracle output, so near-duplicate phrasings ("missing type hints" vs "no
// type annotations") are common; without canonicalization, top-issue metrics
// would be long-tail noise.
package canonical

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devpulse/devpulse-go/internal/llm"
)

const (
	// DefaultBatchSize bounds the number of issues per oracle call.
	DefaultBatchSize = 5
	// DefaultMaxRetries is the per-batch attempt budget.
	DefaultMaxRetries = 3
	// DefaultRetryDelay separates attempts for one batch.
	DefaultRetryDelay = 2 * time.Second

	// ErrorGroupLabel is the sentinel group that collects the inputs of a
	// batch whose retries were exhausted, so a bad batch cannot abort the
	// rest of the aggregation.
	ErrorGroupLabel = "Parsing Error"
)

// GroupSystemPrompt is the canonicalization instruction contract.
const GroupSystemPrompt = `You are an assistant that groups recurring developer issues into canonical categories.

Task:
- Given a list of recurring issues, map each issue to a canonical category.
- Issues with similar meaning must be grouped together, even if worded differently.
- Use short, descriptive canonical names (e.g., "print statements in production", "missing type hints").
- If an issue does not fit any existing group, create a new category.

Return ONLY a JSON object with format:
{
  "canonical_categories": {
    "<canonical_category>": ["<original issue 1>", "<original issue 2>"]
  }
}

Do NOT include explanations or markdown fences.`

// Groups maps canonical labels to the original strings they subsume,
// remembering label insertion order (used for deterministic tie-breaks).
type Groups struct {
	order    []string
	byLabel  map[string][]string
	contains map[string]map[string]struct{}
}

// NewGroups returns an empty group set.
func NewGroups() *Groups {
	return &Groups{
		byLabel:  make(map[string][]string),
		contains: make(map[string]map[string]struct{}),
	}
}

func (g *Groups) add(label string, originals ...string) {
	if _, ok := g.byLabel[label]; !ok {
		g.order = append(g.order, label)
		g.contains[label] = make(map[string]struct{})
	}
	for _, o := range originals {
		if _, dup := g.contains[label][o]; dup {
			continue
		}
		g.byLabel[label] = append(g.byLabel[label], o)
		g.contains[label][o] = struct{}{}
	}
}

// Labels returns canonical labels in insertion order.
func (g *Groups) Labels() []string {
	return g.order
}

// Originals returns the raw strings subsumed by a canonical label.
func (g *Groups) Originals(label string) []string {
	return g.byLabel[label]
}

// Count returns the number of raw strings under a canonical label.
func (g *Groups) Count(label string) int {
	return len(g.byLabel[label])
}

// Contains reports whether a raw issue string falls under a canonical label.
func (g *Groups) Contains(label, issue string) bool {
	_, ok := g.contains[label][issue]
	return ok
}

// Len returns the number of canonical labels.
func (g *Groups) Len() int {
	return len(g.order)
}

// Canonicalizer batches deduplicated issues through the oracle with a
// bounded retry policy per batch.
type Canonicalizer struct {
	oracle     llm.Oracle
	batchSize  int
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewCanonicalizer creates a canonicalizer around an injected oracle.
// Non-positive knobs fall back to the defaults.
func NewCanonicalizer(oracle llm.Oracle, batchSize, maxRetries int, retryDelay time.Duration, logger *slog.Logger) *Canonicalizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if retryDelay < 0 {
		retryDelay = DefaultRetryDelay
	}
	return &Canonicalizer{
		oracle:     oracle,
		batchSize:  batchSize,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.With("component", "canonical"),
	}
}

// Canonicalize deduplicates issues, dispatches them in fixed-size batches,
// and merges the per-batch groupings additively. Exhausted-retry batches are
// folded into the sentinel error group rather than aborting.
func (c *Canonicalizer) Canonicalize(ctx context.Context, issues []string) *Groups {
	groups := NewGroups()

	unique := dedupe(issues)
	if len(unique) == 0 {
		return groups
	}

	for start := 0; start < len(unique); start += c.batchSize {
		end := start + c.batchSize
		if end > len(unique) {
			end = len(unique)
		}
		batch := unique[start:end]

		parsed, err := c.groupBatch(ctx, batch)
		if err != nil {
			c.logger.Warn("canonicalization batch failed after retries",
				"batch_size", len(batch), "error", err)
			groups.add(ErrorGroupLabel, batch...)
			continue
		}

		// Accumulate under the same canonical key across batches
		for _, label := range parsed.order {
			groups.add(label, parsed.byLabel[label]...)
		}
	}

	return groups
}

type groupResponse struct {
	CanonicalCategories map[string][]string `json:"canonical_categories"`
}

// groupBatch runs one batch with the bounded retry policy. An attempt fails
// on transport error, empty response, or a response without the expected
// canonical_categories shape.
func (c *Canonicalizer) groupBatch(ctx context.Context, batch []string) (*Groups, error) {
	userPrompt := groupUserPrompt(batch)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 && c.retryDelay > 0 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		raw, err := c.oracle.CompleteJSON(ctx, GroupSystemPrompt, userPrompt)
		if err != nil {
			lastErr = err
			c.logger.Debug("canonicalization attempt failed", "attempt", attempt, "error", err)
			continue
		}
		if strings.TrimSpace(raw) == "" {
			lastErr = fmt.Errorf("empty oracle response")
			continue
		}

		var resp groupResponse
		if err := llm.ParseLenient(raw, &resp); err != nil {
			lastErr = err
			continue
		}
		if len(resp.CanonicalCategories) == 0 {
			lastErr = fmt.Errorf("response missing canonical_categories")
			continue
		}

		out := NewGroups()
		for label, originals := range resp.CanonicalCategories {
			out.add(label, originals...)
		}
		return out, nil
	}

	return nil, fmt.Errorf("exhausted %d attempts: %w", c.maxRetries, lastErr)
}

func groupUserPrompt(batch []string) string {
	encoded, _ := json.MarshalIndent(batch, "", "  ")
	return fmt.Sprintf("Input issues:\n%s", encoded)
}

// dedupe returns the unique issues preserving first-seen order, so batch
// dispatch order follows input order.
func dedupe(issues []string) []string {
	seen := make(map[string]struct{}, len(issues))
	var unique []string
	for _, issue := range issues {
		issue = strings.TrimSpace(issue)
		if issue == "" {
			continue
		}
		if _, ok := seen[issue]; ok {
			continue
		}
		seen[issue] = struct{}{}
		unique = append(unique, issue)
	}
	return unique
}

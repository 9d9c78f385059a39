package metrics

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/devpulse/devpulse-go/internal/canonical"
	apperrors "github.com/devpulse/devpulse-go/internal/errors"
	"github.com/devpulse/devpulse-go/internal/models"
	"github.com/devpulse/devpulse-go/internal/storage"
)

// DefaultTopK is how many canonical recurring issues each rollup keeps.
const DefaultTopK = 5

// Aggregator folds classification outcomes (joined with snapshot author and
// date) into per-developer and team productivity metrics.
type Aggregator struct {
	store         storage.Store
	canonicalizer *canonical.Canonicalizer
	topK          int
	logger        *slog.Logger
}

// NewAggregator wires an aggregator to a store and a canonicalizer.
func NewAggregator(store storage.Store, canonicalizer *canonical.Canonicalizer, topK int, logger *slog.Logger) *Aggregator {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Aggregator{
		store:         store,
		canonicalizer: canonicalizer,
		topK:          topK,
		logger:        logger.With("component", "metrics"),
	}
}

// devCounters is the per-developer fold state.
type devCounters struct {
	total        int
	handled      int
	rejected     int
	handledByDay map[string]int
	categories   map[string]*categoryCount
	rawIssues    []string
}

type categoryCount struct {
	accepted int
	rejected int
}

// Generate computes the full report from every stored classification.
func (a *Aggregator) Generate(ctx context.Context) (*Report, error) {
	records, err := a.store.GetClassificationsWithAuthorAndDate(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeStorage, apperrors.SeverityHigh, "load classifications")
	}

	devs := make(map[string]*devCounters)
	team := &devCounters{
		handledByDay: make(map[string]int),
		categories:   make(map[string]*categoryCount),
	}

	for _, rec := range records {
		dev := devs[rec.DeveloperName]
		if dev == nil {
			dev = &devCounters{
				handledByDay: make(map[string]int),
				categories:   make(map[string]*categoryCount),
			}
			devs[rec.DeveloperName] = dev
		}

		fold(dev, rec)
		fold(team, rec)
	}

	// Canonicalize the team pool once globally; per-developer counts are
	// membership tests against the same groups.
	groups := a.canonicalizer.Canonicalize(ctx, team.rawIssues)
	a.logger.Info("canonicalized recurring issues",
		"raw", len(team.rawIssues), "canonical", groups.Len())

	report := &Report{
		Developers:  make(map[string]*DeveloperMetrics, len(devs)),
		GeneratedAt: time.Now().UTC(),
	}

	for name, dev := range devs {
		report.Developers[name] = &DeveloperMetrics{
			Total:            dev.total,
			Handled:          dev.handled,
			Rejected:         dev.rejected,
			AvgHandledPerDay: avgPerDay(dev.handledByDay),
			AcceptanceRate:   rate(dev.handled, dev.total),
			CategoryCounts:   categoryTotals(dev.categories),
			TopIssues:        a.topIssues(groups, dev.rawIssues),
		}
	}

	report.Team = &TeamMetrics{
		Total:            team.total,
		Handled:          team.handled,
		AvgHandledPerDay: avgPerDay(team.handledByDay),
		AcceptanceRate:   rate(team.handled, team.total),
		CategoryCounts:   categoryTotals(team.categories),
		TopIssues:        a.topTeamIssues(groups),
	}

	return report, nil
}

// fold applies one classified record to a counter set.
func fold(c *devCounters, rec *models.ClassifiedReview) {
	c.total++

	category := rec.Outcome.Category
	if category == "" {
		category = models.CategoryOther
	}
	day := rec.SnapshotDate.Format("2006-01-02")

	switch {
	case rec.Outcome.Label.Handled():
		c.handled++
		c.handledByDay[day]++
		cat := c.categories[category]
		if cat == nil {
			cat = &categoryCount{}
			c.categories[category] = cat
		}
		cat.accepted++
	case rec.Outcome.Label == models.LabelRejected:
		c.rejected++
		cat := c.categories[category]
		if cat == nil {
			cat = &categoryCount{}
			c.categories[category] = cat
		}
		cat.rejected++
	}

	if rec.Outcome.RecurringIssue != "" && rec.Outcome.RecurringIssue != models.CategoryOther {
		c.rawIssues = append(c.rawIssues, rec.Outcome.RecurringIssue)
	}
}

// avgPerDay divides total handled count by the number of distinct days with
// any handled activity.
func avgPerDay(byDay map[string]int) float64 {
	if len(byDay) == 0 {
		return 0
	}
	sum := 0
	for _, n := range byDay {
		sum += n
	}
	return round2(float64(sum) / float64(len(byDay)))
}

func rate(handled, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(handled) / float64(total))
}

// categoryTotals reports total touched per category (accepted + rejected).
func categoryTotals(categories map[string]*categoryCount) map[string]int {
	out := make(map[string]int, len(categories))
	for cat, counts := range categories {
		out[cat] = counts.accepted + counts.rejected
	}
	return out
}

// topTeamIssues ranks canonical groups by set cardinality.
func (a *Aggregator) topTeamIssues(groups *canonical.Groups) []IssueCount {
	counts := make([]IssueCount, 0, groups.Len())
	for _, label := range groups.Labels() {
		counts = append(counts, IssueCount{Issue: label, Count: groups.Count(label)})
	}
	return a.rank(counts)
}

// topIssues counts how many of a developer's raw issues fall into each
// canonical group.
func (a *Aggregator) topIssues(groups *canonical.Groups, rawIssues []string) []IssueCount {
	perLabel := make(map[string]int)
	for _, issue := range rawIssues {
		for _, label := range groups.Labels() {
			if groups.Contains(label, issue) {
				perLabel[label]++
				break
			}
		}
	}

	counts := make([]IssueCount, 0, len(perLabel))
	for _, label := range groups.Labels() {
		if n, ok := perLabel[label]; ok {
			counts = append(counts, IssueCount{Issue: label, Count: n})
		}
	}
	return a.rank(counts)
}

// rank sorts descending by count; ties keep canonicalizer insertion order.
func (a *Aggregator) rank(counts []IssueCount) []IssueCount {
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if len(counts) > a.topK {
		counts = counts[:a.topK]
	}
	return counts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

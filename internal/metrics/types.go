package metrics

import "time"

// IssueCount is one canonical recurring issue with its occurrence count.
// Reported as an ordered list so top-K ranking survives JSON serialization.
type IssueCount struct {
	Issue string `json:"issue"`
	Count int    `json:"count"`
}

// DeveloperMetrics holds the per-developer productivity rollup.
type DeveloperMetrics struct {
	Total            int            `json:"total"`
	Handled          int            `json:"handled"`
	Rejected         int            `json:"rejected"`
	AvgHandledPerDay float64        `json:"avg_handled_per_day"`
	AcceptanceRate   float64        `json:"acceptance_rate"`
	CategoryCounts   map[string]int `json:"category_counts"`
	TopIssues        []IssueCount   `json:"top_issues"`
}

// TeamMetrics holds the team-level rollup.
type TeamMetrics struct {
	Total            int            `json:"total"`
	Handled          int            `json:"handled"`
	AvgHandledPerDay float64        `json:"avg_handled_per_day"`
	AcceptanceRate   float64        `json:"acceptance_rate"`
	CategoryCounts   map[string]int `json:"category_counts"`
	TopIssues        []IssueCount   `json:"top_issues"`
}

// Report is the nested structure consumed by the presentation layer.
type Report struct {
	Developers  map[string]*DeveloperMetrics `json:"developers"`
	Team        *TeamMetrics                 `json:"team"`
	GeneratedAt time.Time                    `json:"generated_at"`
}

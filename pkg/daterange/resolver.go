// Package daterange turns natural-language period phrases into concrete
// date ranges. A regex fast path covers the common relative expressions
// deterministically; anything else falls back to a read-only agent task
// whose answer is only trusted after shape validation.
package daterange

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/prowlhq/prowl/pkg/agent"
)

const isoDate = "2006-01-02"

// Range is a resolved period. Dates are ISO (YYYY-MM-DD), inclusive.
type Range struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Label     string `json:"label"`
}

// fastPattern pairs a compiled phrase pattern with its date arithmetic.
type fastPattern struct {
	re      *regexp.Regexp
	resolve func(m []string, now time.Time) Range
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

var fastPatterns = []fastPattern{
	{
		re: regexp.MustCompile(`^today$`),
		resolve: func(_ []string, now time.Time) Range {
			d := now.Format(isoDate)
			return Range{StartDate: d, EndDate: d, Label: "Today"}
		},
	},
	{
		re: regexp.MustCompile(`^yesterday$`),
		resolve: func(_ []string, now time.Time) Range {
			d := now.AddDate(0, 0, -1).Format(isoDate)
			return Range{StartDate: d, EndDate: d, Label: "Yesterday"}
		},
	},
	{
		re: regexp.MustCompile(`^this week$`),
		resolve: func(_ []string, now time.Time) Range {
			return Range{
				StartDate: startOfWeek(now).Format(isoDate),
				EndDate:   now.Format(isoDate),
				Label:     "This week",
			}
		},
	},
	{
		re: regexp.MustCompile(`^last week$`),
		resolve: func(_ []string, now time.Time) Range {
			start := startOfWeek(now).AddDate(0, 0, -7)
			return Range{
				StartDate: start.Format(isoDate),
				EndDate:   start.AddDate(0, 0, 6).Format(isoDate),
				Label:     "Last week",
			}
		},
	},
	{
		re: regexp.MustCompile(`^this month$`),
		resolve: func(_ []string, now time.Time) Range {
			start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
			return Range{
				StartDate: start.Format(isoDate),
				EndDate:   now.Format(isoDate),
				Label:     "This month",
			}
		},
	},
	{
		re: regexp.MustCompile(`^last month$`),
		resolve: func(_ []string, now time.Time) Range {
			firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
			start := firstOfThis.AddDate(0, -1, 0)
			return Range{
				StartDate: start.Format(isoDate),
				EndDate:   firstOfThis.AddDate(0, 0, -1).Format(isoDate),
				Label:     "Last month",
			}
		},
	},
	{
		re: regexp.MustCompile(`^(?:last|past) (\d+) days?$`),
		resolve: func(m []string, now time.Time) Range {
			n, _ := strconv.Atoi(m[1])
			return Range{
				StartDate: now.AddDate(0, 0, -n).Format(isoDate),
				EndDate:   now.Format(isoDate),
				Label:     fmt.Sprintf("Last %d days", n),
			}
		},
	},
	{
		re: regexp.MustCompile(`^(?:last|past) (\d+) weeks?$`),
		resolve: func(m []string, now time.Time) Range {
			n, _ := strconv.Atoi(m[1])
			return Range{
				StartDate: now.AddDate(0, 0, -7*n).Format(isoDate),
				EndDate:   now.Format(isoDate),
				Label:     fmt.Sprintf("Last %d weeks", n),
			}
		},
	},
	{
		re: regexp.MustCompile(`^(?:last|past) (\d+) months?$`),
		resolve: func(m []string, now time.Time) Range {
			n, _ := strconv.Atoi(m[1])
			return Range{
				StartDate: now.AddDate(0, -n, 0).Format(isoDate),
				EndDate:   now.Format(isoDate),
				Label:     fmt.Sprintf("Last %d months", n),
			}
		},
	},
	{
		re: regexp.MustCompile(`^(january|february|march|april|may|june|july|august|september|october|november|december)$`),
		resolve: func(m []string, now time.Time) Range {
			month := months[m[1]]
			year := now.Year()
			// Most recent occurrence: a month still ahead of now means last year.
			if month > now.Month() {
				year--
			}
			start := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
			end := start.AddDate(0, 1, -1)
			return Range{
				StartDate: start.Format(isoDate),
				EndDate:   end.Format(isoDate),
				Label:     fmt.Sprintf("%s %d", start.Month(), year),
			}
		},
	},
}

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Resolver resolves period phrases. The model client powers the fallback
// and may be nil, in which case unmatched phrases get the default range.
type Resolver struct {
	client agent.ModelClient
}

// NewResolver creates a resolver with the given fallback client.
func NewResolver(client agent.ModelClient) *Resolver {
	return &Resolver{client: client}
}

// Resolve maps a phrase to a concrete range relative to now. Never fails:
// the worst case is the default range (last 30 days ending today).
func (r *Resolver) Resolve(ctx context.Context, phrase string, now time.Time) Range {
	normalized := strings.ToLower(strings.TrimSpace(phrase))

	for _, p := range fastPatterns {
		if m := p.re.FindStringSubmatch(normalized); m != nil {
			return p.resolve(m, now)
		}
	}

	return r.resolveWithAgent(ctx, phrase, now)
}

// resolveWithAgent asks a read-only agent task for the range and validates
// the answer's shape before trusting it.
func (r *Resolver) resolveWithAgent(ctx context.Context, phrase string, now time.Time) Range {
	if r.client == nil {
		return defaultRange(now)
	}

	task := agent.NewTask("date_range", agent.CapabilityReadOnly, agent.Request{
		System: "You resolve natural-language time period phrases into date ranges. " +
			"Reply with a single JSON object and nothing else: " +
			`{"startDate":"YYYY-MM-DD","endDate":"YYYY-MM-DD","label":"..."}`,
		Prompt: fmt.Sprintf("Today is %s. Resolve the period: %q", now.Format(isoDate), phrase),
	})
	task.Run(ctx, r.client)

	text, err := task.Result()
	if err != nil {
		slog.Warn("Date range fallback agent failed, using default", "phrase", phrase, "error", err)
		return defaultRange(now)
	}

	rng, ok := parseAgentRange(text)
	if !ok {
		slog.Warn("Date range fallback returned invalid shape, using default", "phrase", phrase)
		return defaultRange(now)
	}
	if rng.Label == "" {
		rng.Label = phrase
	}
	return rng
}

// parseAgentRange extracts and shape-checks the fallback agent's answer.
func parseAgentRange(text string) (Range, bool) {
	text = strings.TrimSpace(text)
	// Tolerate surrounding prose: take the first JSON object in the text.
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return Range{}, false
	}
	body := text[start : end+1]
	if !gjson.Valid(body) {
		return Range{}, false
	}

	parsed := gjson.Parse(body)
	rng := Range{
		StartDate: parsed.Get("startDate").String(),
		EndDate:   parsed.Get("endDate").String(),
		Label:     parsed.Get("label").String(),
	}
	if !isoDatePattern.MatchString(rng.StartDate) || !isoDatePattern.MatchString(rng.EndDate) {
		return Range{}, false
	}
	if _, err := time.Parse(isoDate, rng.StartDate); err != nil {
		return Range{}, false
	}
	if _, err := time.Parse(isoDate, rng.EndDate); err != nil {
		return Range{}, false
	}
	return rng, true
}

func defaultRange(now time.Time) Range {
	return Range{
		StartDate: now.AddDate(0, 0, -30).Format(isoDate),
		EndDate:   now.Format(isoDate),
		Label:     "Last 30 days",
	}
}

// startOfWeek returns the Monday of now's week.
func startOfWeek(now time.Time) time.Time {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday closes the week
	}
	return now.AddDate(0, 0, -(weekday - 1))
}

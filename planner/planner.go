package planner

import (
	"context"
	"regexp"
	"strings"

	"github.com/aixlab/aix/config"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/rules"
)

type (
	// StepFunc runs one step of a compound query through the full pipeline
	// and returns the resolution result plus the rendered response text.
	StepFunc func(ctx context.Context, query string) (rules.Result, string, error)

	// StepTrace records what one step produced.
	StepTrace struct {
		Query    string `json:"query"`
		Kind     string `json:"kind"`
		Response string `json:"response"`
	}

	// Planner detects compound queries, splits them into ordered steps and
	// drives their sequential execution.
	Planner struct {
		logger *mylog.Logger
		conf   *config.QueryConfig
	}
)

type connective struct {
	text string
	re   *regexp.Regexp
}

// Connectives in priority order. "önce" (before) is listed but never split
// on: it inverts step order, which this splitter does not attempt. "sonra"
// is likewise skipped when the left part contains "önce", so an inverted
// compound stays a single step instead of executing in the wrong order.
var connectives = []connective{
	{text: "ve sonra", re: wordPattern("ve sonra")},
	{text: "ardından", re: wordPattern("ardından")},
	{text: "önce", re: wordPattern("önce")},
	{text: "sonra", re: wordPattern("sonra")},
	{text: ";", re: regexp.MustCompile(`;`)},
}

var sentenceRe = regexp.MustCompile(`[.!?]+`)

func wordPattern(conn string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|\s)` + regexp.QuoteMeta(conn) + `(?:\s|$)`)
}

func NewPlanner(logger *mylog.Logger, conf *config.QueryConfig) *Planner {
	return &Planner{logger: logger, conf: conf}
}

// Split breaks a compound query into ordered steps. It reports multi-step
// only when at least two steps come out; otherwise the query itself is the
// single step.
func (p *Planner) Split(query string) (bool, []string) {
	steps := p.split(query)
	if len(steps) < 2 {
		return false, []string{strings.TrimSpace(query)}
	}
	return true, steps
}

func (p *Planner) split(query string) []string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil
	}

	for _, conn := range connectives {
		loc := conn.re.FindStringIndex(trimmed)
		if loc == nil {
			continue
		}
		if conn.text == "önce" {
			continue
		}
		left := strings.TrimSpace(trimmed[:loc[0]])
		if conn.text == "sonra" && strings.Contains(strings.ToLower(left), "önce") {
			continue
		}
		right := strings.TrimSpace(trimmed[loc[1]:])

		var steps []string
		steps = append(steps, p.split(left)...)
		steps = append(steps, p.split(right)...)
		return steps
	}

	// No connective: fall back to sentence splitting, dropping fragments
	// too short to be a meaningful step.
	var steps []string
	for _, frag := range sentenceRe.Split(trimmed, -1) {
		frag = strings.TrimSpace(frag)
		if len([]rune(frag)) > p.conf.MinStepLength {
			steps = append(steps, frag)
		}
	}
	if len(steps) == 0 {
		steps = []string{trimmed}
	}
	return steps
}

// ExecuteSteps runs each step through the pipeline in order and folds the
// traces into a multi-step result. The summary is the last step's response
// that was not a fallback; when every step fell back, it is the last
// response.
func (p *Planner) ExecuteSteps(ctx context.Context, steps []string, step StepFunc) (rules.Result, error) {
	traces := make([]StepTrace, 0, len(steps))
	summary := ""
	lastResponse := ""

	for _, query := range steps {
		result, response, err := step(ctx, query)
		if err != nil {
			return rules.Result{}, err
		}
		traces = append(traces, StepTrace{
			Query:    query,
			Kind:     result.Kind,
			Response: response,
		})
		lastResponse = response
		if result.Kind != rules.ResultFallback {
			summary = response
		}
		p.logger.Debug("step executed", "query", query, "kind", result.Kind)
	}

	if summary == "" {
		summary = lastResponse
	}

	return rules.Result{
		Kind: rules.ResultMultiStep,
		Data: map[string]any{
			"steps":   traces,
			"summary": summary,
		},
	}, nil
}

package report

import (
	"fmt"
	"strings"

	"github.com/motillonc/leetify-tools/model"
)

// OutcomeKind tells how fetching and formatting one endpoint ended.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	RequestFailure
	HTTPError
	ParseFailure
	ShapeMismatch
)

var outcomeNames = map[OutcomeKind]string{
	Success:        "success",
	RequestFailure: "request_failure",
	HTTPError:      "http_error",
	ParseFailure:   "parse_failure",
	ShapeMismatch:  "shape_mismatch",
}

func (k OutcomeKind) String() string {
	if name, known := outcomeNames[k]; known {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// Outcome is the result of a single endpoint of a match report. Only one of Text, Reason or Status is meaningful,
// depending on Kind.
type Outcome struct {
	Kind   OutcomeKind
	Text   string
	Reason string
	Status int
}

func Succeeded(text string) Outcome {
	return Outcome{Kind: Success, Text: text}
}

func RequestFailed(err error) Outcome {
	return Outcome{Kind: RequestFailure, Reason: err.Error()}
}

func StatusFailed(status int) Outcome {
	return Outcome{Kind: HTTPError, Status: status}
}

func InvalidJSON() Outcome {
	return Outcome{Kind: ParseFailure}
}

func UnexpectedFormat(reason string) Outcome {
	return Outcome{Kind: ShapeMismatch, Reason: reason}
}

// Body renders the outcome as the text of its report section.
func (o Outcome) Body() string {
	switch o.Kind {
	case Success:
		if strings.TrimSpace(o.Text) == "" {
			return "No data"
		}
		return o.Text
	case RequestFailure:
		return "Request failed: " + o.Reason
	case HTTPError:
		return fmt.Sprintf("HTTP %d", o.Status)
	case ParseFailure:
		return "Invalid JSON"
	default:
		return "Unexpected data format"
	}
}

type Section struct {
	Title   string
	Outcome Outcome
}

func (s Section) String() string {
	return fmt.Sprintf("=== %s ===\n%s", s.Title, s.Outcome.Body())
}

// MatchReport holds the sections of one match, in registry order.
type MatchReport struct {
	MatchID  model.MatchID
	Sections []Section
}

// Text renders the whole report: sections separated by blank lines, without trailing whitespace.
func (r *MatchReport) Text() string {
	sections := make([]string, 0, len(r.Sections))
	for _, section := range r.Sections {
		sections = append(sections, section.String())
	}
	return strings.TrimRight(strings.Join(sections, "\n\n"), " \t\r\n")
}

// Failures returns the number of sections that did not succeed.
func (r *MatchReport) Failures() int {
	failures := 0
	for _, section := range r.Sections {
		if section.Outcome.Kind != Success {
			failures++
		}
	}
	return failures
}

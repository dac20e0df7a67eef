package llm

import (
	"fmt"
	"strings"
)

const (
	matchInstruction   = "Analyze this CS2 match report and summarize key player performance:\n\n"
	summaryInstruction = "Create a global summary of these individual match analyses:\n\n"
)

// MatchAnalysis is the analysis produced for a single match.
type MatchAnalysis struct {
	MatchID  string
	Analysis string
}

func MatchPrompt(report string) string {
	return matchInstruction + report
}

// SummaryPrompt joins the per-match analyses in the given order.
func SummaryPrompt(analyses []MatchAnalysis) string {
	blocks := make([]string, 0, len(analyses))
	for _, analysis := range analyses {
		blocks = append(blocks, fmt.Sprintf("%s:\n%s\n", analysis.MatchID, analysis.Analysis))
	}
	return summaryInstruction + strings.Join(blocks, "\n\n")
}

// Unavailable reports whether a text is the placeholder of a failed analysis.
func Unavailable(text string) bool {
	return strings.HasPrefix(text, UnavailablePrefix)
}

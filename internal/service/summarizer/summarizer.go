// Package summarizer generates meeting summaries from transcript text.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"ai-meeting-summary-service/internal/models"
)

// Summarizer produces a summary from a prepared transcript input.
// Implementations are stateless across calls: everything the model needs
// is carried in the input string.
type Summarizer interface {
	Summarize(ctx context.Context, input string) (string, error)
}

// BuildInput prepares the AI input from unprocessed segments and the
// previous summary. Segments are numbered in creation order, one per
// line; the previous summary gives the model continuity without keeping
// any conversation state on our side.
func BuildInput(segments []models.TranscriptSegment, previousSummary string) string {
	var b strings.Builder

	if previousSummary != "" {
		b.WriteString("Previous Summary:\n")
		b.WriteString(previousSummary)
		b.WriteString("\n\n")
	}

	b.WriteString("New Transcripts:\n")
	for i, seg := range segments {
		speaker := "Unknown"
		if seg.SpeakerName != nil && *seg.SpeakerName != "" {
			speaker = *seg.SpeakerName
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, speaker, seg.Text)
	}

	return b.String()
}

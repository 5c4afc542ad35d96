package insight

import (
	"context"
	"fmt"
	"strings"
)

// Generator turns a composed report into prose. The composer's output is
// identical whichever implementation is wired in, so the template generator
// and the live one are interchangeable.
type Generator interface {
	Generate(ctx context.Context, report *Report) (string, error)
}

// TemplateGenerator is the deterministic stand-in: no network, same input
// always yields the same text. Used in tests and as the default wiring.
type TemplateGenerator struct{}

// NewTemplateGenerator creates the deterministic generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (g *TemplateGenerator) Generate(_ context.Context, report *Report) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Power map across %d people and %d relationships.\n", report.Stats.Players, report.Stats.Edges)

	if len(report.Brokers) > 0 {
		b.WriteString("Key brokers: ")
		b.WriteString(joinLabels(report.Brokers))
		b.WriteString(". They sit on the paths information actually travels.\n")
	}
	if len(report.Opportunities) > 0 {
		b.WriteString("Brokerage opportunities: ")
		b.WriteString(joinLabels(report.Opportunities))
		b.WriteString(" operate inside closed circles you could bridge around.\n")
	}
	if len(report.Risks) > 0 {
		b.WriteString("Watch closely: ")
		b.WriteString(joinLabels(report.Risks))
		b.WriteString(" combine an adversarial stance with real influence.\n")
	}
	if len(report.Underleveraged) > 0 {
		b.WriteString("Underleveraged allies: ")
		b.WriteString(joinLabels(report.Underleveraged))
		b.WriteString(". Low-cost relationships worth investing in.\n")
	}
	if report.Partial {
		fmt.Fprintf(&b, "Note: built from partial data (failed sources: %s).\n",
			strings.Join(report.FailedSources, ", "))
	}

	return b.String(), nil
}

func joinLabels(entries []Entry) string {
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.Label
	}
	return strings.Join(labels, ", ")
}

// Narrate fills report.Narrative using the given generator. A nil generator
// leaves the report untouched; generation failure is returned to the caller
// and never invalidates the structured report.
func Narrate(ctx context.Context, gen Generator, report *Report) error {
	if gen == nil {
		return nil
	}
	text, err := gen.Generate(ctx, report)
	if err != nil {
		return fmt.Errorf("narrative generation: %w", err)
	}
	report.Narrative = text
	return nil
}

package analysis

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	otelx "fraudwatch/internal/adapter/otel"
	"fraudwatch/internal/model"
)

// Pipeline fans one alert out to the three specialists and collects their
// results. The aggregation barrier lives in the Aggregator; Run only gathers.
type Pipeline struct {
	specialists []*Specialist
	logger      *slog.Logger
}

// NewPipeline builds the three specialists from Specs(). metrics may be nil.
func NewPipeline(llm ChatClient, tools ToolCaller, llmModel string, metrics *otelx.Metrics, logger *slog.Logger) *Pipeline {
	specs := Specs()
	specialists := make([]*Specialist, 0, len(specs))
	for _, spec := range specs {
		specialists = append(specialists, NewSpecialist(spec, llm, tools, llmModel, metrics, logger))
	}
	return &Pipeline{specialists: specialists, logger: logger}
}

// Run dispatches the identical alert to every specialist concurrently and
// waits for all of them. Any specialist failure fails the whole pipeline;
// no partial result set is ever returned.
func (p *Pipeline) Run(ctx context.Context, alert model.Alert) ([]model.SpecialistResult, error) {
	results := make([]model.SpecialistResult, len(p.specialists))

	g, ctx := errgroup.WithContext(ctx)
	for i, s := range p.specialists {
		g.Go(func() error {
			r, err := s.Analyze(ctx, alert)
			if err != nil {
				return err
			}
			results[i] = *r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

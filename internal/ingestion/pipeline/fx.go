package pipeline

import (
	"context"

	"go.uber.org/fx"

	"github.com/smallbiznis/oceandata/internal/dataset/domain"
)

var Module = fx.Module("ingestion",
	fx.Provide(NewOrchestrator),
	fx.Provide(func(o *Orchestrator) Processor { return o }),
	fx.Provide(NewQueue),
	fx.Provide(func(q *Queue) domain.IngestionQueue { return q }),
	fx.Invoke(runQueue),
)

// InlineModule processes jobs synchronously, for one-shot commands.
var InlineModule = fx.Module("ingestion.inline",
	fx.Provide(NewOrchestrator),
	fx.Provide(func(o *Orchestrator) Processor { return o }),
	fx.Provide(func(p Processor) domain.IngestionQueue { return InlineQueue{Processor: p} }),
)

func runQueue(lc fx.Lifecycle, queue *Queue) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			queue.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return queue.Stop(ctx)
		},
	})
}

package chat

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	exchanges metric.Int64Counter
	failures  metric.Int64Counter
	searches  metric.Int64Counter
	duration  metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	var m instruments
	var errs []error
	var err error
	m.exchanges, err = meter.Int64Counter("jobhunter.chat.exchanges",
		metric.WithDescription("Committed chat exchanges"))
	errs = append(errs, err)
	m.failures, err = meter.Int64Counter("jobhunter.chat.failures",
		metric.WithDescription("Exchanges discarded because a collaborator failed"))
	errs = append(errs, err)
	m.searches, err = meter.Int64Counter("jobhunter.chat.searches",
		metric.WithDescription("Job searches run on behalf of the model"))
	errs = append(errs, err)
	m.duration, err = meter.Float64Histogram("jobhunter.chat.duration",
		metric.WithDescription("Time to answer a chat message"), metric.WithUnit("s"))
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *instruments) record(ctx context.Context, elapsed time.Duration, reply *Reply, err error) {
	if m == nil {
		return
	}
	m.duration.Record(ctx, elapsed.Seconds())
	if err != nil {
		m.failures.Add(ctx, 1)
		return
	}
	m.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.Bool("tool.used", reply.ToolUsed)))
}

func (m *instruments) searched(ctx context.Context) {
	if m != nil {
		m.searches.Add(ctx, 1)
	}
}

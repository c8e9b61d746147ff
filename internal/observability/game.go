package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
)

// Metrics holds the game instruments. A nil *Metrics records nothing, which
// is what tests use.
type Metrics struct {
	matchesStarted metric.Int64Counter
	matchesEnded   metric.Int64Counter
	attacks        metric.Int64Counter
	exploded       metric.Int64Counter
	serviced       metric.Int64Counter
	rejected       metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err, e error

	m.matchesStarted, e = meter.Int64Counter("defender.matches.started",
		metric.WithDescription("Matches that left the countdown"))
	err = multierr.Append(err, e)
	m.matchesEnded, e = meter.Int64Counter("defender.matches.ended",
		metric.WithDescription("Matches that reached game over, by reason"))
	err = multierr.Append(err, e)
	m.attacks, e = meter.Int64Counter("defender.attacks",
		metric.WithDescription("Attacks applied, by kind and whether a bot issued them"))
	err = multierr.Append(err, e)
	m.exploded, e = meter.Int64Counter("defender.jobs.exploded",
		metric.WithDescription("Jobs that reached the end of their lifetime"))
	err = multierr.Append(err, e)
	m.serviced, e = meter.Int64Counter("defender.jobs.serviced",
		metric.WithDescription("Jobs serviced, by whether they were decoys"))
	err = multierr.Append(err, e)
	m.rejected, e = meter.Int64Counter("defender.actions.rejected",
		metric.WithDescription("Client actions rejected, by reason"))
	err = multierr.Append(err, e)

	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RegisterGauges reports hub-wide totals, sampled at scrape time.
func RegisterGauges(meter metric.Meter, lobbies, connections func(context.Context) (int64, error)) error {
	_, err := meter.Int64ObservableGauge("defender.lobbies",
		metric.WithDescription("Open lobbies"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			n, err := lobbies(ctx)
			if err != nil {
				return nil // a slow hub must not fail the scrape
			}
			obs.Observe(n)
			return nil
		}),
	)
	if err != nil {
		return err
	}
	_, err = meter.Int64ObservableGauge("defender.connections",
		metric.WithDescription("Open websocket connections across lobbies"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			n, err := connections(ctx)
			if err != nil {
				return nil
			}
			obs.Observe(n)
			return nil
		}),
	)
	return err
}

func (m *Metrics) MatchStarted() {
	if m == nil {
		return
	}
	m.matchesStarted.Add(context.Background(), 1)
}

func (m *Metrics) MatchEnded(reason string) {
	if m == nil {
		return
	}
	m.matchesEnded.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) Attack(kind string, bot bool) {
	if m == nil {
		return
	}
	m.attacks.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("bot", bot),
	))
}

func (m *Metrics) JobExploded() {
	if m == nil {
		return
	}
	m.exploded.Add(context.Background(), 1)
}

func (m *Metrics) JobServiced(decoy bool) {
	if m == nil {
		return
	}
	m.serviced.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("decoy", decoy)))
}

func (m *Metrics) ActionRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

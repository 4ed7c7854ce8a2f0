// Package otelx bridges authcore counters to OpenTelemetry observable
// instruments. The exporter pulls a [metrics.Snapshot] on every collection
// cycle; nothing is pushed from the hot path.
package otelx

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/karsvik/authcore/metrics"
)

var (
	ErrNilMeter  = errors.New("otelx: nil meter")
	ErrNilSource = errors.New("otelx: nil metrics source")
)

// Source supplies counter snapshots, typically *authcore.Service.
type Source interface {
	MetricsSnapshot() metrics.Snapshot
}

type observedCounter struct {
	id         metrics.ID
	instrument metric.Int64ObservableCounter
}

// Exporter registers one observable counter per metrics ID.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []observedCounter
}

// NewExporter builds the instruments and registers the collection callback.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	ids := metrics.IDs()
	e := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(ids)),
	}
	observables := make([]metric.Observable, 0, len(ids))

	for _, id := range ids {
		ins, err := meter.Int64ObservableCounter(id.Name())
		if err != nil {
			return nil, fmt.Errorf("otelx: create counter %s: %w", id.Name(), err)
		}
		e.counters = append(e.counters, observedCounter{id: id, instrument: ins})
		observables = append(observables, ins)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := e.source.MetricsSnapshot()
		for _, c := range e.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Get(c.id)))
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("otelx: register callback: %w", err)
	}
	e.registration = registration

	return e, nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

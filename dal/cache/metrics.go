package cache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const cacheFoundKey = "found"

type metrics struct {
	getCounter     metric.Int64Counter
	evictedCounter metric.Int64Counter

	reg metric.Registration
}

func newMetrics(name string, size func() int) (*metrics, error) {
	getCounter, err := meter.Int64Counter("dal_cache_"+name+"_get_counter",
		metric.WithDescription("dal cache get event counter"))
	if err != nil {
		return nil, err
	}

	evictedCounter, err := meter.Int64Counter("dal_cache_"+name+"_evicted_counter",
		metric.WithDescription("dal cache evicted event counter"))
	if err != nil {
		return nil, err
	}

	cacheSize, err := meter.Int64ObservableGauge("dal_cache_"+name+"_size",
		metric.WithDescription("total amount of items in the cache"),
	)
	if err != nil {
		return nil, err
	}

	callback := func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(cacheSize, int64(size()))
		return nil
	}
	reg, err := meter.RegisterCallback(callback, cacheSize)
	if err != nil {
		return nil, err
	}

	return &metrics{
		getCounter:     getCounter,
		evictedCounter: evictedCounter,
		reg:            reg,
	}, nil
}

func (m *metrics) close() error {
	if m == nil {
		return nil
	}
	return m.reg.Unregister()
}

func (m *metrics) observeEvicted() {
	if m == nil {
		return
	}
	m.evictedCounter.Add(context.Background(), 1)
}

func (m *metrics) observeGet(found bool) {
	if m == nil {
		return
	}
	m.getCounter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Bool(cacheFoundKey, found)))
}

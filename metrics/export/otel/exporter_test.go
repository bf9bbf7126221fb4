package otel

import (
	"context"
	"sync"
	"testing"

	driveauth "github.com/weisiqian3/driveauth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot driveauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() driveauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot
}

func (f *fakeSource) DroppedAuditEvents() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("driveauth-test")

	src := &fakeSource{dropped: 1}
	src.snapshot.Counters[driveauth.MetricLoginSuccess] = 3
	src.snapshot.LatencyBuckets = [8]uint64{1, 1, 1, 1, 1, 1, 1, 1}
	src.snapshot.LatencyCount = 8

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	_, provider := newTestMeter()
	meter := provider.Meter("driveauth-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("err = %v, want ErrNilSource", err)
	}
}

func TestExporterRejectsNilMeter(t *testing.T) {
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("err = %v, want ErrNilMeter", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("driveauth-test")

	src := &fakeSource{}
	src.snapshot.Counters[driveauth.MetricLoginSuccess] = 1

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[driveauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

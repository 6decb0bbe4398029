package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/curbfare/fulfillment/internal/service/models/order"
	"github.com/curbfare/fulfillment/internal/service/models/truck"
	"github.com/curbfare/fulfillment/internal/service/services/metrics"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderReader struct {
	durations    []time.Duration
	durationsErr error
	queue        truck.QueueSnapshot
	queueErr     error

	// block makes both reads wait for context cancellation
	block bool

	gotLimit int
}

func (f *fakeOrderReader) PrepDurations(ctx context.Context, _ uuid.UUID, limit int) ([]time.Duration, error) {
	f.gotLimit = limit

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	return f.durations, f.durationsErr
}

func (f *fakeOrderReader) ActiveQueue(ctx context.Context, _ uuid.UUID) (truck.QueueSnapshot, error) {
	if f.block {
		<-ctx.Done()
		return truck.QueueSnapshot{}, ctx.Err()
	}

	return f.queue, f.queueErr
}

type fakeTruckReader struct {
	truck truck.Truck
	err   error
}

func (f fakeTruckReader) Get(context.Context, uuid.UUID) (truck.Truck, error) {
	return f.truck, f.err
}

func TestSnapshots_AveragesRecentHistory(t *testing.T) {
	orders := &fakeOrderReader{
		durations: []time.Duration{10 * time.Minute, 20 * time.Minute, 30 * time.Minute},
		queue:     truck.QueueSnapshot{Position: 2},
	}
	trucks := fakeTruckReader{truck: truck.Truck{MaxConcurrentOrders: 5}}

	svc := metrics.MustNewService(
		metrics.WithOrderReader(orders),
		metrics.WithTruckReader(trucks),
	)

	m, q, err := svc.Snapshots(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.InDelta(t, 20.0, m.AveragePrepMinutes, 1e-9)
	assert.Equal(t, 3, m.SampleSize)
	assert.Equal(t, 5, m.MaxConcurrentOrders)
	assert.Equal(t, 2, q.Position)

	// the average looks at a bounded window, not the whole archive
	assert.Equal(t, 20, orders.gotLimit)
}

func TestSnapshots_FallsBackToTruckDefault(t *testing.T) {
	orders := &fakeOrderReader{}
	trucks := fakeTruckReader{truck: truck.Truck{DefaultPrepMinutes: 12, MaxConcurrentOrders: 4}}

	svc := metrics.MustNewService(
		metrics.WithOrderReader(orders),
		metrics.WithTruckReader(trucks),
	)

	m, _, err := svc.Snapshots(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.InDelta(t, 12.0, m.AveragePrepMinutes, 1e-9)
	assert.Equal(t, 0, m.SampleSize)
	assert.Equal(t, 4, m.MaxConcurrentOrders)
}

func TestSnapshots_FallsBackToGlobalDefault(t *testing.T) {
	orders := &fakeOrderReader{}
	trucks := fakeTruckReader{err: order.ErrNotFound}

	svc := metrics.MustNewService(
		metrics.WithOrderReader(orders),
		metrics.WithTruckReader(trucks),
	)

	m, _, err := svc.Snapshots(context.Background(), uuid.New())
	require.NoError(t, err, "an unknown truck still gets the global defaults")

	assert.InDelta(t, float64(truck.DefaultPrepMinutes), m.AveragePrepMinutes, 1e-9)
	assert.Equal(t, truck.DefaultMaxConcurrentOrders, m.MaxConcurrentOrders)
}

func TestSnapshots_HistoryBeatsConfiguredDefault(t *testing.T) {
	orders := &fakeOrderReader{
		durations: []time.Duration{8 * time.Minute, 8 * time.Minute},
	}
	trucks := fakeTruckReader{truck: truck.Truck{DefaultPrepMinutes: 25}}

	svc := metrics.MustNewService(
		metrics.WithOrderReader(orders),
		metrics.WithTruckReader(trucks),
	)

	m, _, err := svc.Snapshots(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.InDelta(t, 8.0, m.AveragePrepMinutes, 1e-9)
}

func TestSnapshots_StoreFailure(t *testing.T) {
	tests := []struct {
		name   string
		orders *fakeOrderReader
		trucks fakeTruckReader
	}{
		{
			name:   "history read fails",
			orders: &fakeOrderReader{durationsErr: errors.New("connection refused")},
		},
		{
			name:   "queue read fails",
			orders: &fakeOrderReader{queueErr: errors.New("connection refused")},
		},
		{
			name:   "truck config read fails",
			orders: &fakeOrderReader{},
			trucks: fakeTruckReader{err: errors.New("connection refused")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := metrics.MustNewService(
				metrics.WithOrderReader(tt.orders),
				metrics.WithTruckReader(tt.trucks),
			)

			_, _, err := svc.Snapshots(context.Background(), uuid.New())
			require.ErrorIs(t, err, metrics.ErrMetricsUnavailable)
		})
	}
}

func TestSnapshots_Timeout(t *testing.T) {
	orders := &fakeOrderReader{block: true}
	trucks := fakeTruckReader{}

	svc := metrics.MustNewService(
		metrics.WithOrderReader(orders),
		metrics.WithTruckReader(trucks),
		metrics.WithTimeout(50*time.Millisecond),
	)

	start := time.Now()
	_, _, err := svc.Snapshots(context.Background(), uuid.New())
	require.ErrorIs(t, err, metrics.ErrMetricsUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second, "a slow store must not block the caller")
}

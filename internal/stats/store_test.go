// v0
// internal/stats/store_test.go
package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adilblanco/Kafka-iot-poc/internal/sensor"
)

func fixedClock() func() time.Time {
	ts := time.Date(2025, 10, 29, 14, 30, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestStoreStartsZeroed(t *testing.T) {
	s := New(fixedClock())
	snap := s.Snapshot()
	require.Zero(t, snap.ReadingsGenerated)
	require.Zero(t, snap.EventsPublished)
	require.Nil(t, snap.LastPublishAt)
	require.Nil(t, snap.LastError)
	require.Len(t, snap.AlertsByKind, len(sensor.AllKinds()))
	for _, k := range sensor.AllKinds() {
		v, ok := snap.AlertsByKind[k]
		require.True(t, ok, "kind %s missing", k)
		require.Zero(t, v)
	}
}

func TestStoreRecordsAndResets(t *testing.T) {
	s := New(fixedClock())
	s.RecordReading()
	s.RecordEventPublished()
	s.RecordAlertPublished([]sensor.Kind{sensor.LowBattery, sensor.HighTemperature})
	s.RecordAttemptFailure(RoleAlerts, "broker down")
	s.RecordOutcomeFailure()

	snap := s.Snapshot()
	require.EqualValues(t, 1, snap.ReadingsGenerated)
	require.EqualValues(t, 1, snap.EventsPublished)
	require.EqualValues(t, 1, snap.AlertsPublished)
	require.EqualValues(t, 1, snap.PublishFailures)
	require.EqualValues(t, 1, snap.FailuresByTopic[RoleAlerts])
	require.EqualValues(t, 1, snap.AlertsByKind[sensor.LowBattery])
	require.EqualValues(t, 1, snap.AlertsByKind[sensor.HighTemperature])
	require.NotNil(t, snap.LastPublishAt)
	require.Equal(t, "broker down", snap.LastError.Reason)

	prev := s.Reset()
	require.EqualValues(t, 1, prev.EventsPublished)

	after := s.Snapshot()
	require.Zero(t, after.ReadingsGenerated)
	require.Zero(t, after.EventsPublished)
	require.Zero(t, after.AlertsPublished)
	require.Zero(t, after.PublishFailures)
	require.Nil(t, after.LastPublishAt)
	require.Nil(t, after.LastError)
	for _, v := range after.AlertsByKind {
		require.Zero(t, v)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	s := New(nil)
	s.RecordAlertPublished([]sensor.Kind{sensor.LowBattery})
	snap := s.Snapshot()
	snap.AlertsByKind[sensor.LowBattery] = 99
	require.EqualValues(t, 1, s.Snapshot().AlertsByKind[sensor.LowBattery])
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	s := New(nil)
	const workers, perWorker = 16, 250
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for range perWorker {
				s.RecordReading()
				s.RecordEventPublished()
				s.RecordAlertPublished([]sensor.Kind{sensor.HighHumidity})
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()
	snap := s.Snapshot()
	require.EqualValues(t, workers*perWorker, snap.ReadingsGenerated)
	require.EqualValues(t, workers*perWorker, snap.EventsPublished)
	require.EqualValues(t, workers*perWorker, snap.AlertsByKind[sensor.HighHumidity])
}

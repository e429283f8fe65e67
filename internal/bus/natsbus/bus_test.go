// v0
// internal/bus/natsbus/bus_test.go
package natsbus

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
)

type recordingStream struct {
	subjects []string
	err      error
}

func (r *recordingStream) Publish(_ context.Context, subject string, _ []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.subjects = append(r.subjects, subject)
	return &jetstream.PubAck{Stream: "SENSOR_EVENTS", Sequence: uint64(len(r.subjects))}, nil
}

func TestSubjectFor(t *testing.T) {
	b := &Bus{cfg: Config{SubjectPrefix: "iot"}}
	cases := map[string][2]string{
		"iot.sensors.sensor_001": {"sensors", "sensor_001"},
		"iot.alerts":             {"alerts", ""},
		"iot.alerts.a_b_c":       {"alerts", "a.b>c"},
	}
	for want, in := range cases {
		if got := b.SubjectFor(in[0], in[1]); got != want {
			t.Fatalf("SubjectFor(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestPublishUsesStream(t *testing.T) {
	stream := &recordingStream{}
	b := &Bus{cfg: Config{SubjectPrefix: "iot"}, js: stream, log: slog.Default()}
	if err := b.Publish(context.Background(), "sensors", "sensor_002", []byte("{}")); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	if len(stream.subjects) != 1 || stream.subjects[0] != "iot.sensors.sensor_002" {
		t.Fatalf("unexpected subjects %v", stream.subjects)
	}

	boom := errors.New("no responders")
	stream.err = boom
	if err := b.Publish(context.Background(), "sensors", "sensor_002", nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := b.Healthy(context.Background()); err == nil {
		t.Fatalf("expected unhealthy bus without connection")
	}
}

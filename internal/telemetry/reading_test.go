package telemetry

import (
	"encoding/json"
	"testing"
	"time"
)

func TestReading_JSONShape(t *testing.T) {
	r := Reading{Time: time.Unix(1700000000, 500_000_000), HR: 72, SpO2: 98, Temp: 36.6}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"timestamp":1700000000.5,"hr":72,"spo2":98,"temp":36.6}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestReading_DecodesExistingHistoryFile(t *testing.T) {
	// Shape written by earlier deployments: float epoch seconds, floats.
	raw := `[{"timestamp": 1712345678.25, "hr": 70.0, "spo2": 97.0, "temp": 36.5},
	         {"timestamp": 1712345679.75, "hr": 71.0, "spo2": 0, "temp": 0}]`

	var history []Reading
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len = %d, want 2", len(history))
	}
	if got := history[0].Time; !got.Equal(time.Unix(1712345678, 250_000_000)) {
		t.Errorf("history[0].Time = %v", got)
	}
	if history[1].HR != 71 || history[1].SpO2 != 0 {
		t.Errorf("history[1] = %+v", history[1])
	}
}

func TestReading_Fields(t *testing.T) {
	f := Reading{HR: 1, SpO2: 2, Temp: 3}.Fields()
	if f["hr"] != 1 || f["spo2"] != 2 || f["temp"] != 3 || len(f) != 3 {
		t.Errorf("Fields() = %v", f)
	}
}

func TestMultiSink(t *testing.T) {
	var got []string
	record := func(tag string) Sink {
		return SinkFunc(func(id string, _ Reading) { got = append(got, tag+":"+id) })
	}

	MultiSink{record("a"), nil, record("b")}.RecordReading("device_1", Reading{})

	if len(got) != 2 || got[0] != "a:device_1" || got[1] != "b:device_1" {
		t.Errorf("sinks called = %v", got)
	}
}

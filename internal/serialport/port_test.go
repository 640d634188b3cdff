package serialport

import (
	"errors"
	"strings"
	"testing"
)

// chunkPort replays scripted Read results. A nil chunk with a nil error is a timeout.
type chunkPort struct {
	reads  []readResult
	closed bool
}

type readResult struct {
	data string
	err  error
}

func (p *chunkPort) Read(b []byte) (int, error) {
	if len(p.reads) == 0 {
		return 0, nil
	}
	r := &p.reads[0]
	n := copy(b, r.data)
	r.data = r.data[n:]
	if r.data != "" {
		return n, nil
	}
	err := r.err
	p.reads = p.reads[1:]
	return n, err
}

func (p *chunkPort) Close() error {
	p.closed = true
	return nil
}

func TestLineConn_ReadLine(t *testing.T) {
	port := &chunkPort{reads: []readResult{
		{data: "hr=72;spo2="},
		{data: "98\r\nARDUINO_READY\n"},
		{data: "temp"},
		{},
		{data: "=36.6\n"},
	}}
	conn := NewLineConn(port)

	steps := []struct {
		want    string
		wantErr error
	}{
		{want: "hr=72;spo2=98"},
		{want: "ARDUINO_READY"},
		{wantErr: ErrReadTimeout},
		{want: "temp=36.6"},
		{wantErr: ErrReadTimeout},
	}
	for i, step := range steps {
		got, err := conn.ReadLine()
		if step.wantErr != nil {
			if !errors.Is(err, step.wantErr) {
				t.Fatalf("step %d: error = %v, want %v", i, err, step.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("step %d: error = %v", i, err)
		}
		if got != step.want {
			t.Errorf("step %d: line = %q, want %q", i, got, step.want)
		}
	}
}

func TestLineConn_FatalError(t *testing.T) {
	unplugged := errors.New("port has been closed")
	conn := NewLineConn(&chunkPort{reads: []readResult{{data: "partial"}, {err: unplugged}}})

	if _, err := conn.ReadLine(); !errors.Is(err, unplugged) {
		t.Errorf("ReadLine() error = %v, want %v", err, unplugged)
	}
}

func TestLineConn_InvalidUTF8Dropped(t *testing.T) {
	conn := NewLineConn(&chunkPort{reads: []readResult{{data: "hr=\xff72\n"}}})

	got, err := conn.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine() error = %v", err)
	}
	if got != "hr=72" {
		t.Errorf("ReadLine() = %q, want hr=72", got)
	}
}

func TestLineConn_LineTooLong(t *testing.T) {
	tests := []struct {
		name  string
		reads []readResult
	}{
		{
			name:  "overflow ends on a chunk boundary",
			reads: []readResult{{data: strings.Repeat("x", 4352)}, {data: "hr=1\n"}, {data: "hr=72\n"}},
		},
		{
			name:  "tail shares a chunk with the next line",
			reads: []readResult{{data: strings.Repeat("x", 5000) + "hr=1\nhr=72\n"}},
		},
		{
			name:  "tail arrives after a timeout",
			reads: []readResult{{data: strings.Repeat("x", 5000)}, {}, {data: "yy=1\nhr=72\n"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := NewLineConn(&chunkPort{reads: tt.reads})

			if _, err := conn.ReadLine(); !errors.Is(err, ErrLineTooLong) {
				t.Fatalf("ReadLine() error = %v, want ErrLineTooLong", err)
			}
			var got string
			for range 5 {
				line, err := conn.ReadLine()
				if errors.Is(err, ErrReadTimeout) {
					continue
				}
				if err != nil {
					t.Fatalf("ReadLine() after overflow error = %v", err)
				}
				got = line
				break
			}
			if got != "hr=72" {
				t.Errorf("first line after overflow = %q, want hr=72", got)
			}
		})
	}
}

func TestLineConn_Close(t *testing.T) {
	port := &chunkPort{}
	conn := NewLineConn(port)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !port.closed {
		t.Error("underlying port not closed")
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := conn.ReadLine(); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadLine() after Close error = %v, want ErrClosed", err)
	}
}

func TestEnumeratorFunc(t *testing.T) {
	e := EnumeratorFunc(func() ([]PortInfo, error) {
		return []PortInfo{{Name: "/dev/ttyACM0", SerialNumber: "SN1"}}, nil
	})
	ports, err := e.List()
	if err != nil || len(ports) != 1 || ports[0].SerialNumber != "SN1" {
		t.Errorf("List() = %v, %v", ports, err)
	}
}

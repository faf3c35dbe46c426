package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestEncodeClientMessagesUseExternalTags(t *testing.T) {
	cases := []struct {
		msg  ClientMessage
		want string
	}{
		{Join(), `{"Join":null}` + "\n"},
		{Disconnect(), `{"Disconnect":null}` + "\n"},
		{Move(Vector2{X: 1, Y: -0.5}), `{"Move":{"direction":{"x":1,"y":-0.5}}}` + "\n"},
	}
	for _, c := range cases {
		b, err := Encode(c.msg)
		if err != nil {
			t.Fatalf("encode %v: %v", c.msg.Kind, err)
		}
		if string(b) != c.want {
			t.Fatalf("encode %v = %s, want %s", c.msg.Kind, b, c.want)
		}
	}
}

func TestDecodeClientAcceptsBothUnitForms(t *testing.T) {
	for _, line := range []string{`{"Join":null}`, `"Join"`, `{"Join":{}}`, "  {\"Join\":null}\r\n"} {
		m, err := DecodeClient([]byte(line))
		if err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if m.Kind != ClientJoin {
			t.Fatalf("decode %q kind = %v, want Join", line, m.Kind)
		}
	}
}

func TestDecodeClientMove(t *testing.T) {
	m, err := DecodeClient([]byte(`{"Move":{"direction":{"x":5,"y":0}}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Kind != ClientMove || m.Direction != (Vector2{X: 5}) {
		t.Fatalf("got %+v", m)
	}
}

func TestDecodeClientRejectsBadLines(t *testing.T) {
	cases := []struct {
		line string
		want error
	}{
		{`{"Jump":null}`, ErrUnknownTag},
		{`{"Join":null,"Disconnect":null}`, ErrAmbiguousTag},
		{`{}`, ErrEmptyMessage},
		{``, ErrEmptyMessage},
	}
	for _, c := range cases {
		_, err := DecodeClient([]byte(c.line))
		if !errors.Is(err, c.want) {
			t.Fatalf("decode %q err = %v, want %v", c.line, err, c.want)
		}
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("decode %q err is not a *DecodeError: %T", c.line, err)
		}
	}
	for _, line := range []string{`{"Move":null}`, `{"Move":{}}`, `not json`, `{"Move":{"direction":"up"}}`} {
		if _, err := DecodeClient([]byte(line)); err == nil {
			t.Fatalf("decode %q: expected error", line)
		}
	}
}

func TestServerMessageRoundTrip(t *testing.T) {
	update := GameStateUpdate{
		Tick: 7,
		Players: map[string]PlayerState{
			"1": {Position: Vector2{X: 1, Y: 2}, Velocity: Vector2{X: -1}, LastUpdate: 42},
		},
		ServerTime: 99,
	}
	b, err := Encode(GameState(update))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Count(b, []byte("\n")) != 1 || b[len(b)-1] != '\n' {
		t.Fatalf("expected exactly one trailing newline, got %q", b)
	}
	want := `{"GameState":{"tick":7,"players":{"1":{"position":{"x":1,"y":2},"velocity":{"x":-1,"y":0},"last_update":42}},"server_time":99}}` + "\n"
	if string(b) != want {
		t.Fatalf("encode = %s\nwant     %s", b, want)
	}
	m, err := DecodeServer(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Kind != ServerGameState || m.State.Tick != 7 || m.State.Players["1"].LastUpdate != 42 {
		t.Fatalf("got %+v", m)
	}
}

func TestServerMessageEscapesNewlines(t *testing.T) {
	b, err := Encode(Error("line one\nline two"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.IndexByte(b[:len(b)-1], '\n') >= 0 {
		t.Fatalf("encoded message contains a raw newline: %q", b)
	}
	m, err := DecodeServer(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Kind != ServerError || m.Message != "line one\nline two" {
		t.Fatalf("got %+v", m)
	}
}

func TestEmptySnapshotEncodesPlayersObject(t *testing.T) {
	b, err := Encode(GameState(GameStateUpdate{Tick: 1}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(b), `"players":{}`) {
		t.Fatalf("expected empty players object, got %s", b)
	}
}

func TestJoinAcceptedWireShape(t *testing.T) {
	b, err := Encode(JoinAccepted("3"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(b) != `{"JoinAccepted":{"player_id":"3"}}`+"\n" {
		t.Fatalf("got %s", b)
	}
}

func TestLineReader(t *testing.T) {
	r := NewLineReader(strings.NewReader("a\n\nbc\nlast"), 16)
	var got []string
	for {
		line, err := r.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, string(line))
	}
	want := []string{"a", "", "bc", "last"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("lines = %q, want %q", got, want)
	}
}

func TestLineReaderRejectsOversizedLine(t *testing.T) {
	r := NewLineReader(strings.NewReader(strings.Repeat("x", 64)+"\n"), 16)
	if _, err := r.ReadLine(); err == nil || err == io.EOF {
		t.Fatalf("expected a too-long error, got %v", err)
	}
}

func TestTimestampSince(t *testing.T) {
	if d := Timestamp(1500).Since(1000); d.Milliseconds() != 500 {
		t.Fatalf("since = %v", d)
	}
	if d := Timestamp(1000).Since(1500); d != 0 {
		t.Fatalf("since should saturate at zero, got %v", d)
	}
}

package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// fakeDeepgram upgrades the connection, echoes an interim then a final
// transcript per binary frame batch, and closes after CloseStream.
func fakeDeepgram(t *testing.T, wantKey string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token "+wantKey {
			t.Errorf("authorization = %q", got)
		}
		if got := r.URL.Query().Get("encoding"); got != "linear16" {
			t.Errorf("encoding = %q", got)
		}
		if got := r.URL.Query().Get("sample_rate"); got != "16000" {
			t.Errorf("sample_rate = %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var gotAudio bool
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch msgType {
			case websocket.BinaryMessage:
				gotAudio = true
			case websocket.TextMessage:
				if !strings.Contains(string(data), "CloseStream") {
					continue
				}
				if gotAudio {
					conn.WriteMessage(websocket.TextMessage, []byte(
						`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"ramesh ka","confidence":0.5}]}}`))
					conn.WriteMessage(websocket.TextMessage, []byte(
						`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"ramesh ka balance batao","confidence":0.96}]}}`))
				}
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata"}`))
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDeepgramTranscribe(t *testing.T) {
	srv := fakeDeepgram(t, "dg-key")
	defer srv.Close()

	dg := NewDeepgram(DeepgramConfig{APIKey: "dg-key", Host: wsURL(srv)}, zerolog.Nop())
	res, err := dg.Transcribe(context.Background(), make([]byte, 20000))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "ramesh ka balance batao" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Confidence < 0.9 {
		t.Errorf("confidence = %v", res.Confidence)
	}
	if res.Language != "hi" {
		t.Errorf("language = %q", res.Language)
	}
}

func TestDeepgramStreamEmitsInterimAndFinal(t *testing.T) {
	srv := fakeDeepgram(t, "dg-key")
	defer srv.Close()

	dg := NewDeepgram(DeepgramConfig{APIKey: "dg-key", Host: wsURL(srv)}, zerolog.Nop())
	stream, err := dg.Stream(context.Background())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	if err := stream.Send(make([]byte, 3200)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		t.Fatalf("CloseSend: %v", err)
	}

	var got []Transcript
	for tr := range stream.Transcripts() {
		got = append(got, tr)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream err: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("transcripts = %d, want interim + final", len(got))
	}
	if got[0].IsFinal || got[0].Text != "ramesh ka" {
		t.Errorf("interim = %+v", got[0])
	}
	if !got[1].IsFinal || got[1].Text != "ramesh ka balance batao" {
		t.Errorf("final = %+v", got[1])
	}
}

func TestDeepgramTranscribeRejectsEmptyAudio(t *testing.T) {
	dg := NewDeepgram(DeepgramConfig{APIKey: "dg-key"}, zerolog.Nop())
	if _, err := dg.Transcribe(context.Background(), nil); err == nil {
		t.Fatal("empty audio must error")
	}
}

func TestDeepgramStreamURL(t *testing.T) {
	dg := NewDeepgram(DeepgramConfig{APIKey: "k"}, zerolog.Nop())
	url := dg.streamURL()
	for _, want := range []string{"wss://api.deepgram.com/v1/listen?", "model=nova-2", "language=hi", "interim_results=true"} {
		if !strings.Contains(url, want) {
			t.Errorf("url %q missing %q", url, want)
		}
	}
}

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/guided"
	"github.com/dgnsrekt/readaloud/readaloud"
	"github.com/gorilla/websocket"
)

type fakeController struct {
	tree *guided.Tree

	mu       sync.Mutex
	calls    []string
	current  readaloud.Playback
	settings []readaloud.Settings
	subs     []chan readaloud.Playback
}

func newFakeController() *fakeController {
	tree := guided.NewTree(guided.Object{
		Roles: []guided.Role{guided.RoleSection},
		Children: []guided.Object{
			{Roles: []guided.Role{guided.RoleHeading}, TextRef: "ch1.xhtml#h", Text: &guided.ObjectText{Plain: "Chapter one"}},
			{TextRef: "ch1.xhtml#p1", Text: &guided.ObjectText{Plain: "First paragraph."}},
		},
	})
	return &fakeController{
		tree: tree,
		current: readaloud.Playback{
			SessionID: "session-1",
			Condition: readaloud.Ready,
			Node:      1,
			Settings:  readaloud.DefaultSettings(),
		},
	}
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) publish(p readaloud.Playback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = p
	for _, ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- p
	}
}

func (f *fakeController) ID() string         { return "session-1" }
func (f *fakeController) Tree() *guided.Tree { return f.tree }
func (f *fakeController) Current() readaloud.Playback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeController) Subscribe() (<-chan readaloud.Playback, func()) {
	ch := make(chan readaloud.Playback, 1)
	f.mu.Lock()
	ch <- f.current
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, func() {}
}

func (f *fakeController) Play() error            { return f.record("play") }
func (f *fakeController) Pause() error           { return f.record("pause") }
func (f *fakeController) TogglePlayPause() error { return f.record("toggle") }
func (f *fakeController) NextNode() error        { return f.record("next") }
func (f *fakeController) PreviousNode() error    { return f.record("previous") }
func (f *fakeController) CanSkip() bool          { return false }
func (f *fakeController) CanEscape() bool        { return true }

func (f *fakeController) GoTo(node guided.NodeID) error {
	if !f.tree.Valid(node) {
		return readaloud.ErrLocationNotFound
	}
	return f.record("go")
}

func (f *fakeController) GoToLocation(loc readaloud.Location) error {
	if loc.Href != "ch1.xhtml" {
		return readaloud.ErrLocationNotFound
	}
	return f.record("go_location " + loc.CSSSelector)
}

func (f *fakeController) SkipForward(force bool) error {
	if force {
		return f.record("skip_forward!")
	}
	return f.record("skip_forward")
}

func (f *fakeController) SkipBackward(bool) error   { return f.record("skip_backward") }
func (f *fakeController) EscapeForward(bool) error  { return f.record("escape_forward") }
func (f *fakeController) EscapeBackward(bool) error { return f.record("escape_backward") }

func (f *fakeController) SetSettings(s readaloud.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = append(f.settings, s)
	f.calls = append(f.calls, "settings")
	return nil
}

func TestCommandApply(t *testing.T) {
	node := 2
	tests := []struct {
		name    string
		cmd     Command
		want    string
		wantErr error
	}{
		{name: "play", cmd: Command{Name: "play"}, want: "play"},
		{name: "toggle", cmd: Command{Name: "toggle"}, want: "toggle"},
		{name: "forced skip", cmd: Command{Name: "skip_forward", Force: true}, want: "skip_forward!"},
		{name: "escape", cmd: Command{Name: "escape_backward"}, want: "escape_backward"},
		{name: "go", cmd: Command{Name: "go", Node: &node}, want: "go"},
		{name: "go without node", cmd: Command{Name: "go"}, wantErr: ErrBadArgument},
		{name: "location", cmd: Command{Name: "go_location", Location: &readaloud.Location{Href: "ch1.xhtml", CSSSelector: "#p1"}}, want: "go_location #p1"},
		{name: "unknown location", cmd: Command{Name: "go_location", Location: &readaloud.Location{Href: "x.xhtml"}}, wantErr: readaloud.ErrLocationNotFound},
		{name: "speed", cmd: Command{Name: "speed", Value: 1.5}, want: "settings"},
		{name: "zero speed", cmd: Command{Name: "speed"}, wantErr: ErrBadArgument},
		{name: "unknown", cmd: Command{Name: "rewind"}, wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := newFakeController()
			err := tt.cmd.Apply(ctl)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Apply() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if calls := ctl.Calls(); len(calls) != 1 || calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", calls, tt.want)
			}
		})
	}

	ctl := newFakeController()
	if err := (Command{Name: "pitch", Value: 0.8}).Apply(ctl); err != nil {
		t.Fatal(err)
	}
	if s := ctl.settings[0]; s.Pitch != 0.8 || s.Speed != 1.0 {
		t.Errorf("settings = pitch %v speed %v, want 0.8 and unchanged speed", s.Pitch, s.Speed)
	}
}

func TestHTTPEndpoints(t *testing.T) {
	ctl := newFakeController()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("readaloud_commands_total 0\n"))
	})
	srv := httptest.NewServer(NewServer(ctl, WithMetrics(metrics)))
	defer srv.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		return resp.StatusCode, string(body)
	}

	if code, body := get("/healthz"); code != http.StatusOK || !strings.Contains(body, "session-1") {
		t.Errorf("/healthz = %d %s", code, body)
	}
	if code, body := get("/metrics"); code != http.StatusOK || !strings.Contains(body, "readaloud_commands_total") {
		t.Errorf("/metrics = %d %s", code, body)
	}

	code, body := get("/api/state")
	if code != http.StatusOK {
		t.Fatalf("/api/state = %d", code)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Condition != "ready" || snap.Node != 1 || snap.Label != "Chapter one" || !snap.CanEscape || snap.Speed != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	code, body = get("/api/outline")
	if code != http.StatusOK || !strings.Contains(body, `"First paragraph."`) || !strings.Contains(body, `"heading"`) {
		t.Errorf("/api/outline = %d %s", code, body)
	}

	post := func(body string) int {
		t.Helper()
		resp, err := http.Post(srv.URL+"/api/commands", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if code := post(`{"command":"pause"}`); code != http.StatusAccepted {
		t.Errorf("pause = %d, want 202", code)
	}
	if code := post(`{"command":"fly"}`); code != http.StatusBadRequest {
		t.Errorf("unknown command = %d, want 400", code)
	}
	if code := post(`{"command":"go","node":99}`); code != http.StatusNotFound {
		t.Errorf("invalid node = %d, want 404", code)
	}
	if code := post(`not json`); code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", code)
	}
	if calls := ctl.Calls(); len(calls) != 1 || calls[0] != "pause" {
		t.Errorf("calls = %v, want [pause]", calls)
	}
}

func TestWebsocket(t *testing.T) {
	ctl := newFakeController()
	srv := httptest.NewServer(NewServer(ctl))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	read := func() Message {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		return msg
	}

	if msg := read(); msg.Type != "state" || msg.State.Condition != "ready" {
		t.Fatalf("first message = %+v, want the current state", msg)
	}

	next := ctl.Current()
	next.Condition = readaloud.Starved
	next.PlayWhenReady = true
	ctl.publish(next)
	if msg := read(); msg.Type != "state" || msg.State.Condition != "starved" || !msg.State.Playing {
		t.Errorf("pushed message = %+v", msg)
	}

	if err := conn.WriteJSON(Command{Name: "next"}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(Command{Name: "bogus"}); err != nil {
		t.Fatal(err)
	}
	if msg := read(); msg.Type != "error" || !strings.Contains(msg.Error, "unknown command") {
		t.Errorf("error message = %+v", msg)
	}
	if calls := ctl.Calls(); len(calls) != 1 || calls[0] != "next" {
		t.Errorf("calls = %v, want [next]", calls)
	}
}

func TestWebsocketOrigins(t *testing.T) {
	srv := httptest.NewServer(NewServer(newFakeController(), WithAllowedOrigins([]string{"reader.example"})))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, header); err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign origin was accepted")
	}

	header.Set("Origin", "https://reader.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}

func TestWebsocketSameOriginByDefault(t *testing.T) {
	srv := httptest.NewServer(NewServer(newFakeController()))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, header); err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("cross origin client was accepted")
	}

	header.Set("Origin", srv.URL)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("same origin client rejected: %v", err)
	}
	conn.Close()
}

func TestServeShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- NewServer(newFakeController()).serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("serve() = %v, want nil after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

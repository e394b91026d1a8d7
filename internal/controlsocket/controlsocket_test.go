package controlsocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nestvr/corestream/internal/connerr"
)

type pingMsg struct {
	Value int `json:"value"`
}

func TestDialAcceptSendRecvRoundTrip(t *testing.T) {
	serverConnCh := make(chan *ProtoControlSocket, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := AcceptFromClient(w, r)
		if err != nil {
			t.Errorf("AcceptFromClient: %v", err)
			return
		}
		serverConnCh <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/control"
	client, err := DialToServer(url, time.Second)
	if err != nil {
		t.Fatalf("DialToServer: %v", err)
	}
	defer client.Close()

	server := <-serverConnCh
	defer server.Close()

	if err := client.Send(pingMsg{Value: 99}); err != nil {
		t.Fatalf("client.Send: %v", err)
	}

	var got pingMsg
	if err := server.Recv(&got, time.Second); err != nil {
		t.Fatalf("server.Recv: %v", err)
	}
	if got.Value != 99 {
		t.Fatalf("got.Value = %d, want 99", got.Value)
	}
}

func TestRecvTimeoutIsTryAgain(t *testing.T) {
	serverConnCh := make(chan *ProtoControlSocket, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := AcceptFromClient(w, r)
		if err != nil {
			t.Errorf("AcceptFromClient: %v", err)
			return
		}
		serverConnCh <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/control"
	client, err := DialToServer(url, time.Second)
	if err != nil {
		t.Fatalf("DialToServer: %v", err)
	}
	defer client.Close()
	<-serverConnCh

	var got pingMsg
	err = client.Recv(&got, 20*time.Millisecond)
	if !connerr.IsTryAgain(err) {
		t.Fatalf("expected a TryAgain timeout error, got %v", err)
	}
}

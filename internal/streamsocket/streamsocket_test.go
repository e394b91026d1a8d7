package streamsocket

import (
	"net"
	"testing"
	"time"

	"github.com/nestvr/corestream/internal/connerr"
)

func TestSendRecvRoundTrip(t *testing.T) {
	server, err := Listen(0, 0)
	if err != nil {
		t.Fatalf("Listen(server): %v", err)
	}
	defer server.Close()

	client, err := Listen(0, 0)
	if err != nil {
		t.Fatalf("Listen(client): %v", err)
	}
	defer client.Close()

	serverAddr := server.conn.LocalAddr().(*net.UDPAddr)
	client.Connect(serverAddr)

	recv := Subscribe[struct{}](server, Haptics)
	sender := RequestStream[struct{}](client, Haptics)

	if err := sender.Send(struct{}{}, []byte("pulse")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	env, err := recv.Recv(time.Second)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(env.Payload) != "pulse" {
		t.Fatalf("Payload = %q, want %q", env.Payload, "pulse")
	}
}

func TestRecvTimeoutIsTryAgain(t *testing.T) {
	s, err := Listen(0, 0)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer s.Close()

	recv := Subscribe[struct{}](s, Video)
	_, err = recv.Recv(20 * time.Millisecond)
	if !connerr.IsTryAgain(err) {
		t.Fatalf("expected a TryAgain timeout error, got %v", err)
	}
}

func TestDistinctStreamsDoNotCrossDeliver(t *testing.T) {
	server, err := Listen(0, 0)
	if err != nil {
		t.Fatalf("Listen(server): %v", err)
	}
	defer server.Close()

	client, err := Listen(0, 0)
	if err != nil {
		t.Fatalf("Listen(client): %v", err)
	}
	defer client.Close()

	client.Connect(server.conn.LocalAddr().(*net.UDPAddr))

	videoRecv := Subscribe[struct{}](server, Video)
	hapticsRecv := Subscribe[struct{}](server, Haptics)
	videoSend := RequestStream[struct{}](client, Video)

	if err := videoSend.Send(struct{}{}, []byte("frame")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if _, err := videoRecv.Recv(time.Second); err != nil {
		t.Fatalf("videoRecv.Recv: %v", err)
	}
	if _, err := hapticsRecv.Recv(20 * time.Millisecond); err == nil {
		t.Fatalf("expected hapticsRecv to time out, video packet leaked across streams")
	}
}

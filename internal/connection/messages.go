package connection

import "time"

// HUD message strings, exact per spec §7.
const (
	InitialMessage = "Searching for streamer...\n" +
		"Open the server then click \"Trust\"\n" +
		"next to the client entry"
	NetworkUnreachableMessage = "Cannot connect to the internet"
	StreamStartingMessage     = "The stream will begin soon\nPlease wait..."
	ServerRestartMessage      = "The streamer is restarting\nPlease wait..."
	ServerDisconnectedMessage = "The streamer has disconnected."
	ConnectionTimeoutMessage  = "Connection timeout."
)

// Timing constants governing the handshake and its retries (spec §9).
const (
	DiscoveryRetryPause     = 500 * time.Millisecond
	RetryConnectMinInterval = 1 * time.Second
	ConnectionRetryInterval = 1 * time.Second
	HandshakeActionTimeout  = 2 * time.Second
	StreamingRecvTimeout    = 500 * time.Millisecond
	KeepAliveInterval       = 1 * time.Second
)

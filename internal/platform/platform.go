// Package platform declares the small set of OS-specific queries the
// connection lifecycle needs (battery gauge, local IP, device model) —
// named out of scope as external collaborators in spec §1. Every platform
// gets a Queryer; non-Linux builds use a zero-value stub so the Battery
// packet stays well-formed even without a real implementation.
package platform

import "net"

// Queryer is the boundary the connection lifecycle depends on.
type Queryer interface {
	// Battery returns the gauge value in [0,1] and whether external power
	// is connected. ok is false if no battery-reporting path is available.
	Battery() (gauge float32, plugged bool, ok bool)
	// LocalIP returns the best-guess outbound local address, for display
	// in the HUD message.
	LocalIP() string
	// DeviceModel returns a human-readable device name.
	DeviceModel() string
}

// LocalIP dials a public address (without sending anything) to ask the
// kernel which local interface/address would be used, the common
// dependency-free trick for "what's my LAN IP".
func LocalIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "unknown"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "unknown"
	}
	return addr.IP.String()
}

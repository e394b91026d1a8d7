// Package apstats models the access-point statistics snapshot the bitrate
// controller may optionally ingest. Fields are string-typed because they
// come straight off a vendor SNMP/HTTP stats API, which this package parses
// but does not interpret numerically (see ap_stats.rs in original_source:
// the bitrate law never conditions on these values, it only keeps the most
// recent snapshot for the per-client lookup).
package apstats

// RxStats holds receive-direction counters for one client association.
type RxStats struct {
	Bytes       string
	Packets     string
	Bitrate     string
	LastSNR     string
	LastNSS     string
	LastRate    string
}

// TxStats holds transmit-direction counters for one client association.
type TxStats struct {
	Bytes        string
	Packets      string
	Bitrate      string
	Retries      string
	Failed       string
	LastRate     string
}

// Client is one associated station on an Interface, keyed by MAC and IP.
type Client struct {
	MacAddress string
	IPAddress  string
	Rx         RxStats
	Tx         TxStats
}

// Interface is one radio/SSID on the access point, with its associated clients.
type Interface struct {
	Name    string
	Clients []Client
}

// APStats is a full poll of an access point's stats endpoint.
type APStats struct {
	Interfaces []Interface
}

// FindClient returns the Client whose IPAddress matches ip, across every
// Interface, or false if the AP has no association for it. The bitrate
// controller uses this to pick out its one client's counters from a
// multi-client AP snapshot (spec §9: AP-stats ingestion is present but
// inert — this lookup is the only processing the manager does with it).
func (s APStats) FindClient(ip string) (Client, bool) {
	for _, iface := range s.Interfaces {
		for _, c := range iface.Clients {
			if c.IPAddress == ip {
				return c, true
			}
		}
	}
	return Client{}, false
}

// Source is satisfied by anything that can produce a fresh APStats snapshot
// on demand — the SNMP poller in snmppoll.go, or a test double.
type Source interface {
	Poll() (APStats, error)
}

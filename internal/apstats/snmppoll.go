package apstats

import (
	"fmt"
	"log/slog"

	"github.com/gosnmp/gosnmp"
)

// Well-known OIDs for the station-association table exposed by common
// consumer/enterprise AP SNMP agents. Kept narrow on purpose: this poller
// exists to exercise one concrete Source, not to be a general MIB browser.
const (
	oidStationMAC     = "1.3.6.1.4.1.14988.1.1.1.2.1.1"
	oidStationIP      = "1.3.6.1.4.1.14988.1.1.1.2.1.3"
	oidStationRxBytes = "1.3.6.1.4.1.14988.1.1.1.2.1.4"
	oidStationTxBytes = "1.3.6.1.4.1.14988.1.1.1.2.1.5"
)

// SNMPPoller is a Source backed by a gosnmp client pointed at one access
// point. Grounded on agent/internal/snmppoll/metrics.go's CollectMetrics
// shape: walk a table of PDUs, convert each to a string, assemble.
type SNMPPoller struct {
	InterfaceName string
	client        *gosnmp.GoSNMP
	log           *slog.Logger
}

// NewSNMPPoller dials (but does not yet poll) an SNMP v2c agent at addr.
func NewSNMPPoller(addr, community, ifaceName string, log *slog.Logger) (*SNMPPoller, error) {
	client := &gosnmp.GoSNMP{
		Target:    addr,
		Port:      161,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   gosnmp.Default.Timeout,
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("apstats: snmp connect %s: %w", addr, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &SNMPPoller{InterfaceName: ifaceName, client: client, log: log}, nil
}

// Close releases the underlying SNMP socket.
func (p *SNMPPoller) Close() error {
	return p.client.Conn.Close()
}

// Poll walks the station table and returns a fresh APStats snapshot.
func (p *SNMPPoller) Poll() (APStats, error) {
	clients := map[string]*Client{}

	collect := func(oid string, assign func(*Client, string)) error {
		return p.client.BulkWalk(oid, func(pdu gosnmp.SnmpPDU) error {
			idx := pdu.Name[len(oid):]
			c, ok := clients[idx]
			if !ok {
				c = &Client{}
				clients[idx] = c
			}
			assign(c, pduString(pdu))
			return nil
		})
	}

	if err := collect(oidStationMAC, func(c *Client, v string) { c.MacAddress = v }); err != nil {
		return APStats{}, fmt.Errorf("apstats: walk station MAC table: %w", err)
	}
	if err := collect(oidStationIP, func(c *Client, v string) { c.IPAddress = v }); err != nil {
		return APStats{}, fmt.Errorf("apstats: walk station IP table: %w", err)
	}
	if err := collect(oidStationRxBytes, func(c *Client, v string) { c.Rx.Bytes = v }); err != nil {
		p.log.Warn("apstats: rx byte table unavailable", "error", err)
	}
	if err := collect(oidStationTxBytes, func(c *Client, v string) { c.Tx.Bytes = v }); err != nil {
		p.log.Warn("apstats: tx byte table unavailable", "error", err)
	}

	out := make([]Client, 0, len(clients))
	for _, c := range clients {
		out = append(out, *c)
	}

	return APStats{Interfaces: []Interface{{Name: p.InterfaceName, Clients: out}}}, nil
}

func pduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

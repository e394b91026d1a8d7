package apstats

import "testing"

func TestFindClientAcrossInterfaces(t *testing.T) {
	stats := APStats{
		Interfaces: []Interface{
			{
				Name: "radio0",
				Clients: []Client{
					{MacAddress: "aa:bb:cc:dd:ee:01", IPAddress: "10.0.0.2"},
				},
			},
			{
				Name: "radio1",
				Clients: []Client{
					{MacAddress: "aa:bb:cc:dd:ee:02", IPAddress: "10.0.0.3"},
				},
			},
		},
	}

	got, ok := stats.FindClient("10.0.0.3")
	if !ok {
		t.Fatalf("FindClient(10.0.0.3) not found")
	}
	if got.MacAddress != "aa:bb:cc:dd:ee:02" {
		t.Fatalf("MacAddress = %q, want aa:bb:cc:dd:ee:02", got.MacAddress)
	}
}

func TestFindClientNotPresent(t *testing.T) {
	stats := APStats{Interfaces: []Interface{{Name: "radio0"}}}

	if _, ok := stats.FindClient("192.168.1.1"); ok {
		t.Fatalf("FindClient found a client in an empty interface set")
	}
}

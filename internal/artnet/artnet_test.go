package artnet

import (
	"net"
	"testing"
)

func TestUniverseToAddress(t *testing.T) {
	tests := []struct {
		universe uint16
		net      uint8
		subUni   uint8
	}{
		{universe: 0x0000, net: 0, subUni: 0},
		{universe: 0x0001, net: 0, subUni: 1},
		{universe: 0x0310, net: 3, subUni: 0x10},
	}
	for _, tt := range tests {
		a := universeToAddress(tt.universe)
		if a.Net != tt.net || a.SubUni != tt.subUni {
			t.Errorf("universeToAddress(%#04x) = %d/%d, want %d/%d", tt.universe, a.Net, a.SubUni, tt.net, tt.subUni)
		}
	}
}

func TestMatchIP(t *testing.T) {
	_, cidr, _ := net.ParseCIDR("192.168.6.0/24")
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPNet{IP: net.ParseIP("10.0.0.2").To4(), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.ParseIP("192.168.6.20").To4(), Mask: net.CIDRMask(24, 32)},
	}
	if ip := matchIP(cidr, addrs); !ip.Equal(net.ParseIP("192.168.6.20")) {
		t.Errorf("matchIP = %v", ip)
	}
	if ip := matchIP(cidr, addrs[:2]); ip != nil {
		t.Errorf("matchIP without candidate = %v", ip)
	}
}

func TestFindArtNetIPBadNetwork(t *testing.T) {
	if _, err := FindArtNetIP("not-a-cidr"); err == nil {
		t.Error("no error for invalid CIDR")
	}
}

func TestSetChannels(t *testing.T) {
	c := &ArtNet{sendTrigger: make(chan Universe, 1)}
	c.SetChannels(10, []byte{1, 2, 3})
	c.SetChannels(510, []byte{4, 5, 6})
	c.SetChannels(-1, []byte{9})
	c.SetChannels(512, []byte{9})

	u := <-c.sendTrigger
	if u[10] != 1 || u[12] != 3 || u[510] != 4 || u[511] != 5 {
		t.Errorf("universe = % X ... % X", u[10:13], u[510:])
	}
	select {
	case <-c.sendTrigger:
		t.Error("more than one universe queued")
	default:
	}
}

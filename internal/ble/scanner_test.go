package ble

import (
	"bytes"
	"testing"

	"tinygo.org/x/bluetooth"
)

func TestADStructs(t *testing.T) {
	got := adStructs([]bluetooth.ManufacturerDataElement{
		{CompanyID: 0x048F, Data: []byte{0x44, 1, 2}},
		{CompanyID: 0x004C, Data: []byte{0x02, 0x15}},
	})
	want := [][]byte{
		{0x06, 0xFF, 0x8F, 0x04, 0x44, 1, 2},
		{0x05, 0xFF, 0x4C, 0x00, 0x02, 0x15},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d structures, want %d", len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("structure %d = % X, want % X", i, got[i], want[i])
		}
	}
	if len(adStructs(nil)) != 0 {
		t.Error("structures from no elements")
	}
}

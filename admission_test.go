package main

import (
	"testing"
)

var (
	addrA = ClientIP{198, 51, 100, 9}
	addrB = ClientIP{203, 0, 113, 5}
)

func TestAdmissionBindsPortOnFirstPacket(t *testing.T) {
	table := NewAdmissionTable()
	table.Add(7, addrB)

	if !table.CheckAllowedAndBindPort(addrB, 40000) {
		t.Fatal("first datagram from a reserved address should be allowed")
	}

	// The same endpoint stays allowed
	if !table.CheckAllowedAndBindPort(addrB, 40000) {
		t.Error("bound endpoint should remain allowed")
	}

	// A different port from the same address has no reservation left
	if table.CheckAllowedAndBindPort(addrB, 40001) {
		t.Error("second port from the same address should be rejected")
	}

	entries := table.Snapshot()
	if len(entries) != 1 || entries[0].Port != 40000 {
		t.Errorf("expected single entry bound to port 40000, got %+v", entries)
	}
}

func TestAdmissionMultipleReservationsSameAddress(t *testing.T) {
	table := NewAdmissionTable()
	table.Add(1, addrA)
	table.Add(2, addrA)

	if !table.CheckAllowedAndBindPort(addrA, 50000) {
		t.Fatal("first reservation should bind")
	}
	if !table.CheckAllowedAndBindPort(addrA, 50001) {
		t.Fatal("second reservation should bind")
	}
	if table.CheckAllowedAndBindPort(addrA, 50002) {
		t.Error("third port should be rejected, no reservations left")
	}

	// Insertion order decides which reservation a port lands on
	entries := table.Snapshot()
	if entries[0].PlayerID != 1 || entries[0].Port != 50000 {
		t.Errorf("first entry should be player 1 on port 50000, got %+v", entries[0])
	}
	if entries[1].PlayerID != 2 || entries[1].Port != 50001 {
		t.Errorf("second entry should be player 2 on port 50001, got %+v", entries[1])
	}
}

func TestAdmissionUnknownAddressRejected(t *testing.T) {
	table := NewAdmissionTable()
	table.Add(7, addrB)

	if table.CheckAllowedAndBindPort(addrA, 40000) {
		t.Error("address without an entry should be rejected")
	}
}

func TestAdmissionRemoveByPlayerIDOnly(t *testing.T) {
	table := NewAdmissionTable()
	table.Add(1, addrA)
	table.Add(2, addrB)

	// The address argument is deliberately ignored
	table.Remove(1, addrB)

	entries := table.Snapshot()
	if len(entries) != 1 || entries[0].PlayerID != 2 {
		t.Errorf("expected only player 2 to remain, got %+v", entries)
	}

	// Removing a missing player is a no-op
	table.Remove(99, addrA)
	if table.Len() != 1 {
		t.Errorf("table length changed by removing an unknown player")
	}
}

func TestAdmissionRemoveFirstMatchOnly(t *testing.T) {
	table := NewAdmissionTable()
	table.Add(5, addrA)
	table.Add(5, addrB)

	table.Remove(5, ClientIP{})

	entries := table.Snapshot()
	if len(entries) != 1 || entries[0].IP != addrB {
		t.Errorf("expected the first matching entry removed, got %+v", entries)
	}
}

func TestAdmissionReset(t *testing.T) {
	table := NewAdmissionTable()
	table.Add(1, addrA)
	table.Add(2, addrB)

	table.Reset()
	if table.Len() != 0 {
		t.Error("reset should empty the table")
	}

	// Two consecutive resets are equivalent to one
	table.Reset()
	if table.Len() != 0 {
		t.Error("second reset should be a no-op")
	}

	if table.CheckAllowedAndBindPort(addrA, 50000) {
		t.Error("nothing should be allowed after reset")
	}
}

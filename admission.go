package main

import (
	"sync"
)

// AdmissionEntry is one admitted player. A zero Port means the entry is a
// reservation: the controller knows the player's IP but not the ephemeral
// UDP source port, so the first datagram from that IP claims the slot and
// locks its source port into the entry.
type AdmissionEntry struct {
	PlayerID uint32
	IP       ClientIP
	Port     uint16
}

// AdmissionTable is the dynamic allow-list of players permitted to reach the
// game server. It is shared between the control server and the forwarder;
// every method serializes on the internal mutex. Entries are kept in
// insertion order and scanned linearly, which is fine for the tens to low
// hundreds of players a game server holds.
type AdmissionTable struct {
	mu      sync.Mutex
	entries []AdmissionEntry
}

// NewAdmissionTable creates an empty admission table
func NewAdmissionTable() *AdmissionTable {
	return &AdmissionTable{}
}

// Add appends a reservation for playerID at ip. No dedup check is done; the
// controller is trusted not to duplicate.
func (t *AdmissionTable) Add(playerID uint32, ip ClientIP) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, AdmissionEntry{PlayerID: playerID, IP: ip})
}

// Remove deletes the first entry with a matching player ID. The address is
// part of the wire format but intentionally not matched on.
func (t *AdmissionTable) Remove(playerID uint32, _ ClientIP) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if e.PlayerID == playerID {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

// Reset clears all entries. Live flows are not touched here; they close via
// the next-packet disallow path or the inactivity reap.
func (t *AdmissionTable) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = t.entries[:0]
}

// CheckAllowedAndBindPort decides whether a datagram from (ip, port) may be
// forwarded. An entry already bound to (ip, port) allows it. Otherwise the
// first unbound reservation for ip is bound to port and allows it. Scan
// order is insertion order; on multiple reservations the first reached wins.
func (t *AdmissionTable) CheckAllowedAndBindPort(ip ClientIP, port uint16) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].IP == ip && t.entries[i].Port == port {
			return true
		}
	}

	for i := range t.entries {
		if t.entries[i].IP == ip && t.entries[i].Port == 0 {
			t.entries[i].Port = port
			return true
		}
	}

	return false
}

// Len returns the number of entries
func (t *AdmissionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

// Snapshot returns a copy of the current entries for the ops API.
func (t *AdmissionTable) Snapshot() []AdmissionEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]AdmissionEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

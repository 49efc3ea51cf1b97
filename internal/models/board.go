package models

import (
	"sort"
	"sync"
)

// EmergencyBoard is a dashboard's local view of emergencies. It merges full-list
// poll snapshots and push events keyed by emergency id; replays and out-of-order
// arrival are harmless because status never moves back from ACKNOWLEDGED.
type EmergencyBoard struct {
	mu      sync.RWMutex
	entries map[string]Emergency
}

func NewEmergencyBoard() *EmergencyBoard {
	return &EmergencyBoard{entries: make(map[string]Emergency)}
}

func (b *EmergencyBoard) merge(e Emergency) {
	id := e.ID.Hex()
	current, ok := b.entries[id]
	if ok && current.Status == EmergencyStatusAcknowledged && e.Status != EmergencyStatusAcknowledged {
		e.Status = current.Status
		e.AcknowledgedAt = current.AcknowledgedAt
	}
	b.entries[id] = e
}

// ApplySnapshot merges a full list as returned by the emergency poll.
func (b *EmergencyBoard) ApplySnapshot(list []Emergency) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range list {
		b.merge(e)
	}
}

func (b *EmergencyBoard) ApplyEmergency(e Emergency) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.merge(e)
}

// ApplyStopAlarm acknowledges the named emergency and every entry for the same pair.
func (b *EmergencyBoard) ApplyStopAlarm(s StopAlarm) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, e := range b.entries {
		if id == s.EmergencyID || (e.DriverNumber == s.DriverNumber && e.VehicleNumber == s.VehicleNumber) {
			e.Status = EmergencyStatusAcknowledged
			b.entries[id] = e
		}
	}
}

func (b *EmergencyBoard) ApplyAcknowledgement(a Acknowledgement) {
	if a.Emergency == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.merge(*a.Emergency)
}

func (b *EmergencyBoard) Get(id string) (Emergency, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[id]
	return e, ok
}

// Active returns the still-active entries, newest first.
func (b *EmergencyBoard) Active() []Emergency {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Emergency
	for _, e := range b.entries {
		if e.Status == EmergencyStatusActive {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (b *EmergencyBoard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

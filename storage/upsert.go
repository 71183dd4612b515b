// Package storage holds the participant and session store backends:
// BadgerDB for a durable single-node setup, Redis for a shared one,
// and an in-memory map for tests and ephemeral runs. All backends
// apply upserts through the same rules below.
package storage

import (
	"github.com/raidwatch/raidwatch-tgbot/tracking"
)

// applyUpsert - apply one upsert payload to a participant row.
// Counters only grow, the secondary handle is sticky-once, name and
// handle are refreshed last-write-wins, a forced status overrides the
// stored one. A safe row always carries at least one completion: the
// guard at the bottom keeps an administrative force-safe from
// producing safe with a zero counter.
func applyUpsert(p *tracking.Participant, up tracking.Upsert) {
	p.LinkCount += up.LinkDelta
	p.AdCount += up.AdDelta

	if up.Name != "" {
		p.Name = up.Name
	}

	if up.Handle != "" {
		p.Handle = up.Handle
	}

	if p.SecondaryHandle == "" && up.SecondaryHandle != "" {
		p.SecondaryHandle = up.SecondaryHandle
	}

	if up.ResetAdCount {
		p.AdCount = 0
	}

	if up.ForceStatus != "" {
		p.Status = up.ForceStatus
	}

	if p.Status == "" {
		p.Status = tracking.StatusUnsafe
	}

	if p.Status == tracking.StatusSafe && p.AdCount == 0 {
		p.AdCount = 1
	}
}

// newParticipant - fresh row for a first sighting.
func newParticipant(chatID, userID int64, serial int, up tracking.Upsert) tracking.Participant {
	p := tracking.Participant{
		ChatID: chatID,
		UserID: userID,
		Serial: serial,
		Status: tracking.StatusUnsafe,
	}

	applyUpsert(&p, up)

	return p
}

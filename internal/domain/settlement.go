package domain

import "time"

// Payout is the amount one winning entry is (or was) entitled to.
type Payout struct {
	Entry       Address `json:"entry"`
	Participant Address `json:"participant"`
	Stake       uint64  `json:"stake"`
	Amount      uint64  `json:"amount"`
	Claimed     bool    `json:"claimed"`
}

// SettlementReport summarises how a resolved pool pays out. Dust is the part
// of the pool value that floor division leaves undistributed.
type SettlementReport struct {
	Pool        Pool         `json:"pool"`
	Options     []PoolOption `json:"options"`
	Winner      *PoolOption  `json:"winner,omitempty"`
	Payouts     []Payout     `json:"payouts"`
	Total       uint64       `json:"total"`
	Dust        uint64       `json:"dust"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// ArchiveSummary is the cold-storage record of a resolved pool.
type ArchiveSummary struct {
	Report      SettlementReport `json:"report"`
	EntryCount  int              `json:"entry_count"`
	EntriesPath string           `json:"entries_path"`
	ArchivedAt  time.Time        `json:"archived_at"`
}

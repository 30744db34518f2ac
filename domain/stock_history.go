package domain

// StockHistoryEntry is one row of the append-only stock ledger. Entries are
// never edited or reordered; replaying them oldest-first reproduces the
// medication's current stock.
type StockHistoryEntry struct {
	ID            int64  `db:"id" json:"id"`
	MedicationID  int64  `db:"medication_id" json:"medication_id"`
	PreviousStock int64  `db:"previous_stock" json:"previous_stock"`
	NewStock      int64  `db:"new_stock" json:"new_stock"`
	ChangedBy     *int64 `db:"changed_by" json:"changed_by,omitempty"`
	Reason        string `db:"reason" json:"reason"`
	Timestamp     string `db:"timestamp" json:"timestamp"`
}

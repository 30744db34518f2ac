package domain

type Medication struct {
	ID          int64   `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Description string  `db:"description" json:"description"`
	Category    string  `db:"category" json:"category"`
	Stock       int64   `db:"stock" json:"stock"`
	Price       float64 `db:"price" json:"price"`
	CreatedAt   string  `db:"created_at" json:"created_at"`
	UpdatedAt   string  `db:"updated_at" json:"updated_at"`
}

// StockSummary is the dashboard projection over the catalog. Low and out
// counts depend on the configured threshold, not on any ledger rule.
type StockSummary struct {
	Total      int64 `db:"total" json:"total"`
	LowStock   int64 `db:"low_stock" json:"low_stock"`
	OutOfStock int64 `db:"out_of_stock" json:"out_of_stock"`
	Threshold  int64 `json:"threshold"`
}

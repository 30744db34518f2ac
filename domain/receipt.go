package domain

// Receipt summarizes a completed dispense.
type Receipt struct {
	ReceiptID      string `json:"receipt_id"`
	MedicationID   int64  `json:"medication_id"`
	MedicationName string `json:"medication_name"`
	Quantity       int64  `json:"quantity"`
	Recipient      string `json:"recipient"`
	Prescriber     string `json:"prescriber"`
	RemainingStock int64  `json:"remaining_stock"`
	DispensedAt    string `json:"dispensed_at"`
}

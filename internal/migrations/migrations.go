package migrations

import (
	"log"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// Run creates the database schema for the pharmacy service.
func Run(db *sqlx.DB) {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            fullname TEXT NOT NULL,
            email TEXT,
            phone TEXT,
            role TEXT NOT NULL CHECK (role IN ('admin', 'pharmacist')),
            active INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS medications (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
            price REAL NOT NULL DEFAULT 0 CHECK (price >= 0),
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS stock_history (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            medication_id INTEGER NOT NULL,
            previous_stock INTEGER NOT NULL,
            new_stock INTEGER NOT NULL,
            changed_by INTEGER,
            reason TEXT NOT NULL,
            timestamp TEXT NOT NULL,
            FOREIGN KEY(medication_id) REFERENCES medications(id) ON DELETE CASCADE,
            FOREIGN KEY(changed_by) REFERENCES users(id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_stock_history_medication
            ON stock_history(medication_id);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}
}

// Seed creates the default admin account and a starter medication catalog
// when the relevant tables are empty.
func Seed(db *sqlx.DB) {
	var admins int
	if err := db.Get(&admins, `SELECT COUNT(*) FROM users WHERE role = 'admin'`); err != nil {
		log.Fatalf("seed check failed: %v", err)
	}
	if admins == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("seed admin hash failed: %v", err)
		}
		_, err = db.Exec(
			`INSERT INTO users (username, password_hash, fullname, email, phone, role) VALUES (?, ?, ?, ?, ?, ?)`,
			"admin", string(hash), "System Administrator", "admin@pharmacy.com", "123-456-7890", "admin")
		if err != nil {
			log.Fatalf("seed admin failed: %v", err)
		}
	}

	var medications int
	if err := db.Get(&medications, `SELECT COUNT(*) FROM medications`); err != nil {
		log.Fatalf("seed check failed: %v", err)
	}
	if medications > 0 {
		return
	}

	samples := []struct {
		name, description, category string
		stock                       int64
		price                       float64
	}{
		{"Amoxicillin 500mg", "Antibiotic capsules", "Antibiotics", 100, 12.99},
		{"Paracetamol 500mg", "Pain reliever tablets", "Analgesics", 200, 5.99},
		{"Ibuprofen 400mg", "Anti-inflammatory tablets", "Analgesics", 150, 6.99},
		{"Metformin 850mg", "Anti-diabetic tablets", "Diabetic", 80, 15.99},
		{"Atorvastatin 20mg", "Cholesterol lowering tablets", "Cardiovascular", 120, 22.99},
		{"Cetirizine 10mg", "Antihistamine tablets", "Allergy", 90, 9.99},
		{"Omeprazole 20mg", "Proton pump inhibitor", "Gastrointestinal", 70, 14.99},
		{"Amlodipine 5mg", "Calcium channel blocker", "Cardiovascular", 100, 18.99},
	}
	for _, s := range samples {
		_, err := db.Exec(
			`INSERT INTO medications (name, description, category, stock, price, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, datetime('now'), datetime('now'))`,
			s.name, s.description, s.category, s.stock, s.price)
		if err != nil {
			log.Fatalf("seed medications failed: %v", err)
		}
	}
}

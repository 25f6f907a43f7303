package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"
)

var DB *sql.DB

// InitDatabase connects to Postgres using the given connection string.
func InitDatabase(dbURL string) error {
	if dbURL == "" {
		return fmt.Errorf("database URL is required")
	}

	var err error
	DB, err = sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := DB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %v", err)
	}

	log.Println("Successfully connected to database")
	return nil
}

// CreateTables creates the observation and alert logs if they don't exist.
// Both tables are append-only: rows are never updated or deleted.
func CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS observations (
			id SERIAL PRIMARY KEY,
			product_id TEXT NOT NULL,
			retailer_id TEXT NOT NULL,
			url TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			price DECIMAL(10,2) NOT NULL CHECK (price > 0),
			currency VARCHAR(3) NOT NULL,
			list_price DECIMAL(10,2),
			in_stock BOOLEAN,
			source VARCHAR(10) NOT NULL,
			signature VARCHAR(40) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id SERIAL PRIMARY KEY,
			product_id TEXT NOT NULL,
			retailer_id TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			old_price DECIMAL(10,2) NOT NULL,
			new_price DECIMAL(10,2) NOT NULL CHECK (new_price < old_price),
			pct_change DECIMAL(6,4) NOT NULL,
			reason TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_observations_product_ts ON observations (product_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_product_ts ON alerts (product_id, ts)`,
	}

	for _, query := range queries {
		_, err := DB.Exec(query)
		if err != nil {
			return fmt.Errorf("failed to create table: %v", err)
		}
	}

	return nil
}

// CloseDatabase closes the database connection.
func CloseDatabase() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

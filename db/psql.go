package db

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/Gittester123213asdasd/earth-clicker/config"
)

type DB struct {
	Conn *sql.DB
}

func NewDB(config *config.Config) (*DB, error) {
	connStr := config.GetDBConnectionString()
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(50)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error pinging database: %v", err)
	}

	log.Println("Connected to database successfully")

	return &DB{Conn: db}, nil
}

// EnsureSchema creates the counter tables if they are absent and seeds the
// singleton global counter row so increment upserts always have a conflict
// target.
func (db *DB) EnsureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS global_counter (
            id INT PRIMARY KEY CHECK (id = 1),
            total_clicks BIGINT NOT NULL DEFAULT 0,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS visitors (
            identity_key TEXT PRIMARY KEY,
            display_name TEXT NOT NULL DEFAULT '',
            country CHAR(2) NOT NULL DEFAULT 'UN',
            total_clicks BIGINT NOT NULL DEFAULT 0,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_visitors_country ON visitors (country)`,
		`INSERT INTO global_counter (id, total_clicks) VALUES (1, 0)
            ON CONFLICT (id) DO NOTHING`,
	}

	for _, stmt := range statements {
		if _, err := db.Conn.Exec(stmt); err != nil {
			return fmt.Errorf("error ensuring schema: %v", err)
		}
	}
	return nil
}

func (db *DB) Close() {
	if err := db.Conn.Close(); err != nil {
		log.Printf("error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

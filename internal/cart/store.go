package cart

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// StorageKey is the fixed key the serialized cart lives under.
const StorageKey = "storefront.cart"

// SQLStore keeps the cart document in a small SQLite key/value table.
// SQLite gives the durability the aggregate needs across restarts
// without any server-side dependency.
type SQLStore struct {
	db  *sqlx.DB
	key string
}

func OpenStore(dsn string) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &SQLStore{db: db, key: StorageKey}, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS client_state(
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT
);
`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLStore) Load() ([]byte, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM client_state WHERE key = ?`, s.key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (s *SQLStore) Save(b []byte) error {
	_, err := s.db.Exec(`
	  INSERT INTO client_state(key, value, updated_at)
	  VALUES(?, ?, CURRENT_TIMESTAMP)
	  ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, s.key, string(b))
	return err
}

func (s *SQLStore) Close() error { return s.db.Close() }

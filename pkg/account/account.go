package account

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound        = errors.New("account not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrNameTaken       = errors.New("account name already exists")
)

// Account is one login identity.
type Account struct {
	ID        uint32
	Name      string
	CreatedAt int64
	LastLogin int64
}

// Repository is the SQLite-backed account store behind the login and
// game handshakes.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the account database at path.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open account database: %w", err)
	}

	// WAL keeps concurrent handshakes from serializing on the writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	r := &Repository{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		password_hash BLOB NOT NULL,
		salt BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		last_login INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_name ON accounts(name);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("init account schema: %w", err)
	}
	return nil
}

// hashPassword derives the stored digest from a per-account salt.
func hashPassword(salt []byte, password string) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(password))
	return h.Sum(nil)
}

// Create registers a new account and returns it with its assigned id.
func (r *Repository) Create(name, password string) (*Account, error) {
	if name == "" || password == "" {
		return nil, fmt.Errorf("account name and password must not be empty")
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	now := time.Now().Unix()
	res, err := r.db.Exec(
		`INSERT INTO accounts (name, password_hash, salt, created_at) VALUES (?, ?, ?, ?)`,
		name, hashPassword(salt, password), salt, now,
	)
	if err != nil {
		if exists, checkErr := r.nameExists(name); checkErr == nil && exists {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &Account{ID: uint32(id), Name: name, CreatedAt: now}, nil
}

func (r *Repository) nameExists(name string) (bool, error) {
	var one int
	err := r.db.QueryRow(`SELECT 1 FROM accounts WHERE name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Authenticate verifies credentials and returns the account id. A
// successful login stamps last_login.
func (r *Repository) Authenticate(name, password string) (uint32, error) {
	var (
		id   uint32
		hash []byte
		salt []byte
	)
	err := r.db.QueryRow(
		`SELECT id, password_hash, salt FROM accounts WHERE name = ?`, name,
	).Scan(&id, &hash, &salt)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("look up account: %w", err)
	}

	if subtle.ConstantTimeCompare(hashPassword(salt, password), hash) != 1 {
		return 0, ErrInvalidPassword
	}

	if _, err := r.db.Exec(
		`UPDATE accounts SET last_login = ? WHERE id = ?`, time.Now().Unix(), id,
	); err != nil {
		return 0, fmt.Errorf("stamp last login: %w", err)
	}
	return id, nil
}

// Get returns an account by name.
func (r *Repository) Get(name string) (*Account, error) {
	var a Account
	err := r.db.QueryRow(
		`SELECT id, name, created_at, last_login FROM accounts WHERE name = ?`, name,
	).Scan(&a.ID, &a.Name, &a.CreatedAt, &a.LastLogin)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("look up account: %w", err)
	}
	return &a, nil
}

// Count returns the number of registered accounts, for the admin
// status endpoint.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

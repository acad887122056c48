package discovery

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// KnownDBName is the database file inside the state directory.
const KnownDBName = "gateways.db"

// Known is a gateway remembered across runs.
type Known struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Endpoint    Endpoint  `json:"endpoint"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// KnownStore persists discovered gateways keyed by StableID. All public
// methods are safe for concurrent use (SQLite serializes writes).
type KnownStore struct {
	db *sql.DB
}

// KnownStorePath returns the database path under stateDir.
func KnownStorePath(stateDir string) string {
	return filepath.Join(stateDir, KnownDBName)
}

// NewKnownStore opens or creates the store at dbPath.
func NewKnownStore(dbPath string) (*KnownStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &KnownStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *KnownStore) Close() error {
	return s.db.Close()
}

func (s *KnownStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS known_gateways (
		stable_id    TEXT PRIMARY KEY,
		kind         INTEGER NOT NULL,
		name         TEXT NOT NULL,
		service_type TEXT NOT NULL,
		domain       TEXT NOT NULL,
		host         TEXT NOT NULL,
		port         INTEGER NOT NULL,
		label        TEXT NOT NULL,
		fingerprint  TEXT NOT NULL,
		first_seen   TEXT NOT NULL,
		last_seen    TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Upsert records e as seen at seen. An existing row keeps its
// first_seen and has every other column refreshed.
func (s *KnownStore) Upsert(e Endpoint, seen time.Time) error {
	id := StableID(e)
	ts := seen.UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO known_gateways
		 (stable_id, kind, name, service_type, domain, host, port, label, fingerprint, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (stable_id) DO UPDATE SET
		   kind = excluded.kind,
		   name = excluded.name,
		   service_type = excluded.service_type,
		   domain = excluded.domain,
		   host = excluded.host,
		   port = excluded.port,
		   label = excluded.label,
		   fingerprint = excluded.fingerprint,
		   last_seen = excluded.last_seen`,
		id, int(e.Kind), e.Name, e.ServiceType, e.Domain, e.Host, e.Port,
		PrettyLabel(e), AddressFingerprint(e), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

const knownColumns = `stable_id, kind, name, service_type, domain, host, port, label, fingerprint, first_seen, last_seen`

// Get returns the gateway with the given StableID. The bool is false
// when no such gateway is stored.
func (s *KnownStore) Get(id string) (Known, bool, error) {
	row := s.db.QueryRow(`SELECT `+knownColumns+` FROM known_gateways WHERE stable_id = ?`, id)
	k, err := scanKnown(row)
	if err == sql.ErrNoRows {
		return Known{}, false, nil
	}
	if err != nil {
		return Known{}, false, fmt.Errorf("get %s: %w", id, err)
	}
	return k, true, nil
}

// List returns all known gateways, most recently seen first.
func (s *KnownStore) List() ([]Known, error) {
	rows, err := s.db.Query(`SELECT ` + knownColumns + ` FROM known_gateways ORDER BY last_seen DESC, stable_id`)
	if err != nil {
		return nil, fmt.Errorf("list known gateways: %w", err)
	}
	defer rows.Close()

	var out []Known
	for rows.Next() {
		k, err := scanKnown(rows)
		if err != nil {
			return nil, fmt.Errorf("scan known gateway: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Forget removes a gateway. It reports whether a row was deleted.
func (s *KnownStore) Forget(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM known_gateways WHERE stable_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("forget %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("forget %s: %w", id, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKnown(sc scanner) (Known, error) {
	var (
		k                   Known
		kind                int
		firstSeen, lastSeen string
	)
	err := sc.Scan(&k.ID, &kind, &k.Endpoint.Name, &k.Endpoint.ServiceType, &k.Endpoint.Domain,
		&k.Endpoint.Host, &k.Endpoint.Port, &k.Label, &k.Fingerprint, &firstSeen, &lastSeen)
	if err != nil {
		return Known{}, err
	}
	k.Endpoint.Kind = Kind(kind)
	if k.FirstSeen, err = time.Parse(time.RFC3339, firstSeen); err != nil {
		return Known{}, fmt.Errorf("parse first_seen: %w", err)
	}
	if k.LastSeen, err = time.Parse(time.RFC3339, lastSeen); err != nil {
		return Known{}, fmt.Errorf("parse last_seen: %w", err)
	}
	return k, nil
}

package anchor

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore is the alternate durable backend to the file-backed
// Store, mirroring eventlog's FileLog/PostgresLog split. A deployment
// that already points its event log at Postgres can keep anchor
// bookkeeping in the same database instead of a local directory.
type PostgresStore struct {
	db *sql.DB
}

const createAnchorTableSQL = `
CREATE TABLE IF NOT EXISTS vcp_anchors (
	anchor_id         TEXT PRIMARY KEY,
	provider          TEXT NOT NULL,
	merkle_root       TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	confirmed_at      TEXT NOT NULL DEFAULT '',
	tx_hash           TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	event_count       INTEGER NOT NULL,
	prev_anchor_count INTEGER NOT NULL DEFAULT 0,
	proof             JSONB
)`

// OpenPostgresStore connects to dbURL and ensures the anchor table exists.
func OpenPostgresStore(dbURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("anchor: opening postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("anchor: pinging postgres: %w", err)
	}
	if _, err := db.Exec(createAnchorTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("anchor: creating anchor table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Save upserts rec and its proof document in one statement.
func (p *PostgresStore) Save(rec Record, proof map[string]any) error {
	var proofJSON []byte
	if proof != nil {
		var err error
		proofJSON, err = json.Marshal(proof)
		if err != nil {
			return fmt.Errorf("anchor: marshaling proof: %w", err)
		}
	}
	_, err := p.db.Exec(
		`INSERT INTO vcp_anchors (anchor_id, provider, merkle_root, created_at, confirmed_at, tx_hash, status, event_count, prev_anchor_count, proof)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (anchor_id) DO UPDATE SET
		   provider = EXCLUDED.provider, merkle_root = EXCLUDED.merkle_root,
		   confirmed_at = EXCLUDED.confirmed_at, tx_hash = EXCLUDED.tx_hash,
		   status = EXCLUDED.status, event_count = EXCLUDED.event_count,
		   prev_anchor_count = EXCLUDED.prev_anchor_count, proof = EXCLUDED.proof`,
		rec.AnchorID, rec.Provider, rec.MerkleRoot, rec.CreatedAt, rec.ConfirmedAt, rec.TxHash, rec.Status, rec.EventCount, rec.PrevAnchorCount, proofJSON,
	)
	if err != nil {
		return fmt.Errorf("anchor: postgres upsert failed: %w", err)
	}
	return nil
}

func (p *PostgresStore) scanRecord(row *sql.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.AnchorID, &rec.Provider, &rec.MerkleRoot, &rec.CreatedAt, &rec.ConfirmedAt, &rec.TxHash, &rec.Status, &rec.EventCount, &rec.PrevAnchorCount)
	return rec, err
}

// Get returns the record for anchorID.
func (p *PostgresStore) Get(anchorID string) (Record, bool) {
	row := p.db.QueryRow(
		`SELECT anchor_id, provider, merkle_root, created_at, confirmed_at, tx_hash, status, event_count, prev_anchor_count
		 FROM vcp_anchors WHERE anchor_id = $1`, anchorID)
	rec, err := p.scanRecord(row)
	if err != nil {
		return Record{}, false
	}
	return rec, true
}

// Proof loads the persisted proof document for anchorID.
func (p *PostgresStore) Proof(anchorID string) (map[string]any, error) {
	var body []byte
	err := p.db.QueryRow(`SELECT proof FROM vcp_anchors WHERE anchor_id = $1`, anchorID).Scan(&body)
	if err != nil {
		return nil, fmt.Errorf("anchor: reading proof for %s: %w", anchorID, err)
	}
	var proof map[string]any
	if err := json.Unmarshal(body, &proof); err != nil {
		return nil, fmt.Errorf("anchor: parsing proof for %s: %w", anchorID, err)
	}
	return proof, nil
}

// Latest returns the most recently created record, or false if none exist.
func (p *PostgresStore) Latest() (Record, bool) {
	row := p.db.QueryRow(
		`SELECT anchor_id, provider, merkle_root, created_at, confirmed_at, tx_hash, status, event_count, prev_anchor_count
		 FROM vcp_anchors ORDER BY created_at DESC LIMIT 1`)
	rec, err := p.scanRecord(row)
	if err != nil {
		return Record{}, false
	}
	return rec, true
}

// List returns every persisted anchor record, ordered oldest first.
func (p *PostgresStore) List() []Record {
	rows, err := p.db.Query(
		`SELECT anchor_id, provider, merkle_root, created_at, confirmed_at, tx_hash, status, event_count, prev_anchor_count
		 FROM vcp_anchors ORDER BY created_at ASC`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.AnchorID, &rec.Provider, &rec.MerkleRoot, &rec.CreatedAt, &rec.ConfirmedAt, &rec.TxHash, &rec.Status, &rec.EventCount, &rec.PrevAnchorCount); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

// TotalAnchoredCount returns the highest event_count across all anchors.
func (p *PostgresStore) TotalAnchoredCount() int {
	var max int
	if err := p.db.QueryRow(`SELECT COALESCE(MAX(event_count), 0) FROM vcp_anchors`).Scan(&max); err != nil {
		return 0
	}
	return max
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error { return p.db.Close() }

package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/chain"
)

// PostgresLog is the alternate durable backend to FileLog, mirroring the
// corpus's dual FileLedger/PostgresLedger backend split
// (core/pkg/store/ledger). Deployments that already run Postgres for
// other state can point vcpd at it instead of a local JSONL file.
type PostgresLog struct {
	db *sql.DB
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS vcp_sealed_events (
	sequence      BIGINT PRIMARY KEY,
	event_id      TEXT NOT NULL,
	event_hash    TEXT NOT NULL UNIQUE,
	prev_hash     TEXT NOT NULL DEFAULT '',
	merkle_index  INTEGER NOT NULL,
	signer_key_id TEXT NOT NULL,
	received_at   TEXT NOT NULL,
	body          JSONB NOT NULL
)`

// OpenPostgres connects to dbURL (a postgres:// DSN, per lib/pq) and
// ensures the sealed-event table exists.
func OpenPostgres(dbURL string) (*PostgresLog, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("eventlog: opening postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: pinging postgres: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: creating sealed event table: %w", err)
	}
	return &PostgresLog{db: db}, nil
}

// Append inserts ev inside a single statement; the sequence primary key
// rejects a replayed write of an already-used sequence number. It does not
// check that sequence numbers are contiguous.
func (p *PostgresLog) Append(ev chain.SealedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventlog: marshaling sealed event: %w", err)
	}
	_, err = p.db.Exec(
		`INSERT INTO vcp_sealed_events (sequence, event_id, event_hash, prev_hash, merkle_index, signer_key_id, received_at, body)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.Sequence, ev.EventID, ev.EventHash, ev.PrevHash, ev.MerkleIndex, ev.SignerKeyID, ev.ReceivedAt, body,
	)
	if err != nil {
		return fmt.Errorf("eventlog: postgres insert failed: %w", err)
	}
	return nil
}

// ReadAll replays every sealed event in sequence order.
func (p *PostgresLog) ReadAll() ([]chain.SealedEvent, error) {
	rows, err := p.db.Query(`SELECT body FROM vcp_sealed_events ORDER BY sequence ASC`)
	if err != nil {
		return nil, fmt.Errorf("eventlog: postgres replay query failed: %w", err)
	}
	defer rows.Close()

	var events []chain.SealedEvent
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("eventlog: scanning row: %w", err)
		}
		var ev chain.SealedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("eventlog: malformed row body: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Lookup returns the most recently sealed event carrying eventID, queried
// by event_id and ordered by sequence descending.
func (p *PostgresLog) Lookup(eventID string) (chain.SealedEvent, bool, error) {
	var body []byte
	err := p.db.QueryRow(
		`SELECT body FROM vcp_sealed_events WHERE event_id = $1 ORDER BY sequence DESC LIMIT 1`,
		eventID,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return chain.SealedEvent{}, false, nil
	}
	if err != nil {
		return chain.SealedEvent{}, false, fmt.Errorf("eventlog: postgres lookup failed: %w", err)
	}
	var ev chain.SealedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return chain.SealedEvent{}, false, fmt.Errorf("eventlog: malformed row body: %w", err)
	}
	return ev, true, nil
}

// List returns a page of sealed events ordered by sequence, plus the
// total row count, for the paginated GET /vcp/events endpoint.
func (p *PostgresLog) List(offset, limit int) ([]chain.SealedEvent, int, error) {
	var total int
	if err := p.db.QueryRow(`SELECT COUNT(*) FROM vcp_sealed_events`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("eventlog: postgres count failed: %w", err)
	}

	rows, err := p.db.Query(
		`SELECT body FROM vcp_sealed_events ORDER BY sequence ASC OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("eventlog: postgres page query failed: %w", err)
	}
	defer rows.Close()

	var events []chain.SealedEvent
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, 0, fmt.Errorf("eventlog: scanning row: %w", err)
		}
		var ev chain.SealedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, 0, fmt.Errorf("eventlog: malformed row body: %w", err)
		}
		events = append(events, ev)
	}
	return events, total, rows.Err()
}

// Close releases the underlying connection pool.
func (p *PostgresLog) Close() error { return p.db.Close() }

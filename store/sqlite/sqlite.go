package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/logging"
)

// Options configures a sqlite-backed store.
type Options struct {
	// PoolSize is the number of connections in the pool. Defaults to 4.
	// SQLite serializes writes regardless of pool size; extra connections
	// help concurrent reads.
	PoolSize int

	// Logger receives operational messages. Defaults to NoOp logger.
	Logger logging.Logger
}

// Store is a durable core.Store backed by a SQLite connection pool. It is
// safe for concurrent use; individual connections are not, so every method
// takes its own connection and returns it when done.
type Store struct {
	pool   *sqlitex.Pool
	logger logging.Logger
}

var _ core.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	last_active INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lifecycle_logs (
	id        TEXT PRIMARY KEY,
	agent_id  TEXT NOT NULL,
	severity  TEXT NOT NULL,
	message   TEXT NOT NULL,
	metadata  TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_agent_time ON lifecycle_logs (agent_id, timestamp);

CREATE TABLE IF NOT EXISTS proofs (
	agent_id     TEXT NOT NULL,
	state_hash   TEXT NOT NULL,
	prev_hash    TEXT NOT NULL,
	merkle_root  TEXT NOT NULL,
	merkle_proof TEXT NOT NULL,
	signature    TEXT NOT NULL,
	timestamp    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_proofs_agent ON proofs (agent_id);
`

// Open creates a sqlite-backed store at path. The database file is created
// if it does not exist; the schema is applied to every pooled connection on
// first use. The caller must Close the store when done.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}

	opts := Options{
		PoolSize: 4,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    opts.PoolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: opening %s: %w", path, err)
	}

	opts.Logger.Info("sqlite store opened path=%s pool_size=%d", path, opts.PoolSize)
	return &Store{pool: pool, logger: opts.Logger}, nil
}

// Close closes the underlying connection pool. Blocks until all borrowed
// connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite store: close: %w", err)
	}
	return nil
}

// prepareConnection applies standard pragmas and the schema. Runs once per
// pooled connection on first use.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite store: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite store: applying schema: %w", err)
	}
	return nil
}

// UpsertAgent creates or replaces the runtime record. The original
// created_at survives a replace.
func (s *Store) UpsertAgent(ctx context.Context, record core.AgentRecord) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: upsert agent: %w", err)
	}
	defer s.pool.Put(conn)

	metadata, err := marshalMap(record.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite store: marshal agent metadata: %w", err)
	}

	now := time.Now().UTC()
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	err = sqlitex.Execute(conn, `INSERT INTO agents
		(id, owner_id, status, last_active, last_error, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			status = excluded.status,
			last_active = excluded.last_active,
			last_error = excluded.last_error,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{
			Args: []any{
				record.ID,
				record.OwnerID,
				string(record.Status),
				record.LastActive.UnixMilli(),
				record.LastError,
				metadata,
				createdAt.UnixMilli(),
				now.UnixMilli(),
			},
		})
	if err != nil {
		return fmt.Errorf("sqlite store: upsert agent %s: %w", record.ID, err)
	}
	return nil
}

// GetAgent returns the record for id or core.ErrAgentNotFound.
func (s *Store) GetAgent(ctx context.Context, id string) (core.AgentRecord, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return core.AgentRecord{}, fmt.Errorf("sqlite store: get agent: %w", err)
	}
	defer s.pool.Put(conn)

	var record core.AgentRecord
	found := false
	err = sqlitex.Execute(conn, `SELECT id, owner_id, status, last_active, last_error,
		metadata, created_at, updated_at FROM agents WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				var scanErr error
				record, scanErr = scanAgent(stmt)
				return scanErr
			},
		})
	if err != nil {
		return core.AgentRecord{}, fmt.Errorf("sqlite store: get agent %s: %w", id, err)
	}
	if !found {
		return core.AgentRecord{}, fmt.Errorf("%w: %s", core.ErrAgentNotFound, id)
	}
	return record, nil
}

// ActiveAgents returns every record with status starting or running.
func (s *Store) ActiveAgents(ctx context.Context) ([]core.AgentRecord, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: active agents: %w", err)
	}
	defer s.pool.Put(conn)

	var records []core.AgentRecord
	err = sqlitex.Execute(conn, `SELECT id, owner_id, status, last_active, last_error,
		metadata, created_at, updated_at FROM agents WHERE status IN (?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{string(core.StatusStarting), string(core.StatusRunning)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, scanErr := scanAgent(stmt)
				if scanErr != nil {
					return scanErr
				}
				records = append(records, record)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: active agents: %w", err)
	}
	return records, nil
}

// UpdateStatus sets the lifecycle status and last error for id.
func (s *Store) UpdateStatus(ctx context.Context, id string, status core.AgentStatus, lastError string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: update status: %w", err)
	}
	defer s.pool.Put(conn)

	now := time.Now().UTC().UnixMilli()
	err = sqlitex.Execute(conn, `UPDATE agents SET status = ?, last_error = ?,
		last_active = ?, updated_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(status), lastError, now, now, id},
		})
	if err != nil {
		return fmt.Errorf("sqlite store: update status %s: %w", id, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("%w: %s", core.ErrAgentNotFound, id)
	}
	return nil
}

// AppendLog appends one lifecycle log entry.
func (s *Store) AppendLog(ctx context.Context, entry core.LogEntry) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: append log: %w", err)
	}
	defer s.pool.Put(conn)

	metadata, err := marshalMap(entry.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite store: marshal log metadata: %w", err)
	}

	err = sqlitex.Execute(conn, `INSERT INTO lifecycle_logs
		(id, agent_id, severity, message, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				entry.ID,
				entry.AgentID,
				string(entry.Severity),
				entry.Message,
				metadata,
				entry.Timestamp.UnixMilli(),
			},
		})
	if err != nil {
		return fmt.Errorf("sqlite store: append log for %s: %w", entry.AgentID, err)
	}
	return nil
}

// Logs returns entries for agentID within [from, to], oldest first. Zero
// bounds are open-ended.
func (s *Store) Logs(ctx context.Context, agentID string, from, to time.Time) ([]core.LogEntry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: logs: %w", err)
	}
	defer s.pool.Put(conn)

	query := "SELECT id, agent_id, severity, message, metadata, timestamp " +
		"FROM lifecycle_logs WHERE agent_id = ?"
	args := []any{agentID}
	if !from.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, from.UnixMilli())
	}
	if !to.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, to.UnixMilli())
	}
	query += " ORDER BY timestamp ASC, rowid ASC"

	var entries []core.LogEntry
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			metadata, scanErr := unmarshalMap(stmt.ColumnText(4))
			if scanErr != nil {
				return scanErr
			}
			entries = append(entries, core.LogEntry{
				ID:        stmt.ColumnText(0),
				AgentID:   stmt.ColumnText(1),
				Severity:  core.Severity(stmt.ColumnText(2)),
				Message:   stmt.ColumnText(3),
				Metadata:  metadata,
				Timestamp: time.UnixMilli(stmt.ColumnInt64(5)).UTC(),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: logs for %s: %w", agentID, err)
	}
	return entries, nil
}

// AppendProof appends one transition proof to the agent's audit trail.
func (s *Store) AppendProof(ctx context.Context, agentID string, proof core.Proof) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: append proof: %w", err)
	}
	defer s.pool.Put(conn)

	path, err := json.Marshal(proof.MerkleProof)
	if err != nil {
		return fmt.Errorf("sqlite store: marshal merkle proof: %w", err)
	}

	err = sqlitex.Execute(conn, `INSERT INTO proofs
		(agent_id, state_hash, prev_hash, merkle_root, merkle_proof, signature, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				agentID,
				proof.StateHash,
				proof.PrevHash,
				proof.MerkleRoot,
				string(path),
				proof.Signature,
				proof.Timestamp,
			},
		})
	if err != nil {
		return fmt.Errorf("sqlite store: append proof for %s: %w", agentID, err)
	}
	return nil
}

// Proofs returns the persisted proof chain for agentID in append order.
func (s *Store) Proofs(ctx context.Context, agentID string) ([]core.Proof, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: proofs: %w", err)
	}
	defer s.pool.Put(conn)

	var proofs []core.Proof
	err = sqlitex.Execute(conn, `SELECT state_hash, prev_hash, merkle_root, merkle_proof,
		signature, timestamp FROM proofs WHERE agent_id = ? ORDER BY rowid ASC`,
		&sqlitex.ExecOptions{
			Args: []any{agentID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var path []string
				if raw := stmt.ColumnText(3); raw != "" {
					if scanErr := json.Unmarshal([]byte(raw), &path); scanErr != nil {
						return fmt.Errorf("unmarshal merkle proof: %w", scanErr)
					}
				}
				proofs = append(proofs, core.Proof{
					StateHash:   stmt.ColumnText(0),
					PrevHash:    stmt.ColumnText(1),
					MerkleRoot:  stmt.ColumnText(2),
					MerkleProof: path,
					Signature:   stmt.ColumnText(4),
					Timestamp:   stmt.ColumnInt64(5),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: proofs for %s: %w", agentID, err)
	}
	return proofs, nil
}

func scanAgent(stmt *sqlite.Stmt) (core.AgentRecord, error) {
	// Columns: id(0), owner_id(1), status(2), last_active(3),
	// last_error(4), metadata(5), created_at(6), updated_at(7)
	metadata, err := unmarshalMap(stmt.ColumnText(5))
	if err != nil {
		return core.AgentRecord{}, fmt.Errorf("unmarshal agent metadata: %w", err)
	}
	return core.AgentRecord{
		ID:         stmt.ColumnText(0),
		OwnerID:    stmt.ColumnText(1),
		Status:     core.AgentStatus(stmt.ColumnText(2)),
		LastActive: time.UnixMilli(stmt.ColumnInt64(3)).UTC(),
		LastError:  stmt.ColumnText(4),
		Metadata:   metadata,
		CreatedAt:  time.UnixMilli(stmt.ColumnInt64(6)).UTC(),
		UpdatedAt:  time.UnixMilli(stmt.ColumnInt64(7)).UTC(),
	}, nil
}

func marshalMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMap(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

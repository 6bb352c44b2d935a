// Package journal keeps settled analysis sessions in a local SQLite database,
// so that later commands can address the last analysis.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/poec-forensics/console/pkg/api/types/analysis"
	types "github.com/poec-forensics/console/pkg/api/types/proof"
	"github.com/poec-forensics/console/pkg/pipeline"
	"github.com/poec-forensics/console/pkg/proof"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("no session in journal")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	stage         TEXT NOT NULL,
	batch_id      TEXT,
	data_hash     TEXT,
	model_hash    TEXT,
	result_hash   TEXT,
	ipfs_cid      TEXT,
	anomalies     INTEGER NOT NULL DEFAULT 0,
	result_json   TEXT,
	error         TEXT
);

CREATE INDEX IF NOT EXISTS sessions_result_hash ON sessions(result_hash);

CREATE TABLE IF NOT EXISTS anchors (
	result_hash      TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	block_number     INTEGER,
	transaction_hash TEXT,
	verified         INTEGER NOT NULL DEFAULT 0,
	on_chain_hash    TEXT,
	anchored_at      TEXT NOT NULL
);
`

// Journal is a store of sessions.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) a journal at path.
//
// ":memory:" makes an in-memory journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if path == ":memory:" {
		// each connection has its own in-memory database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Anchor is an anchoring record of a result hash.
type Anchor struct {
	Status          string
	BlockNumber     uint64
	TransactionHash string
	Verified        bool
	OnChainHash     string
	AnchoredAt      time.Time
}

func (a Anchor) Collision() bool {
	return a.Status == types.StatusAlreadyAnchored
}

// Entry is a session recorded.
type Entry struct {
	SessionId string
	Source    string
	StartedAt time.Time
	UpdatedAt time.Time
	Stage     string
	BatchId   string
	Triplet   types.Triplet
	IpfsCid   string
	Anomalies int

	// Result of analysis. nil when the session has failed before analysis.
	Result *analysis.Result

	// Anchor of Triplet.ResultHash. nil when not anchored.
	Anchor *Anchor

	Error string
}

// Record stores the session. Sessions in the journal are overwritten.
//
// Journal is a pipeline.Recorder.
func (j *Journal) Record(s pipeline.Session) error {
	ctx := context.Background()
	updated := s.StartedAt
	if 0 < len(s.Log) {
		updated = s.Log[len(s.Log)-1].At
	}

	var batchId, resultJson, errMessage, cid sql.NullString
	triplet := types.Triplet{}
	anomalies := 0
	if s.Batch != nil {
		batchId = sql.NullString{String: s.Batch.BatchId, Valid: true}
	}
	if s.Triplet != nil {
		triplet = *s.Triplet
	}
	if s.Result != nil {
		b, err := json.Marshal(s.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		resultJson = sql.NullString{String: string(b), Valid: true}
		anomalies = len(s.Result.Anomalies)
		if s.Result.IpfsCid != "" {
			cid = sql.NullString{String: s.Result.IpfsCid, Valid: true}
		}
	}
	if s.Err != nil {
		errMessage = sql.NullString{String: s.Err.Error(), Valid: true}
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO sessions (
			session_id, source, started_at, updated_at, stage, batch_id,
			data_hash, model_hash, result_hash, ipfs_cid, anomalies, result_json, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			updated_at = excluded.updated_at, stage = excluded.stage,
			batch_id = excluded.batch_id, data_hash = excluded.data_hash,
			model_hash = excluded.model_hash, result_hash = excluded.result_hash,
			ipfs_cid = excluded.ipfs_cid, anomalies = excluded.anomalies,
			result_json = excluded.result_json, error = excluded.error`,
		s.Id, s.Source, formatTime(s.StartedAt), formatTime(updated), s.Stage.String(), batchId,
		triplet.DataHash, triplet.ModelHash, triplet.ResultHash, cid, anomalies, resultJson, errMessage,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if s.Anchor != nil {
		if err := putAnchor(ctx, tx, *s.Anchor, updated); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RecordAnchor stores an anchoring made out of sessions.
func (j *Journal) RecordAnchor(ctx context.Context, out proof.Outcome, at time.Time) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := putAnchor(ctx, tx, out, at); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func putAnchor(ctx context.Context, tx *sql.Tx, out proof.Outcome, at time.Time) error {
	verified := 0
	onChain := ""
	if out.Verified() {
		verified = 1
		onChain = out.Verification.OnChainHash
	}

	// a collision does not tell the block. keep the first record.
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO anchors (
			result_hash, status, block_number, transaction_hash, verified, on_chain_hash, anchored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(result_hash) DO UPDATE SET
			verified = MAX(anchors.verified, excluded.verified),
			on_chain_hash = CASE WHEN excluded.verified = 1 THEN excluded.on_chain_hash ELSE anchors.on_chain_hash END`,
		out.Triplet.ResultHash, out.Response.Status, int64(out.Response.BlockNumber),
		out.Response.TransactionHash, verified, onChain, formatTime(at),
	); err != nil {
		return fmt.Errorf("insert anchor: %w", err)
	}
	return nil
}

const selectEntry = `
SELECT
	s.session_id, s.source, s.started_at, s.updated_at, s.stage, s.batch_id,
	s.data_hash, s.model_hash, s.result_hash, s.ipfs_cid, s.anomalies, s.result_json, s.error,
	a.status, a.block_number, a.transaction_hash, a.verified, a.on_chain_hash, a.anchored_at
FROM sessions AS s
LEFT JOIN anchors AS a ON a.result_hash = s.result_hash AND s.result_hash != ''
`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                                   Entry
		started, updated                    string
		batchId, dataHash, modelHash        sql.NullString
		resultHash, cid, resultJson, errMsg sql.NullString
		status, txHash, onChain, anchoredAt sql.NullString
		block, verified                     sql.NullInt64
	)
	if err := row.Scan(
		&e.SessionId, &e.Source, &started, &updated, &e.Stage, &batchId,
		&dataHash, &modelHash, &resultHash, &cid, &e.Anomalies, &resultJson, &errMsg,
		&status, &block, &txHash, &verified, &onChain, &anchoredAt,
	); err != nil {
		return Entry{}, err
	}

	var err error
	if e.StartedAt, err = parseTime(started); err != nil {
		return Entry{}, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return Entry{}, err
	}
	e.BatchId = batchId.String
	e.Triplet = types.Triplet{DataHash: dataHash.String, ModelHash: modelHash.String, ResultHash: resultHash.String}
	e.IpfsCid = cid.String
	e.Error = errMsg.String
	if resultJson.Valid {
		r := analysis.Result{}
		if err := json.Unmarshal([]byte(resultJson.String), &r); err != nil {
			return Entry{}, fmt.Errorf("decode result: %w", err)
		}
		e.Result = &r
	}
	if status.Valid {
		a := &Anchor{
			Status:          status.String,
			BlockNumber:     uint64(block.Int64),
			TransactionHash: txHash.String,
			Verified:        verified.Int64 == 1,
			OnChainHash:     onChain.String,
		}
		if a.AnchoredAt, err = parseTime(anchoredAt.String); err != nil {
			return Entry{}, err
		}
		e.Anchor = a
	}
	return e, nil
}

// Get returns the session with the id.
func (j *Journal) Get(ctx context.Context, sessionId string) (Entry, error) {
	row := j.db.QueryRowContext(ctx, selectEntry+`WHERE s.session_id = ?`, sessionId)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, sessionId)
	}
	return e, err
}

// LastComplete returns the latest session whose analysis has been complete.
func (j *Journal) LastComplete(ctx context.Context) (Entry, error) {
	row := j.db.QueryRowContext(
		ctx,
		selectEntry+`WHERE s.stage = ? ORDER BY s.updated_at DESC LIMIT 1`,
		pipeline.Complete.String(),
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// List returns sessions, latest first.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, selectEntry+`ORDER BY s.updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	ret := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, e)
	}
	return ret, rows.Err()
}

// fixed width, to be sorted as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("broken timestamp %q: %w", s, err)
	}
	return t, nil
}

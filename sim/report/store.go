package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/xid"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/qos-sim/qos-sim/sim/network"
	"github.com/qos-sim/qos-sim/sim/scenario"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	scenario   TEXT NOT NULL,
	seed       INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	end_clock  INTEGER NOT NULL,
	executed   INTEGER NOT NULL,
	window_ns  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS group_reports (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name            TEXT NOT NULL,
	flows           INTEGER NOT NULL,
	tx_packets      INTEGER NOT NULL,
	rx_packets      INTEGER NOT NULL,
	rx_bytes        INTEGER NOT NULL,
	loss_percent    REAL NOT NULL,
	avg_delay_ms    REAL NOT NULL,
	p99_delay_ms    REAL NOT NULL,
	avg_jitter_ms   REAL NOT NULL,
	throughput_mbps REAL NOT NULL,
	PRIMARY KEY (run_id, name)
);
CREATE TABLE IF NOT EXISTS drops (
	run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	node    TEXT NOT NULL,
	reason  TEXT NOT NULL,
	packets INTEGER NOT NULL,
	PRIMARY KEY (run_id, node, reason)
);
CREATE INDEX IF NOT EXISTS runs_scenario ON runs(scenario, created_at);
`

// RunRecord is one persisted run.
type RunRecord struct {
	ID        string
	Scenario  string
	Seed      int64
	CreatedAt time.Time
	EndClock  int64
	Executed  uint64
	Window    time.Duration
}

// GroupRecord is one persisted flow-group row.
type GroupRecord struct {
	Name           string
	Flows          int
	TxPackets      uint64
	RxPackets      uint64
	RxBytes        uint64
	LossPercent    float64
	AvgDelayMs     float64
	P99DelayMs     float64
	AvgJitterMs    float64
	ThroughputMbps float64
}

// Store persists run results in a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens (creating if needed) the database at path and applies the
// schema.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("report store: empty path")
	}
	if strings.Contains(path, ":memory:") {
		return nil, fmt.Errorf("report store: use a file path, got %q", path)
	}
	params := make(url.Values)
	params.Add("_txlock", "immediate")
	params.Add("_pragma", "busy_timeout(1000)")
	params.Add("_pragma", "foreign_keys(1)")
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	db, err := sql.Open("sqlite", dsn+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening report store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating report schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes res in a single transaction and returns the new run ID.
func (s *Store) Save(ctx context.Context, res *scenario.Result) (string, error) {
	id := xid.New().String()
	var window time.Duration
	if res.Report != nil {
		window = res.Report.Window
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, seed, created_at, end_clock, executed, window_ns) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, res.Scenario, res.Seed, s.now().UTC().UnixNano(), res.EndClock, int64(res.Executed), int64(window))
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	if res.Report != nil {
		for _, g := range res.Report.Groups {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO group_reports (run_id, name, flows, tx_packets, rx_packets, rx_bytes,
					loss_percent, avg_delay_ms, p99_delay_ms, avg_jitter_ms, throughput_mbps)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id, g.Group, g.Flows, int64(g.TxPackets), int64(g.RxPackets), int64(g.RxBytes),
				g.LossPercent, g.AvgDelayMs, g.Delay.P99, g.AvgJitterMs, g.ThroughputMbps)
			if err != nil {
				return "", fmt.Errorf("inserting group %q: %w", g.Group, err)
			}
		}
	}

	for node, drops := range res.NodeDrops {
		for _, reason := range network.DropReasons() {
			n := drops[reason]
			if n == 0 {
				continue
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO drops (run_id, node, reason, packets) VALUES (?, ?, ?, ?)`,
				id, node, string(reason), int64(n))
			if err != nil {
				return "", fmt.Errorf("inserting drops for %s: %w", node, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Runs lists stored runs, newest first. An empty scenario lists all.
func (s *Store) Runs(ctx context.Context, scenarioName string) ([]RunRecord, error) {
	query := `SELECT id, scenario, seed, created_at, end_clock, executed, window_ns FROM runs`
	var args []any
	if scenarioName != "" {
		query += ` WHERE scenario = ?`
		args = append(args, scenarioName)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var created, executed, window int64
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Seed, &created, &r.EndClock, &executed, &window); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		r.Executed = uint64(executed)
		r.Window = time.Duration(window)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Groups returns the flow-group rows of a run ordered by name.
func (s *Store) Groups(ctx context.Context, runID string) ([]GroupRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, flows, tx_packets, rx_packets, rx_bytes, loss_percent, avg_delay_ms,
			p99_delay_ms, avg_jitter_ms, throughput_mbps
		FROM group_reports WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying groups of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []GroupRecord
	for rows.Next() {
		var g GroupRecord
		var tx, rx, rxBytes int64
		if err := rows.Scan(&g.Name, &g.Flows, &tx, &rx, &rxBytes, &g.LossPercent, &g.AvgDelayMs,
			&g.P99DelayMs, &g.AvgJitterMs, &g.ThroughputMbps); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		g.TxPackets, g.RxPackets, g.RxBytes = uint64(tx), uint64(rx), uint64(rxBytes)
		out = append(out, g)
	}
	return out, rows.Err()
}

// Drops returns the drop counters of a run keyed by node then reason.
func (s *Store) Drops(ctx context.Context, runID string) (map[string]map[network.DropReason]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT node, reason, packets FROM drops WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying drops of %s: %w", runID, err)
	}
	defer rows.Close()

	out := make(map[string]map[network.DropReason]uint64)
	for rows.Next() {
		var node, reason string
		var n int64
		if err := rows.Scan(&node, &reason, &n); err != nil {
			return nil, fmt.Errorf("scanning drop: %w", err)
		}
		if out[node] == nil {
			out[node] = make(map[network.DropReason]uint64)
		}
		out[node][network.DropReason(reason)] = uint64(n)
	}
	return out, rows.Err()
}

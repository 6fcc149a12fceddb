// Package runstore persists controller runs to SQLite: one row per
// run, the per-tick departure log, queue-depth samples and the results
// of offline timing sweeps. The daemon records into it when asked to;
// everything else reads.
package runstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/fourway-systems/fourway/internal/engine"
)

// Store wraps the run database. It embeds *sql.DB so callers can drop
// to raw SQL where the typed helpers fall short.
type Store struct {
	*sql.DB
	path string
}

// New opens (creating if needed) the store at path, applies the
// connection pragmas and brings the schema up to date.
func New(path string) (*Store, error) {
	s, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	fsys, err := Migrations()
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := s.MigrateUp(fsys); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenDB opens the store without touching the schema. The migrate
// subcommand uses this; everything else wants New.
func OpenDB(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{DB: db, path: path}, nil
}

// applyPragmas sets the per-connection knobs every opener needs: WAL
// so the admin surface can read while the daemon writes, and a busy
// timeout so those readers wait instead of failing.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("applying %q: %w", p, err)
		}
	}
	return nil
}

// Run is one recorded controller run.
type Run struct {
	ID         string        `json:"id"`
	Scenario   string        `json:"scenario"`
	Seed       int64         `json:"seed"`
	Timing     engine.Timing `json:"timing"`
	Steps      int           `json:"steps"`
	Arrivals   int           `json:"arrivals"`
	Departures int           `json:"departures"`
	AvgWait    float64       `json:"avg_wait"`
	MaxWait    float64       `json:"max_wait"`
	LeftWait   float64       `json:"left_wait"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// RunSummary carries the closing counters for FinishRun.
type RunSummary struct {
	Steps      int
	Arrivals   int
	Departures int
	AvgWait    float64
	MaxWait    float64
	LeftWait   float64
}

// CreateRun inserts a new run row for the given scenario and signal
// plan and returns its generated ID.
func (s *Store) CreateRun(scenario string, seed int64, t engine.Timing) (string, error) {
	id := uuid.NewString()
	_, err := s.Exec(`
		INSERT INTO runs (
			id, scenario, seed,
			green_straight, green_left, yellow, all_red, red_yellow,
			extend_threshold, max_extension, skip_limit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, scenario, seed,
		t.GreenStraight, t.GreenLeft, t.Yellow, t.AllRed, t.RedYellow,
		t.ExtendThreshold, t.MaxExtension, t.SkipLimit,
	)
	if err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	return id, nil
}

// FinishRun stores the closing counters and stamps the run finished.
func (s *Store) FinishRun(id string, sum RunSummary) error {
	res, err := s.Exec(`
		UPDATE runs SET
			steps = ?, arrivals = ?, departures = ?,
			avg_wait = ?, max_wait = ?, left_wait = ?,
			finished_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		sum.Steps, sum.Arrivals, sum.Departures,
		sum.AvgWait, sum.MaxWait, sum.LeftWait, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("finishing run %s: no such run", id)
	}
	return nil
}

// RecordStep logs one tick of a run: every departure with the state it
// departed under, plus a queue-depth sample per road. The writes share
// one transaction so a crashed daemon never leaves a half-recorded
// tick.
func (s *Store) RecordStep(runID string, res engine.StepResult, queues [engine.NumRoads][engine.NumLanes]int) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("recording step: %w", err)
	}
	defer tx.Rollback()

	for _, d := range res.Departed {
		_, err := tx.Exec(`
			INSERT INTO departures (run_id, tick, phase, vehicle_id, road, lane, wait)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, res.Tick, res.State.String(), d.ID, d.Road.String(), d.Lane.String(), d.Wait,
		)
		if err != nil {
			return fmt.Errorf("recording departure %s: %w", d.ID, err)
		}
	}

	for road := engine.Direction(0); road < engine.NumRoads; road++ {
		_, err := tx.Exec(`
			INSERT INTO queue_samples (run_id, tick, road, straight_right, left_turn)
			VALUES (?, ?, ?, ?, ?)`,
			runID, res.Tick, road.String(),
			queues[road][engine.LaneStraightRight], queues[road][engine.LaneLeft],
		)
		if err != nil {
			return fmt.Errorf("recording queue sample for %s: %w", road, err)
		}
	}

	return tx.Commit()
}

// Runs returns the most recent runs, newest first. A non-positive
// limit returns up to 100.
func (s *Store) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Query(`
		SELECT id, scenario, seed,
			green_straight, green_left, yellow, all_red, red_yellow,
			extend_threshold, max_extension, skip_limit,
			steps, arrivals, departures, avg_wait, max_wait, left_wait,
			started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Run returns one run by ID, or sql.ErrNoRows.
func (s *Store) Run(id string) (*Run, error) {
	rows, err := s.Query(`
		SELECT id, scenario, seed,
			green_straight, green_left, yellow, all_red, red_yellow,
			extend_threshold, max_extension, skip_limit,
			steps, arrivals, departures, avg_wait, max_wait, left_wait,
			started_at, finished_at
		FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	r, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var r Run
	var finished sql.NullTime
	err := rows.Scan(
		&r.ID, &r.Scenario, &r.Seed,
		&r.Timing.GreenStraight, &r.Timing.GreenLeft, &r.Timing.Yellow,
		&r.Timing.AllRed, &r.Timing.RedYellow,
		&r.Timing.ExtendThreshold, &r.Timing.MaxExtension, &r.Timing.SkipLimit,
		&r.Steps, &r.Arrivals, &r.Departures,
		&r.AvgWait, &r.MaxWait, &r.LeftWait,
		&r.StartedAt, &finished,
	)
	if err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

// DepartureRow is one logged departure.
type DepartureRow struct {
	Tick      uint32 `json:"tick"`
	Phase     string `json:"phase"`
	VehicleID string `json:"vehicle_id"`
	Road      string `json:"road"`
	Lane      string `json:"lane"`
	Wait      uint32 `json:"wait"`
}

// RunDepartures returns every departure logged for a run in tick
// order.
func (s *Store) RunDepartures(runID string) ([]DepartureRow, error) {
	rows, err := s.Query(`
		SELECT tick, phase, vehicle_id, road, lane, wait
		FROM departures WHERE run_id = ? ORDER BY tick, rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DepartureRow
	for rows.Next() {
		var d DepartureRow
		if err := rows.Scan(&d.Tick, &d.Phase, &d.VehicleID, &d.Road, &d.Lane, &d.Wait); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// QueueSample is one per-road queue depth observation.
type QueueSample struct {
	Tick          uint32 `json:"tick"`
	Road          string `json:"road"`
	StraightRight int    `json:"straight_right"`
	LeftTurn      int    `json:"left_turn"`
}

// RunQueueSamples returns the queue-depth log for a run in tick order.
func (s *Store) RunQueueSamples(runID string) ([]QueueSample, error) {
	rows, err := s.Query(`
		SELECT tick, road, straight_right, left_turn
		FROM queue_samples WHERE run_id = ? ORDER BY tick, rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueueSample
	for rows.Next() {
		var q QueueSample
		if err := rows.Scan(&q.Tick, &q.Road, &q.StraightRight, &q.LeftTurn); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SweepResult is one (policy, scenario, plan) measurement persisted
// from an offline timing sweep.
type SweepResult struct {
	Policy     string        `json:"policy"`
	Scenario   string        `json:"scenario"`
	Seed       int64         `json:"seed"`
	Timing     engine.Timing `json:"timing"`
	AvgWait    float64       `json:"avg_wait"`
	MaxWait    float64       `json:"max_wait"`
	LeftWait   float64       `json:"left_wait"`
	Throughput int           `json:"throughput"`
	Cost       float64       `json:"cost"`
}

// RecordSweepResult appends one sweep measurement.
func (s *Store) RecordSweepResult(r SweepResult) error {
	_, err := s.Exec(`
		INSERT INTO sweep_results (
			policy, scenario, seed,
			green_straight, green_left, extend_threshold, max_extension, skip_limit,
			avg_wait, max_wait, left_wait, throughput, cost
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Policy, r.Scenario, r.Seed,
		r.Timing.GreenStraight, r.Timing.GreenLeft,
		r.Timing.ExtendThreshold, r.Timing.MaxExtension, r.Timing.SkipLimit,
		r.AvgWait, r.MaxWait, r.LeftWait, r.Throughput, r.Cost,
	)
	if err != nil {
		return fmt.Errorf("recording sweep result: %w", err)
	}
	return nil
}

// SweepResults returns every stored measurement for a policy, cheapest
// first. An empty policy returns all policies.
func (s *Store) SweepResults(policy string) ([]SweepResult, error) {
	query := `
		SELECT policy, scenario, seed,
			green_straight, green_left, extend_threshold, max_extension, skip_limit,
			avg_wait, max_wait, left_wait, throughput, cost
		FROM sweep_results`
	args := []any{}
	if policy != "" {
		query += " WHERE policy = ?"
		args = append(args, policy)
	}
	query += " ORDER BY cost, rowid"

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SweepResult
	for rows.Next() {
		var r SweepResult
		err := rows.Scan(
			&r.Policy, &r.Scenario, &r.Seed,
			&r.Timing.GreenStraight, &r.Timing.GreenLeft,
			&r.Timing.ExtendThreshold, &r.Timing.MaxExtension, &r.Timing.SkipLimit,
			&r.AvgWait, &r.MaxWait, &r.LeftWait, &r.Throughput, &r.Cost,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

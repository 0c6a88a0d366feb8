package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/scheduler"
)

// Run is one row of the runs table.
type Run struct {
	ID        string
	Course    string
	StartedAt time.Time
	EndedAt   time.Time // zero while the run is still open
	Result    string    // running, finished, faulted, aborted
	Ticks     uint64    // scheduler dispatches over the whole run
}

// Transition is one supervisor phase change within a run.
type Transition struct {
	Seq   int
	At    time.Time
	From  string
	To    string
	Cause string
	Tick  uint64 // supervisor tick count at the transition
}

// Sample is one periodic status frame within a run.
type Sample struct {
	Seq           uint64 // sensor poll sequence the frame was built from
	At            time.Time
	Phase         string
	LineState     string
	LinePosition  float64
	Heading       float64
	HeadingError  float64
	LeftEffort    float64
	RightEffort   float64
	LeftVelocity  float64
	RightVelocity float64
	LeftCounts    int64
	RightCounts   int64
}

// CreateRun opens a run row. Idempotent: recreating an existing ID
// refreshes the course and start time.
func (s *Store) CreateRun(ctx context.Context, id, course string, startedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, course, started_at, result)
		VALUES (?, ?, ?, 'running')
		ON CONFLICT(id) DO UPDATE SET
			course = excluded.course,
			started_at = excluded.started_at,
			result = 'running'
	`, id, course, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", id, err)
	}
	return nil
}

// EndRun closes a run row with its result and total tick count.
func (s *Store) EndRun(ctx context.Context, id, result string, ticks uint64, endedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET ended_at = ?, result = ?, ticks = ?
		WHERE id = ?
	`, endedAt.UTC(), result, int64(ticks), id)
	if err != nil {
		return fmt.Errorf("failed to end run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to end run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("no run with id %s", id)
	}
	return nil
}

// AppendTransition records one phase change.
func (s *Store) AppendTransition(ctx context.Context, runID string, t Transition) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (run_id, seq, at, from_phase, to_phase, cause, tick)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, t.Seq, t.At.UTC(), t.From, t.To, t.Cause, int64(t.Tick))
	if err != nil {
		return fmt.Errorf("failed to append transition for run %s: %w", runID, err)
	}
	return nil
}

// AppendSample records one status frame.
func (s *Store) AppendSample(ctx context.Context, runID string, sm Sample) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO samples (
			run_id, seq, at, phase, line_state, line_position,
			heading, heading_error, left_effort, right_effort,
			left_velocity, right_velocity, left_counts, right_counts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, int64(sm.Seq), sm.At.UTC(), sm.Phase, sm.LineState, sm.LinePosition,
		sm.Heading, sm.HeadingError, sm.LeftEffort, sm.RightEffort,
		sm.LeftVelocity, sm.RightVelocity, sm.LeftCounts, sm.RightCounts)
	if err != nil {
		return fmt.Errorf("failed to append sample for run %s: %w", runID, err)
	}
	return nil
}

// SaveTaskStats upserts the final scheduler statistics for a run. One
// transaction so a report never sees a half-written table.
func (s *Store) SaveTaskStats(ctx context.Context, runID string, stats []scheduler.TaskStats) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, st := range stats {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_stats (run_id, task, priority, period_us, runs, missed, max_late_us)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, task) DO UPDATE SET
				runs = excluded.runs,
				missed = excluded.missed,
				max_late_us = excluded.max_late_us
		`, runID, st.Name, st.Priority, st.Period.Microseconds(),
			int64(st.Runs), int64(st.Missed), st.MaxLate.Microseconds())
		if err != nil {
			return fmt.Errorf("failed to save stats for task %s: %w", st.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task stats: %w", err)
	}
	return nil
}

// GetRun retrieves one run row.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, course, started_at, ended_at, result, ticks
		FROM runs WHERE id = ?
	`, id))
}

// LatestRun retrieves the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, course, started_at, ended_at, result, ticks
		FROM runs ORDER BY started_at DESC, id DESC LIMIT 1
	`))
}

// ListRuns retrieves up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, course, started_at, ended_at, result, ticks
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Transitions retrieves a run's phase changes in order.
func (s *Store) Transitions(ctx context.Context, runID string) ([]Transition, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, at, from_phase, to_phase, cause, tick
		FROM transitions WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var ts []Transition
	for rows.Next() {
		var t Transition
		var tick int64
		if err := rows.Scan(&t.Seq, &t.At, &t.From, &t.To, &t.Cause, &tick); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.Tick = uint64(tick)
		ts = append(ts, t)
	}
	return ts, rows.Err()
}

// TaskStats retrieves a run's final scheduler statistics, ordered by
// descending priority the way the scheduler reports them.
func (s *Store) TaskStats(ctx context.Context, runID string) ([]scheduler.TaskStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT task, priority, period_us, runs, missed, max_late_us
		FROM task_stats WHERE run_id = ? ORDER BY priority DESC, task
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task stats: %w", err)
	}
	defer rows.Close()

	var stats []scheduler.TaskStats
	for rows.Next() {
		var st scheduler.TaskStats
		var periodUS, runsN, missed, maxLateUS int64
		if err := rows.Scan(&st.Name, &st.Priority, &periodUS, &runsN, &missed, &maxLateUS); err != nil {
			return nil, fmt.Errorf("failed to scan task stats: %w", err)
		}
		st.Period = time.Duration(periodUS) * time.Microsecond
		st.Runs = uint64(runsN)
		st.Missed = uint64(missed)
		st.MaxLate = time.Duration(maxLateUS) * time.Microsecond
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// SampleCount returns how many samples a run recorded.
func (s *Store) SampleCount(ctx context.Context, runID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM samples WHERE run_id = ?
	`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return n, nil
}

// Samples retrieves a run's status frames in recorded order.
func (s *Store) Samples(ctx context.Context, runID string) ([]Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, at, phase, line_state, line_position,
			heading, heading_error, left_effort, right_effort,
			left_velocity, right_velocity, left_counts, right_counts
		FROM samples WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sm Sample
		var seq int64
		if err := rows.Scan(&seq, &sm.At, &sm.Phase, &sm.LineState, &sm.LinePosition,
			&sm.Heading, &sm.HeadingError, &sm.LeftEffort, &sm.RightEffort,
			&sm.LeftVelocity, &sm.RightVelocity, &sm.LeftCounts, &sm.RightCounts); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		sm.Seq = uint64(seq)
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var ended sql.NullTime
	var ticks int64
	err := row.Scan(&run.ID, &run.Course, &run.StartedAt, &ended, &run.Result, &ticks)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no runs recorded: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if ended.Valid {
		run.EndedAt = ended.Time
	}
	run.Ticks = uint64(ticks)
	return &run, nil
}

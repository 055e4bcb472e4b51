// Package store persists solve runs and their tracks to sqlite, so tuning
// sessions can be compared after the fact.
package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cellscape/tracklet/graph"
	"github.com/cellscape/tracklet/track"
)

// Store is the sqlite-backed run archive.
type Store struct {
	db *sql.DB
}

// RunSummary describes one persisted solve run.
type RunSummary struct {
	RunID       string
	Name        string
	CreatedAtNs int64
	Objective   float64
	TimeLimited bool
	NumNodes    int
	NumEdges    int
	NumTracks   int
	Params      string
}

// TrackPoint is one detection of one persisted track.
type TrackPoint struct {
	TrackID int64
	NodeID  int64
	Frame   int
	X, Y, Z float64
	Score   float64
}

// Open opens (or creates) the run archive at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id        TEXT PRIMARY KEY,
			name          TEXT,
			created_at_ns BIGINT,
			objective     DOUBLE,
			time_limited  INTEGER,
			num_nodes     BIGINT,
			num_edges     BIGINT,
			num_tracks    BIGINT,
			params        TEXT
		);
		CREATE TABLE IF NOT EXISTS tracks (
			run_id       TEXT,
			track_id     BIGINT,
			start_frame  BIGINT,
			end_frame    BIGINT,
			num_points   BIGINT,
			PRIMARY KEY (run_id, track_id)
		);
		CREATE TABLE IF NOT EXISTS track_points (
			run_id    TEXT,
			track_id  BIGINT,
			node_id   BIGINT,
			frame     BIGINT,
			x         DOUBLE,
			y         DOUBLE,
			z         DOUBLE,
			score     DOUBLE
		);
		CREATE INDEX IF NOT EXISTS idx_track_points_run_track
			ON track_points (run_id, track_id, frame);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun persists a solution and its track assignment under a fresh run id.
// params is free-form (typically the JSON of the tuning used).
func (s *Store) SaveRun(name string, sol *track.Solution, ids map[graph.NodeID]int64, params string) (string, error) {
	runID := uuid.NewString()

	type agg struct {
		start, end, points int
	}
	perTrack := make(map[int64]*agg)
	for _, n := range sol.Graph.Nodes() {
		tid, ok := ids[n.ID]
		if !ok {
			return "", fmt.Errorf("store: node %d has no track id", n.ID)
		}
		a := perTrack[tid]
		if a == nil {
			a = &agg{start: n.Frame, end: n.Frame}
			perTrack[tid] = a
		}
		if n.Frame < a.start {
			a.start = n.Frame
		}
		if n.Frame > a.end {
			a.end = n.Frame
		}
		a.points++
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO runs (run_id, name, created_at_ns, objective, time_limited, num_nodes, num_edges, num_tracks, params)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, name, time.Now().UnixNano(), sol.Objective, boolToInt(sol.TimeLimited),
		sol.Graph.NumNodes(), sol.Graph.NumEdges(), len(perTrack), params,
	); err != nil {
		return "", fmt.Errorf("store: insert run: %w", err)
	}

	trackIDs := make([]int64, 0, len(perTrack))
	for tid := range perTrack {
		trackIDs = append(trackIDs, tid)
	}
	sort.Slice(trackIDs, func(i, j int) bool { return trackIDs[i] < trackIDs[j] })
	for _, tid := range trackIDs {
		a := perTrack[tid]
		if _, err := tx.Exec(`
			INSERT INTO tracks (run_id, track_id, start_frame, end_frame, num_points)
			VALUES (?, ?, ?, ?, ?)`,
			runID, tid, a.start, a.end, a.points,
		); err != nil {
			return "", fmt.Errorf("store: insert track %d: %w", tid, err)
		}
	}

	for _, n := range sol.Graph.Nodes() {
		x, y, z := coords(n.Pos)
		if _, err := tx.Exec(`
			INSERT INTO track_points (run_id, track_id, node_id, frame, x, y, z, score)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, ids[n.ID], int64(n.ID), n.Frame, x, y, z, n.Score,
		); err != nil {
			return "", fmt.Errorf("store: insert point for node %d: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit: %w", err)
	}
	return runID, nil
}

// GetRun fetches one run summary.
func (s *Store) GetRun(runID string) (*RunSummary, error) {
	row := s.db.QueryRow(`
		SELECT run_id, name, created_at_ns, objective, time_limited, num_nodes, num_edges, num_tracks, params
		FROM runs WHERE run_id = ?`, runID)
	var (
		r  RunSummary
		tl int
	)
	if err := row.Scan(&r.RunID, &r.Name, &r.CreatedAtNs, &r.Objective, &tl,
		&r.NumNodes, &r.NumEdges, &r.NumTracks, &r.Params); err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", runID, err)
	}
	r.TimeLimited = tl != 0
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT run_id, name, created_at_ns, objective, time_limited, num_nodes, num_edges, num_tracks, params
		FROM runs ORDER BY created_at_ns DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r  RunSummary
			tl int
		)
		if err := rows.Scan(&r.RunID, &r.Name, &r.CreatedAtNs, &r.Objective, &tl,
			&r.NumNodes, &r.NumEdges, &r.NumTracks, &r.Params); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		r.TimeLimited = tl != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// TrackPoints returns the points of one track ordered by frame.
func (s *Store) TrackPoints(runID string, trackID int64) ([]TrackPoint, error) {
	rows, err := s.db.Query(`
		SELECT track_id, node_id, frame, x, y, z, score
		FROM track_points
		WHERE run_id = ? AND track_id = ?
		ORDER BY frame, node_id`, runID, trackID)
	if err != nil {
		return nil, fmt.Errorf("store: track points: %w", err)
	}
	defer rows.Close()

	var out []TrackPoint
	for rows.Next() {
		var p TrackPoint
		if err := rows.Scan(&p.TrackID, &p.NodeID, &p.Frame, &p.X, &p.Y, &p.Z, &p.Score); err != nil {
			return nil, fmt.Errorf("store: scan point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func coords(pos []float64) (x, y, z float64) {
	if len(pos) > 0 {
		x = pos[0]
	}
	if len(pos) > 1 {
		y = pos[1]
	}
	if len(pos) > 2 {
		z = pos[2]
	}
	return x, y, z
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package stats persists per-sequence class statistics: which frames of a
// split contain which classes, and the per-class point counts. Computing
// these requires a full labeled pass over the split, so results are cached
// in SQLite keyed by (split, frame mode) and reused across runs.
package stats

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sort"

	"github.com/banshee-data/pointbatch/internal/monitoring"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SplitStats holds the class statistics of one split/frame-mode pair.
type SplitStats struct {
	Split     string
	FrameMode string // "single" or "multi"
	// ClassFrames lists, per class, the global frame indices known to
	// contain at least one point of the class. Sorted ascending.
	ClassFrames map[int32][]int
	// Proportions is the total point count per class over the split.
	Proportions map[int32]int64
}

// Store is the SQLite-backed statistics cache.
type Store struct {
	*sql.DB
}

// Open opens (creating if needed) a statistics cache at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats cache: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply stats cache schema: %w", err)
	}
	return &Store{db}, nil
}

// Load returns the cached statistics for (split, frameMode), or ok=false if
// the cache has no entry for that key.
func (s *Store) Load(split, frameMode string) (*SplitStats, bool, error) {
	st := &SplitStats{
		Split:       split,
		FrameMode:   frameMode,
		ClassFrames: make(map[int32][]int),
		Proportions: make(map[int32]int64),
	}

	rows, err := s.Query(
		`SELECT class_id, frame_index FROM class_frames
		 WHERE split = ? AND frame_mode = ? ORDER BY class_id, frame_index`,
		split, frameMode)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query class frames: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var class int32
		var frame int
		if err := rows.Scan(&class, &frame); err != nil {
			return nil, false, err
		}
		st.ClassFrames[class] = append(st.ClassFrames[class], frame)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	propRows, err := s.Query(
		`SELECT class_id, point_count FROM class_proportions
		 WHERE split = ? AND frame_mode = ?`,
		split, frameMode)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query class proportions: %w", err)
	}
	defer propRows.Close()
	for propRows.Next() {
		var class int32
		var count int64
		if err := propRows.Scan(&class, &count); err != nil {
			return nil, false, err
		}
		st.Proportions[class] = count
	}
	if err := propRows.Err(); err != nil {
		return nil, false, err
	}

	if len(st.Proportions) == 0 {
		return nil, false, nil
	}
	return st, true, nil
}

// Save replaces any cached statistics for the stats' (split, frameMode) key.
func (s *Store) Save(st *SplitStats) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin stats transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM class_frames WHERE split = ? AND frame_mode = ?`,
		`DELETE FROM class_proportions WHERE split = ? AND frame_mode = ?`,
	} {
		if _, err := tx.Exec(stmt, st.Split, st.FrameMode); err != nil {
			return fmt.Errorf("failed to clear stale stats: %w", err)
		}
	}

	frameIns, err := tx.Prepare(
		`INSERT INTO class_frames (split, frame_mode, class_id, frame_index) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer frameIns.Close()

	classes := make([]int32, 0, len(st.ClassFrames))
	for class := range st.ClassFrames {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	for _, class := range classes {
		frames := append([]int(nil), st.ClassFrames[class]...)
		sort.Ints(frames)
		for _, frame := range frames {
			if _, err := frameIns.Exec(st.Split, st.FrameMode, class, frame); err != nil {
				return fmt.Errorf("failed to insert class frame row: %w", err)
			}
		}
	}

	for class, count := range st.Proportions {
		if _, err := tx.Exec(
			`INSERT INTO class_proportions (split, frame_mode, class_id, point_count) VALUES (?, ?, ?, ?)`,
			st.Split, st.FrameMode, class, count); err != nil {
			return fmt.Errorf("failed to insert class proportion row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stats: %w", err)
	}
	monitoring.Logf("stats: cached class statistics for split=%s mode=%s (%d classes)",
		st.Split, st.FrameMode, len(st.Proportions))
	return nil
}

// Package checkpoint is a supplemented feature (see SPEC_FULL.md): a
// SQLite-backed cache of completed grid points, keyed by the particle pair,
// the (m,n,j,k) index, and a content hash of the model parameters in
// effect when the point was evaluated. grid.Driver consults it before
// integrating a point and records every point it evaluates (with its
// converged flag, whether true or false), so a
// cancelled or crashed sweep resumes instead of starting over.
package checkpoint

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/sha3"
)

// Cache wraps one SQLite database file holding completed grid points.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if absent) the checkpoint database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: opening %s: %w", path, err)
	}
	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS grid_points (
			pair_a TEXT NOT NULL,
			pair_b TEXT NOT NULL,
			m INTEGER NOT NULL,
			n INTEGER NOT NULL,
			j INTEGER NOT NULL,
			k INTEGER NOT NULL,
			input_hash TEXT NOT NULL,
			result REAL NOT NULL,
			error REAL NOT NULL,
			converged INTEGER NOT NULL,
			PRIMARY KEY (pair_a, pair_b, m, n, j, k)
		)
	`)
	if err != nil {
		return fmt.Errorf("checkpoint: migrating schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Entry is one cached grid point.
type Entry struct {
	Result    float64
	Error     float64
	Converged bool
}

// Lookup returns the cached entry for (pairA, pairB, m, n, j, k), if one
// exists whose stored input hash matches inputHash. A hash mismatch (the
// model parameters changed since the point was cached) is treated the same
// as a miss: the caller must re-evaluate.
func (c *Cache) Lookup(pairA, pairB string, m, n, j, k int, inputHash string) (Entry, bool, error) {
	var e Entry
	var storedHash string
	var convergedInt int
	row := c.db.QueryRow(
		`SELECT result, error, converged, input_hash FROM grid_points
		 WHERE pair_a = ? AND pair_b = ? AND m = ? AND n = ? AND j = ? AND k = ?`,
		pairA, pairB, m, n, j, k,
	)
	if err := row.Scan(&e.Result, &e.Error, &convergedInt, &storedHash); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("checkpoint: looking up (%s,%s,%d,%d,%d,%d): %w", pairA, pairB, m, n, j, k, err)
	}
	if storedHash != inputHash {
		return Entry{}, false, nil
	}
	e.Converged = convergedInt != 0
	return e, true, nil
}

// Store records one completed grid point, overwriting any previous entry
// at the same key (e.g. from a stale input hash).
func (c *Cache) Store(pairA, pairB string, m, n, j, k int, inputHash string, e Entry) error {
	_, err := c.db.Exec(
		`INSERT INTO grid_points (pair_a, pair_b, m, n, j, k, input_hash, result, error, converged)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pair_a, pair_b, m, n, j, k) DO UPDATE SET
		   input_hash = excluded.input_hash,
		   result = excluded.result,
		   error = excluded.error,
		   converged = excluded.converged`,
		pairA, pairB, m, n, j, k, inputHash, e.Result, e.Error, boolToInt(e.Converged),
	)
	if err != nil {
		return fmt.Errorf("checkpoint: storing (%s,%s,%d,%d,%d,%d): %w", pairA, pairB, m, n, j, k, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// HashParameters derives a stable content hash of the current model
// parameter snapshot, used to detect that a cached point was computed
// under different parameter values and must be invalidated.
func HashParameters(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	h := sha3.New256()
	for _, name := range names {
		h.Write([]byte(name))
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(params[name]))
		h.Write(buf[:])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

package coverage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultStoreDir is where the repository persists between runs.
const DefaultStoreDir = ".testpackage"

const (
	probesFile   = "probes"
	costsFile    = "costs"
	failuresFile = "failures"
)

// ErrWidthMismatch is returned when a persisted bitmap does not match the
// repository's probe-point count.
var ErrWidthMismatch = errors.New("bitmap width mismatch")

// TestWithCoverage is one test's coverage snapshot: its canonical id, the
// probes it exercised on its last observed run, and its cost in
// milliseconds. Immutable once loaded.
type TestWithCoverage struct {
	ID       string
	Coverage *Bitmap
	Cost     int64
}

// IndividualCoverage returns the fraction of all probe points this test
// covers on its own.
func (t *TestWithCoverage) IndividualCoverage() float64 {
	if t.Coverage == nil || t.Coverage.Len() == 0 {
		return 0
	}
	return float64(t.Coverage.Cardinality()) / float64(t.Coverage.Len())
}

// Repository is the persisted mapping of test id to coverage bitmap, cost
// and failure history, plus the global probe-point count shared by every
// bitmap in it.
type Repository struct {
	numProbePoints int
	bitmaps        map[string]*Bitmap
	costs          map[string]int64
	failureHistory map[string]int
}

// NewRepository creates an empty repository with the given probe-point
// count.
func NewRepository(numProbePoints int) *Repository {
	return &Repository{
		numProbePoints: numProbePoints,
		bitmaps:        make(map[string]*Bitmap),
		costs:          make(map[string]int64),
		failureHistory: make(map[string]int),
	}
}

// NumProbePoints returns the global probe-point count.
func (r *Repository) NumProbePoints() int { return r.numProbePoints }

// IsEmpty reports whether the repository holds no coverage data.
func (r *Repository) IsEmpty() bool { return len(r.bitmaps) == 0 }

// Put records a test's coverage bitmap, replacing any previous one. The
// bitmap width must match the repository's probe-point count.
func (r *Repository) Put(id string, bitmap *Bitmap) error {
	if bitmap.Len() != r.numProbePoints {
		return fmt.Errorf("coverage: %w: test %s has width %d, repository has %d",
			ErrWidthMismatch, id, bitmap.Len(), r.numProbePoints)
	}
	r.bitmaps[id] = bitmap
	return nil
}

// SetCost records the latest observed cost for a test.
func (r *Repository) SetCost(id string, costMillis int64) {
	r.costs[id] = costMillis
}

// Get returns the coverage snapshot for a test id, or nil when the
// repository has no bitmap for it.
func (r *Repository) Get(id string) *TestWithCoverage {
	bm, ok := r.bitmaps[id]
	if !ok {
		return nil
	}
	return &TestWithCoverage{ID: id, Coverage: bm, Cost: r.costs[id]}
}

// Tests returns every coverage snapshot ordered by id.
func (r *Repository) Tests() []*TestWithCoverage {
	ids := make([]string, 0, len(r.bitmaps))
	for id := range r.bitmaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*TestWithCoverage, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.Get(id))
	}
	return out
}

// RunsSinceLastFailure returns the failure recency of a test. Tests never
// seen failing have no entry.
func (r *Repository) RunsSinceLastFailure(id string) (int, bool) {
	v, ok := r.failureHistory[id]
	return v, ok
}

// FailureHistory returns a copy of the failure-history mapping.
func (r *Repository) FailureHistory() map[string]int {
	out := make(map[string]int, len(r.failureHistory))
	for k, v := range r.failureHistory {
		out[k] = v
	}
	return out
}

// RecordRun folds one completed run into the history: every known entry
// ages by one clean run, then every test that failed this run resets to
// zero. Tests that passed and were never seen failing stay absent — the
// implicit +inf sentinel.
func (r *Repository) RecordRun(failed []string) {
	for id := range r.failureHistory {
		r.failureHistory[id]++
	}
	for _, id := range failed {
		r.failureHistory[id] = 0
	}
}

// Load reads a repository from dir. Absent files yield an empty
// repository; malformed or width-inconsistent records are fatal.
func Load(dir string) (*Repository, error) {
	repo := NewRepository(0)

	if err := repo.loadProbes(filepath.Join(dir, probesFile)); err != nil {
		return nil, err
	}
	costs, err := loadIntFile(filepath.Join(dir, costsFile))
	if err != nil {
		return nil, err
	}
	for id, v := range costs {
		repo.costs[id] = v
	}
	failures, err := loadIntFile(filepath.Join(dir, failuresFile))
	if err != nil {
		return nil, err
	}
	for id, v := range failures {
		repo.failureHistory[id] = int(v)
	}
	return repo, nil
}

func (r *Repository) loadProbes(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("coverage: opening %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var n uint32
	if err := binary.Read(br, binary.BigEndian, &n); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty file, empty store
		}
		return fmt.Errorf("coverage: reading probe-point count: %w", err)
	}
	r.numProbePoints = int(n)
	bitmapLen := (r.numProbePoints + 7) / 8

	for {
		var idLen uint32
		if err := binary.Read(br, binary.BigEndian, &idLen); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("coverage: reading record header: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(br, idBytes); err != nil {
			return fmt.Errorf("coverage: reading test id: %w", err)
		}
		data := make([]byte, bitmapLen)
		if _, err := io.ReadFull(br, data); err != nil {
			return fmt.Errorf("coverage: reading bitmap for %s: %w", idBytes, err)
		}
		bm, err := BitmapFromBytes(r.numProbePoints, data)
		if err != nil {
			return err
		}
		if err := r.Put(string(idBytes), bm); err != nil {
			return err
		}
	}
}

// Save writes the repository to dir, creating the directory on first use.
func (r *Repository) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("coverage: creating store dir: %w", err)
	}
	if err := r.saveProbes(filepath.Join(dir, probesFile)); err != nil {
		return err
	}
	if err := saveIntFile(filepath.Join(dir, costsFile), r.costs); err != nil {
		return err
	}
	failures := make(map[string]int64, len(r.failureHistory))
	for id, v := range r.failureHistory {
		failures[id] = int64(v)
	}
	return saveIntFile(filepath.Join(dir, failuresFile), failures)
}

func (r *Repository) saveProbes(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("coverage: creating %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := binary.Write(bw, binary.BigEndian, uint32(r.numProbePoints)); err != nil {
		return fmt.Errorf("coverage: writing probe-point count: %w", err)
	}
	ids := make([]string, 0, len(r.bitmaps))
	for id := range r.bitmaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := binary.Write(bw, binary.BigEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("coverage: writing record header: %w", err)
		}
		if _, err := bw.WriteString(id); err != nil {
			return fmt.Errorf("coverage: writing test id: %w", err)
		}
		if _, err := bw.Write(r.bitmaps[id].Bytes()); err != nil {
			return fmt.Errorf("coverage: writing bitmap for %s: %w", id, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("coverage: flushing %s: %w", path, err)
	}
	return nil
}

// loadIntFile parses "id=value" lines. Absent file yields an empty map.
func loadIntFile(path string) (map[string]int64, error) {
	out := make(map[string]int64)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("coverage: opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("coverage: malformed record %q in %s", line, path)
		}
		v, err := strconv.ParseInt(line[idx+1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("coverage: malformed record %q in %s: %w", line, path, err)
		}
		out[line[:idx]] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("coverage: reading %s: %w", path, err)
	}
	return out, nil
}

func saveIntFile(path string, values map[string]int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("coverage: creating %s: %w", path, err)
	}
	defer f.Close()

	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	bw := bufio.NewWriter(f)
	for _, id := range ids {
		fmt.Fprintf(bw, "%s=%d\n", id, values[id])
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("coverage: flushing %s: %w", path, err)
	}
	return nil
}

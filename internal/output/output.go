// Package output pairs forecast values with timestamps and serializes them
// as "i,ds,y" CSV.
package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Header is the first line of every forecast file.
var Header = []string{"i", "ds", "y"}

// Record is one forecast row. Timestamp is Unix milliseconds, UTC.
type Record struct {
	Index     int     `json:"i"`
	Timestamp int64   `json:"ds"`
	Value     float64 `json:"y"`
}

// Trajectory is an ordered forecast.
type Trajectory []Record

// Assemble stamps values at last+step, last+2*step, ...
func Assemble(last time.Time, step time.Duration, values []float64) Trajectory {
	base := last.UTC().UnixMilli()
	stepMs := step.Milliseconds()
	t := make(Trajectory, len(values))
	for i, v := range values {
		t[i] = Record{Index: i, Timestamp: base + int64(i+1)*stepMs, Value: v}
	}
	return t
}

// Values returns the forecast values in order.
func (t Trajectory) Values() []float64 {
	out := make([]float64, len(t))
	for i, r := range t {
		out[i] = r.Value
	}
	return out
}

// WriteCSV writes the header and one row per record.
func (t Trajectory) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	row := make([]string, 3)
	for _, r := range t {
		row[0] = strconv.Itoa(r.Index)
		row[1] = strconv.FormatInt(r.Timestamp, 10)
		row[2] = strconv.FormatFloat(r.Value, 'f', -1, 64)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var errBadHeader = errors.New("not a forecast file")

// ReadCSV parses a file written by WriteCSV.
func ReadCSV(r io.Reader) (Trajectory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read forecast: %w", err)
	}
	if len(records) == 0 || records[0][0] != Header[0] || records[0][1] != Header[1] || records[0][2] != Header[2] {
		return nil, errBadHeader
	}

	t := make(Trajectory, 0, len(records)-1)
	for n, rec := range records[1:] {
		i, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d index: %w", n+1, err)
		}
		ds, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d timestamp: %w", n+1, err)
		}
		y, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d value: %w", n+1, err)
		}
		t = append(t, Record{Index: i, Timestamp: ds, Value: y})
	}
	return t, nil
}

// CachePath returns the cache file for an input: the input's base name under dir.
func CachePath(dir, input string) string {
	return filepath.Join(dir, filepath.Base(input))
}

// WriteCache writes t to path, creating the directory. The file only appears
// once it is complete.
func WriteCache(path string, t Trajectory) error {
	if err := writeAtomic(path, t.WriteCSV); err != nil {
		return fmt.Errorf("cache file: %w", err)
	}
	return nil
}

// Meta describes how a cached trajectory was produced.
type Meta struct {
	// Profile is the fingerprint of the profile that produced the cache.
	Profile string `json:"profile"`
	Method  string `json:"method"`
}

// MetaPath returns the metadata file kept next to a cache file.
func MetaPath(cachePath string) string {
	return cachePath + ".meta.json"
}

// WriteMeta stores m next to the cache file at cachePath.
func WriteMeta(cachePath string, m Meta) error {
	err := writeAtomic(MetaPath(cachePath), func(w io.Writer) error {
		return json.NewEncoder(w).Encode(m)
	})
	if err != nil {
		return fmt.Errorf("cache metadata: %w", err)
	}
	return nil
}

// ReadMeta loads the metadata of the cache file at cachePath.
func ReadMeta(cachePath string) (Meta, error) {
	var m Meta
	data, err := os.ReadFile(MetaPath(cachePath))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("read cache metadata: %w", err)
	}
	return m, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install: %w", err)
	}
	return nil
}

// ReadCache loads a cached trajectory.
func ReadCache(path string) (Trajectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

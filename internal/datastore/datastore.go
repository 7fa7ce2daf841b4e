// Package datastore persists simulation snapshots as a nested JSON document
// keyed by sweep parameters, and as a flat CSV table with one row per run.
package datastore

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/logging"
)

// ErrEmptyKeyPath is returned by Insert when no parent key is given.
var ErrEmptyKeyPath = errors.New("datastore: empty key path")

// Document is a decoded JSON object.
type Document = map[string]any

// Store accumulates run snapshots. It is not safe for concurrent use; the
// sweep driver gives every worker its own Store.
type Store struct {
	doc     Document
	columns []string
	rows    []map[string]string
	log     logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load and write diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{doc: Document{}, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of top-level keys in the document.
func (s *Store) Len() int { return len(s.doc) }

// Document returns the underlying document.
func (s *Store) Document() Document { return s.doc }

// SetDocument replaces the document.
func (s *Store) SetDocument(doc Document) {
	if doc == nil {
		doc = Document{}
	}
	s.doc = doc
}

// Insert stores snapshot at doc[keys[0]]...[keys[n-1]][elementKey], creating
// intermediate objects as needed. A non-object value found on the path is
// replaced by an object.
func (s *Store) Insert(elementKey string, snapshot map[string]any, keys ...string) error {
	if len(keys) == 0 {
		return ErrEmptyKeyPath
	}
	node := s.doc
	for _, k := range keys {
		child, ok := node[k].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[k] = child
		}
		node = child
	}
	node[elementKey] = maps.Clone(snapshot)
	return nil
}

// Lookup walks keys and returns the value found there.
func (s *Store) Lookup(keys ...string) (any, bool) {
	var cur any = s.doc
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Load reads a JSON document from path. A missing file reports false; with
// createIfMissing it is created empty first and the document is reset.
func (s *Store) Load(path string, createIfMissing bool) (bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if !createIfMissing {
			s.log.Warn(context.Background(), "data file not found", logging.String("path", path))
			return false, nil
		}
		if err := createEmpty(path); err != nil {
			return false, err
		}
		s.doc = Document{}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(raw) == 0 {
		s.doc = Document{}
		return true, nil
	}
	doc := Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	s.doc = doc
	s.log.Debug(context.Background(), "data loaded", logging.String("path", path))
	return true, nil
}

// Write stores the document at path as indented JSON, creating parent
// directories.
func (s *Store) Write(path string) error {
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Merge returns a new document with every key of b applied over a. Nested
// objects are merged recursively; any other conflict takes b's value.
// Neither input is modified.
func Merge(a, b Document) Document {
	out := make(Document, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		left, lok := out[k].(map[string]any)
		right, rok := v.(map[string]any)
		if lok && rok {
			out[k] = map[string]any(Merge(left, right))
			continue
		}
		out[k] = v
	}
	return out
}

// AppendRow adds a flat snapshot as one CSV row. New keys extend the header;
// earlier rows leave them empty.
func (s *Store) AppendRow(snapshot map[string]any) {
	row := make(map[string]string, len(snapshot))
	for k, v := range snapshot {
		if !slices.Contains(s.columns, k) {
			s.columns = append(s.columns, k)
		}
		row[k] = formatCell(v)
	}
	slices.Sort(s.columns)
	s.rows = append(s.rows, row)
}

// AppendRows appends a copy of every row of other.
func (s *Store) AppendRows(other *Store) {
	for _, row := range other.rows {
		for k := range row {
			if !slices.Contains(s.columns, k) {
				s.columns = append(s.columns, k)
			}
		}
		s.rows = append(s.rows, maps.Clone(row))
	}
	slices.Sort(s.columns)
}

// Rows returns the number of CSV rows.
func (s *Store) Rows() int { return len(s.rows) }

// Columns returns the CSV header.
func (s *Store) Columns() []string { return slices.Clone(s.columns) }

// Column returns every value of one CSV column.
func (s *Store) Column(name string) []string {
	out := make([]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = r[name]
	}
	return out
}

// WriteCSV stores the rows at path with a sorted header.
func (s *Store) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(s.columns); err != nil {
		return err
	}
	for _, r := range s.rows {
		rec := make([]string, len(s.columns))
		for i, c := range s.columns {
			rec[i] = r[c]
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// LoadCSV replaces the rows with the content of path. A missing file reports
// false.
func (s *Store) LoadCSV(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	s.columns, s.rows = nil, nil
	if len(records) == 0 {
		return true, nil
	}
	s.columns = slices.Clone(records[0])
	for _, rec := range records[1:] {
		row := make(map[string]string, len(s.columns))
		for i, c := range s.columns {
			if i < len(rec) {
				row[c] = rec[i]
			}
		}
		s.rows = append(s.rows, row)
	}
	return true, nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case []int:
		parts := make([]string, len(x))
		for i, id := range x {
			parts[i] = strconv.Itoa(id)
		}
		return strings.Join(parts, ";")
	default:
		return fmt.Sprint(x)
	}
}

func createEmpty(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"
)

// Source produces the full record collection. Implementations return a
// *LoadError when the source itself cannot be read and a
// *MalformedRecordError when a record fails validation.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]DocumentRecord, error)
}

// Load reads every record from src and validates the collection.
func Load(ctx context.Context, src Source) ([]DocumentRecord, error) {
	recs, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := Validate(recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// parseFrom parses data, wrapping decode failures in a LoadError for name.
func parseFrom(name string, data []byte) ([]DocumentRecord, error) {
	recs, err := Parse(data)
	if err != nil {
		var malformed *MalformedRecordError
		if errors.As(err, &malformed) {
			return nil, err
		}
		return nil, &LoadError{Source: name, Err: err}
	}
	return recs, nil
}

// FileSource reads a JSON or search_index.js file from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Load(ctx context.Context) ([]DocumentRecord, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, &LoadError{Source: s.Name(), Err: err}
	}
	return parseFrom(s.Name(), data)
}

// BytesSource parses an in-memory payload, such as an embedded index.
type BytesSource struct {
	Label string
	Data  []byte
}

func (s BytesSource) Name() string { return "bytes:" + s.Label }

func (s BytesSource) Load(ctx context.Context) ([]DocumentRecord, error) {
	return parseFrom(s.Name(), s.Data)
}

// StaticSource serves an already-built slice.
type StaticSource []DocumentRecord

func (s StaticSource) Name() string { return "static" }

func (s StaticSource) Load(ctx context.Context) ([]DocumentRecord, error) {
	out := make([]DocumentRecord, len(s))
	copy(out, s)
	return out, nil
}

// URLSource fetches the index over HTTP. Non-2xx responses are load errors.
type URLSource struct {
	URL    string
	Client *http.Client
}

func (s URLSource) Name() string { return "url:" + s.URL }

func (s URLSource) Load(ctx context.Context) ([]DocumentRecord, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &LoadError{Source: s.Name(), Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &LoadError{Source: s.Name(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &LoadError{Source: s.Name(), Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LoadError{Source: s.Name(), Err: fmt.Errorf("reading response body: %w", err)}
	}
	return parseFrom(s.Name(), data)
}

// SQLSource runs Query against DB. The query must return the columns
// location, page, title, category, text in that order; NULL title or text
// is read as empty.
type SQLSource struct {
	Label string
	DB    *sql.DB
	Query string
}

func (s SQLSource) Name() string { return "sql:" + s.Label }

func (s SQLSource) Load(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := s.DB.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, &LoadError{Source: s.Name(), Err: fmt.Errorf("querying records: %w", err)}
	}
	defer func() { _ = rows.Close() }()

	recs := make([]DocumentRecord, 0)
	for rows.Next() {
		var (
			r           DocumentRecord
			category    string
			title, text sql.NullString
		)
		if err := rows.Scan(&r.Location, &r.Page, &title, &category, &text); err != nil {
			return nil, &LoadError{Source: s.Name(), Err: fmt.Errorf("scanning record %d: %w", len(recs), err)}
		}
		r.Title = title.String
		r.Text = text.String
		r.Category = Category(category)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Source: s.Name(), Err: fmt.Errorf("iterating records: %w", err)}
	}
	if err := Validate(recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// MultiSource loads its sources concurrently and concatenates the results in
// source order. Any failure aborts the whole load.
type MultiSource []Source

func (m MultiSource) Name() string { return fmt.Sprintf("multi(%d)", len(m)) }

func (m MultiSource) Load(ctx context.Context) ([]DocumentRecord, error) {
	parts := make([][]DocumentRecord, len(m))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range m {
		g.Go(func() error {
			recs, err := src.Load(gctx)
			if err != nil {
				return err
			}
			parts[i] = recs
			slog.Default().With("component", "record-source").Debug("source loaded",
				"source", src.Name(),
				"records", len(recs),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	merged := make([]DocumentRecord, 0, total)
	for _, p := range parts {
		merged = append(merged, p...)
	}
	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

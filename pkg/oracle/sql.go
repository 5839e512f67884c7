package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/clearlane/forwardcore/pkg/canonicalize"
	"github.com/clearlane/forwardcore/pkg/contracts"
)

type sqlFlavor int

const (
	flavorSQLite sqlFlavor = iota
	flavorPostgres
)

// SQLStore serves spot prices from a relational table. As-of instants are
// stored as UTC unix nanoseconds so the schema is identical across drivers.
type SQLStore struct {
	db     *sql.DB
	flavor sqlFlavor
}

const spotSchema = `
CREATE TABLE IF NOT EXISTS spot_prices (
    instrument TEXT    NOT NULL,
    as_of_ns   BIGINT  NOT NULL,
    value      TEXT    NOT NULL,
    PRIMARY KEY (instrument, as_of_ns)
);`

// OpenSQLite opens (and migrates) a sqlite-backed store at path.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("oracle: open sqlite: %w", err)
	}
	s := &SQLStore{db: db, flavor: flavorSQLite}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenPostgres opens (and migrates) a postgres-backed store.
func OpenPostgres(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("oracle: open postgres: %w", err)
	}
	s := &SQLStore{db: db, flavor: flavorPostgres}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing database handle without migrating. Used by
// tests that drive the store through a mock connection.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, flavor: flavorSQLite}
}

func (s *SQLStore) migrate() error {
	_, err := s.db.ExecContext(context.Background(), spotSchema)
	if err != nil {
		return fmt.Errorf("oracle: migrate spot_prices: %w", err)
	}
	return nil
}

// rebind converts ? placeholders to the driver's dialect.
func (s *SQLStore) rebind(query string) string {
	if s.flavor != flavorPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Put inserts or updates a price. Intended for the external feed updater.
func (s *SQLStore) Put(ctx context.Context, price contracts.SpotPrice) error {
	query := s.rebind(`
        INSERT INTO spot_prices (instrument, as_of_ns, value) VALUES (?, ?, ?)
        ON CONFLICT (instrument, as_of_ns) DO UPDATE SET value = excluded.value`)
	_, err := s.db.ExecContext(ctx, query,
		canonicalize.NFC(price.Instrument), price.AsOf.UTC().UnixNano(), price.Value.String())
	if err != nil {
		return fmt.Errorf("oracle: put spot price: %w", err)
	}
	return nil
}

// Lookup returns the stored price or ErrUnknownSpot.
func (s *SQLStore) Lookup(ctx context.Context, instrument string, asOf time.Time) (contracts.SpotPrice, error) {
	query := s.rebind(`SELECT value FROM spot_prices WHERE instrument = ? AND as_of_ns = ?`)

	var raw string
	err := s.db.QueryRowContext(ctx, query,
		canonicalize.NFC(instrument), asOf.UTC().UnixNano()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.SpotPrice{}, ErrUnknownSpot
	}
	if err != nil {
		return contracts.SpotPrice{}, fmt.Errorf("oracle: sql lookup failed: %w", err)
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return contracts.SpotPrice{}, fmt.Errorf("oracle: corrupt spot value %q: %w", raw, err)
	}
	return contracts.SpotPrice{
		Instrument: canonicalize.NFC(instrument),
		AsOf:       asOf.UTC(),
		Value:      value,
	}, nil
}

// Close releases the underlying handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

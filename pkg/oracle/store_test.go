package oracle

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearlane/forwardcore/pkg/contracts"
)

var asOf = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryStoreLookup(t *testing.T) {
	store := NewMemoryStore(KnownSpots(asOf)...)

	price, err := store.Lookup(context.Background(), "Robusta Coffee", asOf)
	require.NoError(t, err)
	assert.True(t, price.Value.Equal(decimal.RequireFromString("1.17")))

	_, err = store.Lookup(context.Background(), "Robusta Coffee", asOf.Add(time.Second))
	assert.ErrorIs(t, err, ErrUnknownSpot)

	_, err = store.Lookup(context.Background(), "Cocoa", asOf)
	assert.ErrorIs(t, err, ErrUnknownSpot)
}

func TestMemoryStoreNormalizesInstrumentNames(t *testing.T) {
	// Decomposed "é" (e + combining acute) must match the precomposed form.
	store := NewMemoryStore(contracts.SpotPrice{
		Instrument: "Café", AsOf: asOf, Value: decimal.NewFromInt(3),
	})

	price, err := store.Lookup(context.Background(), "Café", asOf)
	require.NoError(t, err)
	assert.True(t, price.Value.Equal(decimal.NewFromInt(3)))
}

func TestMemoryStoreReplaceSwapsTheWholeSet(t *testing.T) {
	store := NewMemoryStore(KnownSpots(asOf)...)

	store.Replace([]contracts.SpotPrice{
		{Instrument: "Cocoa", AsOf: asOf, Value: decimal.NewFromInt(5)},
	})

	_, err := store.Lookup(context.Background(), "Robusta Coffee", asOf)
	assert.ErrorIs(t, err, ErrUnknownSpot)

	price, err := store.Lookup(context.Background(), "Cocoa", asOf)
	require.NoError(t, err)
	assert.True(t, price.Value.Equal(decimal.NewFromInt(5)))
}

func TestSQLStoreLookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectQuery("SELECT value FROM spot_prices").
		WithArgs("Robusta Coffee", asOf.UnixNano()).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("1.17"))

	price, err := store.Lookup(context.Background(), "Robusta Coffee", asOf)
	require.NoError(t, err)
	assert.True(t, price.Value.Equal(decimal.RequireFromString("1.17")))
	assert.Equal(t, asOf, price.AsOf)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreLookupMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectQuery("SELECT value FROM spot_prices").
		WithArgs("Cocoa", asOf.UnixNano()).
		WillReturnError(sql.ErrNoRows)

	_, err = store.Lookup(context.Background(), "Cocoa", asOf)
	assert.ErrorIs(t, err, ErrUnknownSpot)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreLookupCorruptValue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectQuery("SELECT value FROM spot_prices").
		WithArgs("Robusta Coffee", asOf.UnixNano()).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("not-a-number"))

	_, err = store.Lookup(context.Background(), "Robusta Coffee", asOf)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownSpot)
}

func TestSQLStorePut(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLStore(db)

	mock.ExpectExec("INSERT INTO spot_prices").
		WithArgs("Robusta Coffee", asOf.UnixNano(), "1.17").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Put(context.Background(), contracts.SpotPrice{
		Instrument: "Robusta Coffee", AsOf: asOf, Value: decimal.RequireFromString("1.17"),
	})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRebindConvertsPlaceholdersForPostgres(t *testing.T) {
	pg := &SQLStore{flavor: flavorPostgres}
	assert.Equal(t, "SELECT $1, $2", pg.rebind("SELECT ?, ?"))

	lite := &SQLStore{flavor: flavorSQLite}
	assert.Equal(t, "SELECT ?, ?", lite.rebind("SELECT ?, ?"))
}

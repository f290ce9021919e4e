package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNotFound is returned when no listing matches the requested key.
var ErrNotFound = errors.New("listing not found")

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS listings (
            id              BIGSERIAL PRIMARY KEY,
            listing_key     TEXT NOT NULL,
            street_number   TEXT,
            street_name     TEXT,
            street_suffix   TEXT,
            unit_number     TEXT,
            city            TEXT,
            province        TEXT,
            postal_code     TEXT,
            list_price      NUMERIC,
            transaction_type TEXT,
            property_type   TEXT,
            property_sub_type TEXT,
            bedrooms        SMALLINT,
            bathrooms       SMALLINT,
            living_area     NUMERIC,
            status          TEXT,
            public_remarks  TEXT,
            primary_image_url TEXT,
            last_synced_at  TIMESTAMPTZ,
            sync_failed     BOOLEAN NOT NULL DEFAULT false,
            sync_error      TEXT,
            created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_listings_listing_key ON listings(listing_key);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_city ON listings(city);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_property_type ON listings(property_type);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_transaction ON listings(transaction_type);`,
		`CREATE TABLE IF NOT EXISTS settings (
            key        TEXT PRIMARY KEY,
            value      TEXT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// ListingRecord is the locally cached copy of one remote listing plus its
// sync metadata. Request-serving paths only read these rows; the sync
// orchestrator is the only writer.
type ListingRecord struct {
	ID              int64
	ListingKey      string
	StreetNumber    string
	StreetName      string
	StreetSuffix    string
	UnitNumber      string
	City            string
	Province        string
	PostalCode      string
	ListPrice       sql.NullFloat64
	TransactionType string
	PropertyType    string
	PropertySubType string
	Bedrooms        sql.NullInt64
	Bathrooms       sql.NullInt64
	LivingArea      sql.NullFloat64
	Status          string
	PublicRemarks   string
	PrimaryImageURL sql.NullString
	LastSyncedAt    sql.NullTime
	SyncFailed      bool
	SyncError       sql.NullString
	UpdatedAt       time.Time
}

const listingColumns = `id, listing_key, street_number, street_name, street_suffix, unit_number,
    city, province, postal_code, list_price, transaction_type, property_type, property_sub_type,
    bedrooms, bathrooms, living_area, status, public_remarks, primary_image_url,
    last_synced_at, sync_failed, sync_error, updated_at`

func scanListing(row interface{ Scan(...any) error }) (ListingRecord, error) {
	var r ListingRecord
	err := row.Scan(&r.ID, &r.ListingKey, &r.StreetNumber, &r.StreetName, &r.StreetSuffix,
		&r.UnitNumber, &r.City, &r.Province, &r.PostalCode, &r.ListPrice, &r.TransactionType,
		&r.PropertyType, &r.PropertySubType, &r.Bedrooms, &r.Bathrooms, &r.LivingArea,
		&r.Status, &r.PublicRemarks, &r.PrimaryImageURL, &r.LastSyncedAt, &r.SyncFailed,
		&r.SyncError, &r.UpdatedAt)
	return r, err
}

// UpsertInput carries the mapped remote fields for one listing.
type UpsertInput struct {
	ListingKey      string
	StreetNumber    string
	StreetName      string
	StreetSuffix    string
	UnitNumber      string
	City            string
	Province        string
	PostalCode      string
	ListPrice       sql.NullFloat64
	TransactionType string
	PropertyType    string
	PropertySubType string
	Bedrooms        sql.NullInt64
	Bathrooms       sql.NullInt64
	LivingArea      sql.NullFloat64
	Status          string
	PublicRemarks   string
	PrimaryImageURL sql.NullString
}

// UpsertListing inserts or updates by listing key and reports whether the
// row already existed. A successful upsert clears any previous failure
// marker and stamps last_synced_at.
func (s *Store) UpsertListing(ctx context.Context, in UpsertInput) (updated bool, err error) {
	if in.ListingKey == "" {
		return false, errors.New("empty listing key")
	}
	var inserted bool
	err = s.DB.QueryRowContext(ctx, `
        INSERT INTO listings (listing_key, street_number, street_name, street_suffix, unit_number,
            city, province, postal_code, list_price, transaction_type, property_type, property_sub_type,
            bedrooms, bathrooms, living_area, status, public_remarks, primary_image_url,
            last_synced_at, sync_failed, sync_error)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18, now(), false, NULL)
        ON CONFLICT (listing_key) DO UPDATE SET
            street_number=EXCLUDED.street_number, street_name=EXCLUDED.street_name,
            street_suffix=EXCLUDED.street_suffix, unit_number=EXCLUDED.unit_number,
            city=EXCLUDED.city, province=EXCLUDED.province, postal_code=EXCLUDED.postal_code,
            list_price=EXCLUDED.list_price, transaction_type=EXCLUDED.transaction_type,
            property_type=EXCLUDED.property_type, property_sub_type=EXCLUDED.property_sub_type,
            bedrooms=EXCLUDED.bedrooms, bathrooms=EXCLUDED.bathrooms, living_area=EXCLUDED.living_area,
            status=EXCLUDED.status, public_remarks=EXCLUDED.public_remarks,
            primary_image_url=COALESCE(EXCLUDED.primary_image_url, listings.primary_image_url),
            last_synced_at=now(), sync_failed=false, sync_error=NULL, updated_at=now()
        RETURNING (xmax = 0)`,
		in.ListingKey, in.StreetNumber, in.StreetName, in.StreetSuffix, in.UnitNumber,
		in.City, in.Province, in.PostalCode, in.ListPrice, in.TransactionType,
		in.PropertyType, in.PropertySubType, in.Bedrooms, in.Bathrooms, in.LivingArea,
		in.Status, in.PublicRemarks, in.PrimaryImageURL,
	).Scan(&inserted)
	if err != nil {
		return false, err
	}
	return !inserted, nil
}

// MarkSyncFailed records a per-record sync failure without touching the
// cached fields. The row is created if the key has never synced before, so
// the failure is visible in admin browsing.
func (s *Store) MarkSyncFailed(ctx context.Context, listingKey, syncErr string) error {
	if syncErr == "" {
		syncErr = "unknown sync error"
	}
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO listings (listing_key, last_synced_at, sync_failed, sync_error)
        VALUES ($1, now(), true, $2)
        ON CONFLICT (listing_key) DO UPDATE SET
            last_synced_at=now(), sync_failed=true, sync_error=$2, updated_at=now()`,
		listingKey, syncErr)
	return err
}

// SetPrimaryImage stores the resolved primary photo for a listing.
func (s *Store) SetPrimaryImage(ctx context.Context, listingKey, url string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE listings SET primary_image_url=$2, updated_at=now() WHERE listing_key=$1`,
		listingKey, url)
	return err
}

func (s *Store) GetListing(ctx context.Context, listingKey string) (ListingRecord, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE listing_key=$1`, listingKey)
	rec, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ListingRecord{}, ErrNotFound
	}
	return rec, err
}

// BrowseFilter narrows BrowseListings. Zero values mean "no constraint".
type BrowseFilter struct {
	City            string
	Status          string
	PropertyType    string
	TransactionType string
	MinPrice        float64
	MaxPrice        float64
	Search          string // substring over street name and remarks
	Limit           int
	Offset          int
}

// BrowseListings reads a filtered page plus the total match count.
func (s *Store) BrowseListings(ctx context.Context, f BrowseFilter) ([]ListingRecord, int, error) {
	where := []string{"1=1"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.City != "" {
		add("city ILIKE $%d", f.City)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.PropertyType != "" {
		add("property_type = $%d", f.PropertyType)
	}
	if f.TransactionType != "" {
		add("transaction_type = $%d", f.TransactionType)
	}
	if f.MinPrice > 0 {
		add("list_price >= $%d", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		add("list_price <= $%d", f.MaxPrice)
	}
	if f.Search != "" {
		args = append(args, f.Search)
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(street_name ILIKE '%%'||$%d||'%%' OR public_remarks ILIKE '%%'||$%d||'%%')", n, n))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM listings WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE `+cond+
			fmt.Sprintf(` ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []ListingRecord
	for rows.Next() {
		rec, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// NearbyListings returns listings in the same city within a price band
// around the given record, excluding the record itself.
func (s *Store) NearbyListings(ctx context.Context, rec ListingRecord, limit int) ([]ListingRecord, error) {
	if limit <= 0 {
		limit = 6
	}
	var minP, maxP any
	if rec.ListPrice.Valid {
		minP = rec.ListPrice.Float64 * 0.8
		maxP = rec.ListPrice.Float64 * 1.2
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings
         WHERE city = $1 AND listing_key <> $2 AND sync_failed = false
           AND ($3::numeric IS NULL OR list_price BETWEEN $3 AND $4)
         ORDER BY updated_at DESC LIMIT $5`,
		rec.City, rec.ListingKey, minP, maxP, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ListingRecord
	for rows.Next() {
		r, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteListing(ctx context.Context, listingKey string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM listings WHERE listing_key=$1`, listingKey)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteListings bulk-deletes by listing key and returns the removed count.
func (s *Store) DeleteListings(ctx context.Context, keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = k
	}
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM listings WHERE listing_key IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) DeleteAllListings(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM listings`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountListings(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT count(*) FROM listings`).Scan(&n)
	return n, err
}

// GetSetting reads a settings value; ok is false when the key is absent.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO settings (key, value) VALUES ($1,$2)
        ON CONFLICT (key) DO UPDATE SET value=$2, updated_at=now()`, key, value)
	return err
}

package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"comps_dedup/internal/domain"
)

// batchRows keeps multi-row inserts well under the placeholder limit.
const batchRows = 500

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func propertyArgs(p domain.PropertyRecord) []any {
	return []any{
		p.PropertyID,
		p.SubjectID,
		valStr(p.OrderID),
		valStr(p.Address),
		valStr(p.StructureType),
		valF64(p.ClosePrice),
		valF64(p.GLASqft),
		valF64(p.BedroomsTotal),
		valF64(p.Latitude),
		valF64(p.Longitude),
		valStr(p.City),
		valStr(p.Province),
		valStr(p.PostalCode),
		valStr(p.CloseDate),
		valInt(p.YearBuilt),
		valF64(p.LotSizeSqft),
		valF64(p.BathroomsEquivalent),
	}
}

const propertyPlaceholders = "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertBatched writes rows in chunks of batchRows using prefix + VALUES
// tuples + suffix. lead is prepended to each row's arguments.
func insertBatched(ctx context.Context, ex execer, prefix, tuple, suffix string, rs []domain.PropertyRecord, lead ...any) error {
	for start := 0; start < len(rs); start += batchRows {
		end := min(start+batchRows, len(rs))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*(17+len(lead)))
		for _, p := range rs[start:end] {
			values = append(values, tuple)
			args = append(args, lead...)
			args = append(args, propertyArgs(p)...)
		}
		if _, err := ex.ExecContext(ctx, prefix+strings.Join(values, ",")+suffix, args...); err != nil {
			return err
		}
	}
	return nil
}

// UpsertProperties loads input records, replacing rows with the same property_id.
func (r *Repo) UpsertProperties(ctx context.Context, rs []domain.PropertyRecord) error {
	return insertBatched(ctx, r.db, upsertPropertiesPrefix, propertyPlaceholders, upsertPropertiesOnDup, rs)
}

func (r *Repo) LoadProperties(ctx context.Context) ([]domain.PropertyRecord, error) {
	return r.queryProperties(ctx, loadPropertiesSQL)
}

// LoadCleaned returns the output table of the last ReplaceCleaned.
func (r *Repo) LoadCleaned(ctx context.Context) ([]domain.PropertyRecord, error) {
	return r.queryProperties(ctx, loadCleanedSQL)
}

func (r *Repo) queryProperties(ctx context.Context, q string) ([]domain.PropertyRecord, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PropertyRecord
	for rows.Next() {
		var p domain.PropertyRecord
		var (
			orderID, address, structureType     sql.NullString
			city, province, postalCode, closeAt sql.NullString
			price, gla, beds, lat, lon          sql.NullFloat64
			lot, baths                          sql.NullFloat64
			yearBuilt                           sql.NullInt64
		)
		if err := rows.Scan(
			&p.PropertyID, &p.SubjectID,
			&orderID, &address, &structureType,
			&price, &gla, &beds, &lat, &lon,
			&city, &province, &postalCode, &closeAt,
			&yearBuilt, &lot, &baths,
		); err != nil {
			return nil, err
		}
		p.OrderID = nullStr(orderID)
		p.Address = nullStr(address)
		p.StructureType = nullStr(structureType)
		p.ClosePrice = nullF64(price)
		p.GLASqft = nullF64(gla)
		p.BedroomsTotal = nullF64(beds)
		p.Latitude = nullF64(lat)
		p.Longitude = nullF64(lon)
		p.City = nullStr(city)
		p.Province = nullStr(province)
		p.PostalCode = nullStr(postalCode)
		p.CloseDate = nullStr(closeAt)
		if yearBuilt.Valid {
			y := int(yearBuilt.Int64)
			p.YearBuilt = &y
		}
		p.LotSizeSqft = nullF64(lot)
		p.BathroomsEquivalent = nullF64(baths)
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullF64(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// ReplaceCleaned swaps the whole output table for rs in one transaction.
func (r *Repo) ReplaceCleaned(ctx context.Context, runID string, rs []domain.PropertyRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, clearCleanedSQL); err != nil {
		return fmt.Errorf("clear cleaned: %w", err)
	}
	if err := insertBatched(ctx, tx, insertCleanedPrefix, "(?,"+propertyPlaceholders[1:], "", rs, runID); err != nil {
		return fmt.Errorf("insert cleaned: %w", err)
	}
	return tx.Commit()
}

func (r *Repo) SaveRun(ctx context.Context, run domain.RunSummary) error {
	below, err := json.Marshal(run.BelowFloor)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, insertRunSQL,
		run.ID,
		run.StartedAt.UTC(),
		run.Duration.Milliseconds(),
		run.InputCount,
		run.OutputCount,
		run.DetectedCount,
		run.RestoredCount,
		run.Geocoded,
		string(below),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for start := 0; start < len(run.Removals); start += batchRows {
		end := min(start+batchRows, len(run.Removals))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*5)
		for _, rm := range run.Removals[start:end] {
			values = append(values, "(?,?,?,?,?)")
			args = append(args, run.ID, rm.PropertyID, rm.SubjectID, rm.KeptID, string(rm.Pass))
		}
		if _, err := tx.ExecContext(ctx, insertRemovalsPrefix+strings.Join(values, ","), args...); err != nil {
			return fmt.Errorf("insert removals: %w", err)
		}
	}
	return tx.Commit()
}

func (r *Repo) GetRun(ctx context.Context, id string) (domain.RunSummary, error) {
	var run domain.RunSummary
	var durMS int64
	var below []byte
	err := r.db.QueryRowContext(ctx, getRunSQL, id).Scan(
		&run.ID,
		&run.StartedAt,
		&durMS,
		&run.InputCount,
		&run.OutputCount,
		&run.DetectedCount,
		&run.RestoredCount,
		&run.Geocoded,
		&below,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunSummary{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RunSummary{}, err
	}
	run.Duration = time.Duration(durMS) * time.Millisecond
	if len(below) > 0 {
		if err := json.Unmarshal(below, &run.BelowFloor); err != nil {
			return domain.RunSummary{}, fmt.Errorf("decode below_floor: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx, listRemovalsSQL, id)
	if err != nil {
		return domain.RunSummary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var rm domain.Removal
		var pass string
		if err := rows.Scan(&rm.PropertyID, &rm.SubjectID, &rm.KeptID, &pass); err != nil {
			return domain.RunSummary{}, err
		}
		rm.Pass = domain.Pass(pass)
		run.Removals = append(run.Removals, rm)
	}
	return run, rows.Err()
}

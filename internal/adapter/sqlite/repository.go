package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/neomorfeo/claimflow/internal/domain"

	moderncsqlite "modernc.org/sqlite" // Registers the "sqlite" driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// unicodeLower is available on every connection opened after init. SQLite's
// built-in LOWER only folds ASCII letters.
const unicodeLower = "unicode_lower"

func init() {
	moderncsqlite.MustRegisterDeterministicScalarFunction(unicodeLower, 1, lowerFunc)
}

func lowerFunc(_ *moderncsqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return nil, fmt.Errorf("%s: unsupported argument type %T", unicodeLower, v)
	}
}

// Compile-time check: ClaimRepository implements domain.ClaimStore.
var _ domain.ClaimStore = (*ClaimRepository)(nil)

// querier is the subset of *sql.DB and *sql.Tx the repository needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ClaimRepository implements domain.ClaimStore using SQLite.
type ClaimRepository struct {
	db *sql.DB
	q  querier
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*ClaimRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: in-memory databases are per connection, and writers
	// never contend for the file lock.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*ClaimRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &ClaimRepository{db: db, q: db}, nil
}

// Close closes the underlying database connection.
func (r *ClaimRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *ClaimRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

type txKey struct{}

// TxFromContext returns the transaction opened by InTx, if ctx carries one.
// Adapters that share the database (River) use it to join the transaction.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// InTx runs fn in a transaction. fn receives a repository bound to the
// transaction and a context carrying it; a nested call joins the outer one.
func (r *ClaimRepository) InTx(ctx context.Context, fn func(context.Context, domain.ClaimRepository) error) error {
	if tx, ok := TxFromContext(ctx); ok {
		return fn(ctx, &ClaimRepository{db: r.db, q: tx})
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx), &ClaimRepository{db: r.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// timeFormat is fixed-width so that text comparison orders timestamps.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const claimColumns = `id, claim_number, policy_number, claimant_name, claimant_email, claimant_phone,
	description, claim_amount, status, incident_date, created_at, updated_at`

func (r *ClaimRepository) FindByID(ctx context.Context, id string) (domain.Claim, error) {
	c, err := scanClaim(r.q.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Claim{}, &domain.ClaimNotFoundError{ID: id}
	}
	return c, err
}

func (r *ClaimRepository) FindByClaimNumber(ctx context.Context, claimNumber string) (domain.Claim, error) {
	c, err := scanClaim(r.q.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE claim_number = ?`, claimNumber,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Claim{}, &domain.ClaimNotFoundError{ClaimNumber: claimNumber}
	}
	return c, err
}

func (r *ClaimRepository) ExistsByClaimNumber(ctx context.Context, claimNumber string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM claims WHERE claim_number = ?)`, claimNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking claim number: %w", err)
	}
	return exists, nil
}

// Save inserts a claim without an ID and updates an existing one otherwise.
// The stored row is read back so callers see store-assigned values.
func (r *ClaimRepository) Save(ctx context.Context, c domain.Claim) (domain.Claim, error) {
	now := time.Now().UTC().Format(timeFormat)

	if c.ID == "" {
		c.ID = uuid.NewString()
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO claims (`+claimColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.ClaimNumber, c.PolicyNumber, c.ClaimantName, c.ClaimantEmail, c.ClaimantPhone,
			c.Description, toMinor(c.ClaimAmount), string(c.Status),
			c.IncidentDate.UTC().Format(timeFormat), now, now,
		)
		if err != nil {
			if isClaimNumberViolation(err) {
				return domain.Claim{}, &domain.ClaimNumberConflictError{ClaimNumber: c.ClaimNumber}
			}
			return domain.Claim{}, fmt.Errorf("inserting claim: %w", err)
		}
		return r.FindByID(ctx, c.ID)
	}

	// claim_number and created_at are immutable once written.
	result, err := r.q.ExecContext(ctx,
		`UPDATE claims SET policy_number = ?, claimant_name = ?, claimant_email = ?, claimant_phone = ?,
		 description = ?, claim_amount = ?, status = ?, incident_date = ?, updated_at = ?
		 WHERE id = ?`,
		c.PolicyNumber, c.ClaimantName, c.ClaimantEmail, c.ClaimantPhone,
		c.Description, toMinor(c.ClaimAmount), string(c.Status),
		c.IncidentDate.UTC().Format(timeFormat), now, c.ID,
	)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("updating claim: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Claim{}, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.Claim{}, &domain.ClaimNotFoundError{ID: c.ID}
	}

	return r.FindByID(ctx, c.ID)
}

func (r *ClaimRepository) Delete(ctx context.Context, c domain.Claim) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM claims WHERE id = ?`, c.ID)
	if err != nil {
		return fmt.Errorf("deleting claim: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.ClaimNotFoundError{ID: c.ID}
	}
	return nil
}

// Query returns one page of claims matching filter, with the total match count.
func (r *ClaimRepository) Query(ctx context.Context, filter domain.SearchFilter, page domain.PageRequest) (domain.Page, error) {
	page, err := page.Normalize()
	if err != nil {
		return domain.Page{}, err
	}

	where, args := whereClause(filter)

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims`+where, args...).Scan(&total); err != nil {
		return domain.Page{}, fmt.Errorf("counting claims: %w", err)
	}

	// Sort fields are whitelisted by Normalize and equal the column names.
	direction := "ASC"
	if page.Sort.Descending {
		direction = "DESC"
	}
	query := `SELECT ` + claimColumns + ` FROM claims` + where +
		fmt.Sprintf(` ORDER BY %s %s, id %s LIMIT ? OFFSET ?`, page.Sort.Field, direction, direction)

	rows, err := r.q.QueryContext(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return domain.Page{}, fmt.Errorf("querying claims: %w", err)
	}
	defer rows.Close()

	result := domain.Page{Items: []domain.Claim{}, Total: total, Page: page.Page, Size: page.Size}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return domain.Page{}, err
		}
		result.Items = append(result.Items, c)
	}

	return result, rows.Err()
}

func whereClause(f domain.SearchFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.PolicyNumber != "" {
		conds = append(conds, "policy_number = ?")
		args = append(args, f.PolicyNumber)
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.ClaimantEmail != "" {
		conds = append(conds, "claimant_email = ?")
		args = append(args, f.ClaimantEmail)
	}
	if f.AmountAbove != nil {
		// Cents are integers, so a fractional-cent threshold floors.
		conds = append(conds, "claim_amount > ?")
		args = append(args, f.AmountAbove.Shift(2).Floor().IntPart())
	}
	if f.CreatedFrom != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.CreatedFrom.UTC().Format(timeFormat))
	}
	if f.CreatedTo != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.CreatedTo.UTC().Format(timeFormat))
	}
	if f.NameContains != "" {
		// instr matches literally, so the fragment needs no escaping.
		conds = append(conds, "instr("+unicodeLower+"(claimant_name), ?) > 0")
		args = append(args, strings.ToLower(f.NameContains))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *ClaimRepository) CountByStatus(ctx context.Context, status domain.Status) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims WHERE status = ?`, string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting claims by status: %w", err)
	}
	return n, nil
}

func (r *ClaimRepository) StatisticsByStatus(ctx context.Context, status domain.Status) (domain.StatusStatistics, error) {
	var count, total int64
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(claim_amount), 0) FROM claims WHERE status = ?`, string(status),
	).Scan(&count, &total)
	if err != nil {
		return domain.StatusStatistics{}, fmt.Errorf("aggregating claims by status: %w", err)
	}

	stats := domain.StatusStatistics{
		Status:  status,
		Count:   int(count),
		Total:   fromMinor(total),
		Average: decimal.Zero,
	}
	if count > 0 {
		stats.Average = stats.Total.DivRound(decimal.NewFromInt(count), 2)
	}
	return stats, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(s scanner) (domain.Claim, error) {
	var (
		c                                  domain.Claim
		amount                             int64
		status                             string
		incidentDate, createdAt, updatedAt string
	)

	err := s.Scan(&c.ID, &c.ClaimNumber, &c.PolicyNumber, &c.ClaimantName, &c.ClaimantEmail, &c.ClaimantPhone,
		&c.Description, &amount, &status, &incidentDate, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Claim{}, err
		}
		return domain.Claim{}, fmt.Errorf("scanning claim: %w", err)
	}

	c.ClaimAmount = fromMinor(amount)
	c.Status = domain.Status(status)
	for _, ts := range []struct {
		column string
		raw    string
		dst    *time.Time
	}{
		{"incident_date", incidentDate, &c.IncidentDate},
		{"created_at", createdAt, &c.CreatedAt},
		{"updated_at", updatedAt, &c.UpdatedAt},
	} {
		if *ts.dst, err = time.Parse(timeFormat, ts.raw); err != nil {
			return domain.Claim{}, fmt.Errorf("scanning claim %q: parsing %s: %w", c.ID, ts.column, err)
		}
	}

	return c, nil
}

// Amounts are stored as integer cents.
func toMinor(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

func fromMinor(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// isClaimNumberViolation checks if a SQLite error is a UNIQUE constraint
// violation on the claim number.
func isClaimNumberViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed: claims.claim_number")
}

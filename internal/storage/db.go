package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"expense-tracker/internal/models"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a user or expense does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already exists")
)

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection keeps ":memory:" databases alive across calls and lets
	// SQLite serialize writers.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const expenseColumns = "id, user_id, amount, description, date, category, recurrence_flag"

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (*models.Expense, error) {
	var e models.Expense
	if err := row.Scan(&e.ID, &e.UserID, &e.Amount, &e.Description, &e.Date, &e.Category, &e.RecurrenceFlag); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateExpense inserts e and returns the stored record with its new ID.
func (db *DB) CreateExpense(ctx context.Context, e models.Expense) (*models.Expense, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO expenses (user_id, amount, description, date, category, recurrence_flag) VALUES (?, ?, ?, ?, ?, ?)",
		e.UserID, e.Amount, e.Description, e.Date, e.Category, e.RecurrenceFlag,
	)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}

	return db.GetExpense(ctx, id)
}

// GetExpense retrieves a single expense by ID. Ownership is not checked.
func (db *DB) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	row := db.conn.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// ListExpensesByOwner returns the owner's expenses matching filter, newest
// date first. Dates are compared as strings.
func (db *DB) ListExpensesByOwner(ctx context.Context, ownerID int64, filter models.ExpenseFilter) ([]models.Expense, error) {
	var query strings.Builder
	query.WriteString("SELECT " + expenseColumns + " FROM expenses WHERE user_id = ?")
	args := []any{ownerID}

	if filter.StartDate != "" {
		query.WriteString(" AND date >= ?")
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		query.WriteString(" AND date <= ?")
		args = append(args, filter.EndDate)
	}
	if filter.Category != "" {
		query.WriteString(" AND category = ?")
		args = append(args, filter.Category)
	}
	query.WriteString(" ORDER BY date DESC, id DESC")

	rows, err := db.conn.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// UpdateExpense applies the set fields of patch to the stored expense and
// returns the full updated record.
func (db *DB) UpdateExpense(ctx context.Context, id int64, patch models.ExpensePatch) (*models.Expense, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	e, err := scanExpense(tx.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get expense %d: %w", id, err)
	}

	patch.Apply(e)

	if _, err := tx.ExecContext(ctx,
		"UPDATE expenses SET amount = ?, description = ?, date = ?, category = ?, recurrence_flag = ? WHERE id = ?",
		e.Amount, e.Description, e.Date, e.Category, e.RecurrenceFlag, e.ID,
	); err != nil {
		return nil, fmt.Errorf("update expense %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return e, nil
}

// DeleteExpense removes an expense. Deleting a missing ID is not an error.
func (db *DB) DeleteExpense(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}

// CreateUser creates a new user with the given username and password hash.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, passwordHash,
	)
	if isUniqueViolation(err) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return db.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.getUser(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by username. Matching is case-sensitive.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.getUser(ctx, "username = ?", username)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE "+where,
		arg,
	)

	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	// Primary code is the low byte; extended codes carry the constraint kind.
	return sqliteErr.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT
}

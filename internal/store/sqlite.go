package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marubot/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ OrderStore = (*SQLiteStore)(nil)
var _ FillStore = (*SQLiteStore)(nil)
var _ SignalStore = (*SQLiteStore)(nil)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("store: not found")

// SQLiteStore implements OrderStore, FillStore, and SignalStore backed by a
// SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id          TEXT PRIMARY KEY,
	code        TEXT NOT NULL,
	side        TEXT NOT NULL,
	qty         INTEGER NOT NULL,
	filled_qty  INTEGER NOT NULL DEFAULT 0,
	price       REAL NOT NULL,
	status      TEXT NOT NULL,
	broker_no   TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

CREATE TABLE IF NOT EXISTS fills (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	code      TEXT NOT NULL,
	side      TEXT NOT NULL,
	qty       INTEGER NOT NULL,
	price     REAL NOT NULL,
	order_no  TEXT NOT NULL,
	ts        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fills_code ON fills(code);

CREATE TABLE IF NOT EXISTS signals (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	code       TEXT NOT NULL,
	action     TEXT NOT NULL,
	confidence REAL NOT NULL,
	price      REAL NOT NULL,
	indicator  REAL NOT NULL,
	reason     TEXT NOT NULL,
	strategy   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_strategy ON signals(strategy, created_at);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, runs the
// schema migration, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

// SaveOrder inserts a new order into the database.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order *domain.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, code, side, qty, filled_qty, price, status, broker_no, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Code, string(order.Side), order.Qty, order.FilledQty, order.Price,
		string(order.Status), order.BrokerNo, order.Reason,
		order.CreatedAt.UnixMilli(), order.UpdatedAt.UnixMilli())
	return err
}

// GetOrder retrieves a single order by its ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, side, qty, filled_qty, price, status, broker_no, reason, created_at, updated_at
		FROM orders WHERE id = ?`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return order, err
}

// ListOrders returns all orders with the given status, newest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, side, qty, filled_qty, price, status, broker_no, reason, created_at, updated_at
		FROM orders WHERE status = ? ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// UpdateOrder persists changes to an existing order.
func (s *SQLiteStore) UpdateOrder(ctx context.Context, order *domain.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET filled_qty = ?, status = ?, broker_no = ?, reason = ?, updated_at = ?
		WHERE id = ?`,
		order.FilledQty, string(order.Status), order.BrokerNo, order.Reason,
		order.UpdatedAt.UnixMilli(), order.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                    domain.Order
		side, status         string
		createdAt, updatedAt int64
	)
	err := row.Scan(&o.ID, &o.Code, &side, &o.Qty, &o.FilledQty, &o.Price,
		&status, &o.BrokerNo, &o.Reason, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = time.UnixMilli(createdAt)
	o.UpdatedAt = time.UnixMilli(updatedAt)
	return &o, nil
}

// ---------------------------------------------------------------------------
// FillStore implementation
// ---------------------------------------------------------------------------

// SaveFill appends a fill to the database.
func (s *SQLiteStore) SaveFill(ctx context.Context, fill *domain.Fill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fills (code, side, qty, price, order_no, ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fill.Code, string(fill.Side), fill.Qty, fill.Price, fill.OrderNo, fill.Timestamp.UnixMilli())
	return err
}

// ListFills returns all fills for an instrument code, oldest first.
func (s *SQLiteStore) ListFills(ctx context.Context, code string) ([]domain.Fill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, side, qty, price, order_no, ts
		FROM fills WHERE code = ? ORDER BY ts ASC, id ASC`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var (
			f    domain.Fill
			side string
			ts   int64
		)
		if err := rows.Scan(&f.Code, &side, &f.Qty, &f.Price, &f.OrderNo, &ts); err != nil {
			return nil, err
		}
		f.Side = domain.OrderSide(side)
		f.Timestamp = time.UnixMilli(ts)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// ---------------------------------------------------------------------------
// SignalStore implementation
// ---------------------------------------------------------------------------

// SaveSignal appends a signal to the database.
func (s *SQLiteStore) SaveSignal(ctx context.Context, sig *domain.Signal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (code, action, confidence, price, indicator, reason, strategy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.Code, string(sig.Action), sig.Confidence, sig.Price, sig.Indicator,
		sig.Reason, sig.Strategy, sig.CreatedAt.UnixMilli())
	return err
}

// ListSignals returns the most recent signals for a strategy, up to limit.
func (s *SQLiteStore) ListSignals(ctx context.Context, strategy string, limit int) ([]domain.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, action, confidence, price, indicator, reason, strategy, created_at
		FROM signals WHERE strategy = ? ORDER BY created_at DESC, id DESC LIMIT ?`, strategy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		var (
			sig       domain.Signal
			action    string
			createdAt int64
		)
		if err := rows.Scan(&sig.Code, &action, &sig.Confidence, &sig.Price,
			&sig.Indicator, &sig.Reason, &sig.Strategy, &createdAt); err != nil {
			return nil, err
		}
		sig.Action = domain.SignalAction(action)
		sig.CreatedAt = time.UnixMilli(createdAt)
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

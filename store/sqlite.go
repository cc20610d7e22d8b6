package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"ledger-exchange/apperr"
	"ledger-exchange/domain"
)

// SQLiteStore is the Store implementation backing cmd/exchanged. A single
// *sqlx.DB connection pool is shared by every reader; writeMu serializes
// every WithTx call so at most one write transaction is in flight at a time
// (spec.md §5 — the store itself is the only shared mutable state, and a
// single mutex around its writer is cheaper and simpler to reason about
// than relying on SQLite's own lock retries).
type SQLiteStore struct {
	db      *sqlx.DB
	writeMu sync.Mutex
}

// Open connects to location, which is either a filesystem path or the
// literal ":memory:" (spec.md §6, matching original_source/db_utils.py's
// connect_to_db). SQLite requires foreign_keys pragma and a single
// connection for ":memory:" to keep the whole schema visible across
// goroutines; file-backed databases get WAL mode for concurrent readers.
func Open(location string) (*SQLiteStore, error) {
	dsn := location
	if location == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", location, err)
	}
	if location == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil && location != ":memory:" {
		return nil, fmt.Errorf("store: journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("store: foreign_keys: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Bootstrap(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, dropSchema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// WithTx takes the writer lock for the duration of fn. Only one write
// transaction runs at a time; readers are unaffected (spec.md §5).
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "begin transaction", err)
	}
	if err := fn(&sqliteTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return apperr.Wrap(apperr.TransientStore, "commit transaction", err)
	}
	return nil
}

func (s *SQLiteStore) OrderBookSnapshot(ctx context.Context) ([]domain.Order, error) {
	var rows []domain.Order
	err := s.db.SelectContext(ctx, &rows, `SELECT logical_timestamp, participant_id, price, amount FROM exchange`)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "order book snapshot", err)
	}
	return rows, nil
}

func (s *SQLiteStore) ActiveOrders(ctx context.Context, participantID int64) ([]domain.Order, error) {
	var rows []domain.Order
	err := s.db.SelectContext(ctx, &rows,
		`SELECT logical_timestamp, participant_id, price, amount FROM exchange WHERE participant_id = ? ORDER BY logical_timestamp`,
		participantID)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "active orders", err)
	}
	return rows, nil
}

func (s *SQLiteStore) GetAccount(ctx context.Context, participantID int64) (domain.Account, error) {
	var acct domain.Account
	err := s.db.GetContext(ctx, &acct,
		`SELECT participant_id, balance, stock FROM accounts WHERE participant_id = ?`, participantID)
	if err == sql.ErrNoRows {
		return domain.Account{ParticipantID: participantID}, nil
	}
	if err != nil {
		return domain.Account{}, apperr.Wrap(apperr.TransientStore, "get account", err)
	}
	return acct, nil
}

func (s *SQLiteStore) Trades(ctx context.Context) ([]domain.Trade, error) {
	var rows []struct {
		BuyerID   int64  `db:"buyer_id"`
		SellerID  int64  `db:"seller_id"`
		Amount    int64  `db:"amount"`
		Price     int64  `db:"price"`
		CreatedAt string `db:"created_at"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT buyer_id, seller_id, amount, price, created_at FROM log
		 WHERE json_extract(event, '$.type') = 'trade' ORDER BY id`)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "trades", err)
	}
	trades := make([]domain.Trade, 0, len(rows))
	for _, r := range rows {
		wallTime, err := parseTimestamp(r.CreatedAt)
		if err != nil {
			return nil, apperr.Wrap(apperr.TransientStore, "trades: parse timestamp", err)
		}
		trades = append(trades, domain.Trade{
			BuyerID:  r.BuyerID,
			SellerID: r.SellerID,
			Amount:   uint64(r.Amount),
			Price:    r.Price,
			WallTime: wallTime,
		})
	}
	return trades, nil
}

func (s *SQLiteStore) AuthByName(ctx context.Context, name string) (AuthRecord, bool, error) {
	var rec AuthRecord
	err := s.db.GetContext(ctx, &rec,
		`SELECT participant_id, name, hashed_password FROM auth WHERE name = ?`, name)
	if err == sql.ErrNoRows {
		return AuthRecord{}, false, nil
	}
	if err != nil {
		return AuthRecord{}, false, apperr.Wrap(apperr.TransientStore, "auth by name", err)
	}
	return rec, true, nil
}

// sqliteTx implements Tx against one in-flight *sqlx.Tx.
type sqliteTx struct {
	tx *sqlx.Tx
}

func (t *sqliteTx) InsertOrder(ctx context.Context, participantID, price, amount int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO exchange (participant_id, price, amount) VALUES (?, ?, ?)`,
		participantID, price, amount)
	if err != nil {
		return 0, apperr.Wrap(apperr.TransientStore, "insert order", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Wrap(apperr.TransientStore, "insert order: last insert id", err)
	}
	return id, nil
}

// FetchMarketable returns resting orders opposite incomingSide that can
// trade against limitPrice, sorted best-price-first then FIFO by
// logical_timestamp (spec.md §4.2 step 2). A buy order matches resting
// asks (amount < 0) priced at or below its limit, best (lowest) price
// first; a sell order matches resting bids (amount > 0) priced at or
// above its limit, best (highest) price first.
func (t *sqliteTx) FetchMarketable(ctx context.Context, incomingSide domain.Side, limitPrice int64) ([]domain.Order, error) {
	var rows []domain.Order
	var err error
	if incomingSide == domain.SideBuy {
		err = t.tx.SelectContext(ctx, &rows,
			`SELECT logical_timestamp, participant_id, price, amount FROM exchange
			 WHERE amount < 0 AND price <= ?
			 ORDER BY price ASC, logical_timestamp ASC`, limitPrice)
	} else {
		err = t.tx.SelectContext(ctx, &rows,
			`SELECT logical_timestamp, participant_id, price, amount FROM exchange
			 WHERE amount > 0 AND price >= ?
			 ORDER BY price DESC, logical_timestamp ASC`, limitPrice)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "fetch marketable", err)
	}
	return rows, nil
}

func (t *sqliteTx) UpdateOrderAmount(ctx context.Context, logicalTimestamp, amount int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE exchange SET amount = ? WHERE logical_timestamp = ?`, amount, logicalTimestamp)
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "update order amount", err)
	}
	return nil
}

func (t *sqliteTx) DeleteOrders(ctx context.Context, logicalTimestamps []int64) error {
	if len(logicalTimestamps) == 0 {
		return nil
	}
	query, args, err := sqlxIn(`DELETE FROM exchange WHERE logical_timestamp IN (?)`, logicalTimestamps)
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "delete orders", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return apperr.Wrap(apperr.TransientStore, "delete orders", err)
	}
	return nil
}

func (t *sqliteTx) DeleteOwnedOrder(ctx context.Context, participantID, logicalTimestamp int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM exchange WHERE logical_timestamp = ? AND participant_id = ?`,
		logicalTimestamp, participantID)
	if err != nil {
		return false, apperr.Wrap(apperr.TransientStore, "delete owned order", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.TransientStore, "delete owned order: rows affected", err)
	}
	return n > 0, nil
}

func (t *sqliteTx) DeleteAllOwnedOrders(ctx context.Context, participantID int64) ([]int64, error) {
	var ids []int64
	if err := t.tx.SelectContext(ctx, &ids,
		`SELECT logical_timestamp FROM exchange WHERE participant_id = ?`, participantID); err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "delete all owned orders: select", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM exchange WHERE participant_id = ?`, participantID); err != nil {
		return nil, apperr.Wrap(apperr.TransientStore, "delete all owned orders", err)
	}
	return ids, nil
}

func (t *sqliteTx) ApplyBalanceDeltas(ctx context.Context, deltas map[int64]Delta) error {
	for participantID, delta := range deltas {
		res, err := t.tx.ExecContext(ctx,
			`UPDATE accounts SET balance = balance + ?, stock = stock + ? WHERE participant_id = ?`,
			delta.Balance, delta.Stock, participantID)
		if err != nil {
			return apperr.Wrap(apperr.TransientStore, "apply balance delta", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperr.Wrap(apperr.TransientStore, "apply balance delta: rows affected", err)
		}
		if n == 0 {
			if _, err := t.tx.ExecContext(ctx,
				`INSERT INTO accounts (participant_id, balance, stock) VALUES (?, ?, ?)`,
				participantID, delta.Balance, delta.Stock); err != nil {
				return apperr.Wrap(apperr.TransientStore, "apply balance delta: insert", err)
			}
		}
	}
	return nil
}

// tradeEvent is the sum-type payload stored in log.event as JSON, per
// spec.md §9's design note: the column can grow new event kinds without a
// migration since it is opaque to the schema.
type tradeEvent struct {
	Type string `json:"type"`
}

func (t *sqliteTx) AppendTrade(ctx context.Context, trade domain.Trade) error {
	eventJSON, err := json.Marshal(tradeEvent{Type: "trade"})
	if err != nil {
		return apperr.Wrap(apperr.InvariantViolation, "append trade: marshal event", err)
	}
	wallTime := trade.WallTime
	if wallTime.IsZero() {
		wallTime = now()
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO log (buyer_id, seller_id, amount, price, event, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		trade.BuyerID, trade.SellerID, int64(trade.Amount), trade.Price, string(eventJSON), formatTimestamp(wallTime))
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "append trade", err)
	}
	return nil
}

func (t *sqliteTx) CreateAccount(ctx context.Context, participantID, balance, stock int64) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO accounts (participant_id, balance, stock) VALUES (?, ?, ?)`,
		participantID, balance, stock)
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "create account", err)
	}
	return nil
}

func (t *sqliteTx) CreateAuth(ctx context.Context, name, hashedPassword string) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO auth (name, hashed_password) VALUES (?, ?)`, name, hashedPassword)
	if err != nil {
		return 0, apperr.Wrap(apperr.Conflict, "create auth: name already taken", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Wrap(apperr.TransientStore, "create auth: last insert id", err)
	}
	return id, nil
}

func (t *sqliteTx) CountSince(ctx context.Context, ip string, since float64) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM ratelimit WHERE ip = ? AND relative_timestamp >= ?`, ip, since)
	if err != nil {
		return 0, apperr.Wrap(apperr.TransientStore, "count rate limit events", err)
	}
	return n, nil
}

func (t *sqliteTx) InsertRateLimitEvent(ctx context.Context, ip string, relativeTimestamp float64) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO ratelimit (ip, relative_timestamp) VALUES (?, ?)`, ip, relativeTimestamp)
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "insert rate limit event", err)
	}
	return nil
}

func (t *sqliteTx) PruneRateLimitEvents(ctx context.Context, ip string, before float64) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM ratelimit WHERE ip = ? AND relative_timestamp < ?`, ip, before)
	if err != nil {
		return apperr.Wrap(apperr.TransientStore, "prune rate limit events", err)
	}
	return nil
}

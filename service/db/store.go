package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the trade journal table. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
    id                BIGSERIAL PRIMARY KEY,
    signature         TEXT NOT NULL UNIQUE,
    wallet_address    TEXT NOT NULL,
    side              TEXT NOT NULL CHECK (side IN ('buy', 'sell')),
    token_mint        TEXT NOT NULL,
    input_mint        TEXT NOT NULL,
    output_mint       TEXT NOT NULL,
    in_amount         NUMERIC(78, 0) NOT NULL,
    quoted_out_amount NUMERIC(78, 0),
    status            TEXT NOT NULL,
    error             TEXT,
    slot              BIGINT,
    fee_lamports      BIGINT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS trades_wallet_created_idx ON trades (wallet_address, created_at DESC);
`

// Store provides database operations for the trade journal.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the trades table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// Trade is a journaled buy or sell.
// This is a domain model independent of the table layout.
type Trade struct {
	ID              int64
	Signature       string
	WalletAddress   string
	Side            string // "buy" or "sell"
	TokenMint       string
	InputMint       string
	OutputMint      string
	InAmount        string // smallest units of InputMint
	QuotedOutAmount *string
	Status          string // confirmed, failed, timed_out, unconfirmed (signature but no confirmation) or error
	Error           *string
	Slot            *int64
	FeeLamports     *int64
	CreatedAt       time.Time
}

// CreateTradeParams contains the parameters for journaling a trade.
type CreateTradeParams struct {
	Signature       string
	WalletAddress   string
	Side            string
	TokenMint       string
	InputMint       string
	OutputMint      string
	InAmount        string
	QuotedOutAmount *string
	Status          string
	Error           *string
	Slot            *int64
	FeeLamports     *int64
}

// ListTradesParams contains filter and pagination parameters.
// An empty WalletAddress lists trades for every wallet.
type ListTradesParams struct {
	WalletAddress string
	Limit         int32
	Offset        int32
}

const tradeColumns = `id, signature, wallet_address, side, token_mint, input_mint, output_mint,
	in_amount::text, quoted_out_amount::text, status, error, slot, fee_lamports, created_at`

// CreateTrade inserts a trade into the journal.
// Re-journaling the same signature updates its status.
func (s *Store) CreateTrade(ctx context.Context, params CreateTradeParams) (*Trade, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO trades (signature, wallet_address, side, token_mint, input_mint, output_mint,
			in_amount, quoted_out_amount, status, error, slot, fee_lamports)
		VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8::text::numeric, $9, $10, $11, $12)
		ON CONFLICT (signature) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			slot = EXCLUDED.slot,
			fee_lamports = EXCLUDED.fee_lamports
		RETURNING `+tradeColumns,
		params.Signature,
		params.WalletAddress,
		params.Side,
		params.TokenMint,
		params.InputMint,
		params.OutputMint,
		params.InAmount,
		pgtextFromStringPtr(params.QuotedOutAmount),
		params.Status,
		pgtextFromStringPtr(params.Error),
		pgint8FromInt64Ptr(params.Slot),
		pgint8FromInt64Ptr(params.FeeLamports),
	)
	return scanTrade(row)
}

// GetTrade retrieves a trade by its transaction signature.
func (s *Store) GetTrade(ctx context.Context, signature string) (*Trade, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE signature = $1`, signature)
	return scanTrade(row)
}

// ListTrades retrieves trades, most recent first.
func (s *Store) ListTrades(ctx context.Context, params ListTradesParams) ([]*Trade, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE ($1 = '' OR wallet_address = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		params.WalletAddress, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := make([]*Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// CountTradesByWallet counts journaled trades for a wallet.
func (s *Store) CountTradesByWallet(ctx context.Context, walletAddress string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE wallet_address = $1`, walletAddress).Scan(&n)
	return n, err
}

func scanTrade(row pgx.Row) (*Trade, error) {
	var (
		t         Trade
		quotedOut pgtype.Text
		errText   pgtype.Text
		slot      pgtype.Int8
		fee       pgtype.Int8
		createdAt pgtype.Timestamptz
	)
	err := row.Scan(
		&t.ID,
		&t.Signature,
		&t.WalletAddress,
		&t.Side,
		&t.TokenMint,
		&t.InputMint,
		&t.OutputMint,
		&t.InAmount,
		&quotedOut,
		&t.Status,
		&errText,
		&slot,
		&fee,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	t.QuotedOutAmount = stringPtrFromPgtext(quotedOut)
	t.Error = stringPtrFromPgtext(errText)
	t.Slot = int64PtrFromPgint8(slot)
	t.FeeLamports = int64PtrFromPgint8(fee)
	t.CreatedAt = createdAt.Time
	return &t, nil
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func pgint8FromInt64Ptr(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func int64PtrFromPgint8(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type stubTx struct {
	pgx.Tx
	commitErr error
}

func (t *stubTx) Commit(context.Context) error   { return t.commitErr }
func (t *stubTx) Rollback(context.Context) error { return nil }

// stubBeginner hands out one prepared transaction per attempt.
type stubBeginner struct {
	txs    []*stubTx
	begins int
}

func (b *stubBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	tx := b.txs[b.begins]
	b.begins++
	return tx, nil
}

func serializationErr() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
}

func TestWithTxCommits(t *testing.T) {
	beginner := &stubBeginner{txs: []*stubTx{{}}}

	var runs int
	err := WithTx(context.Background(), beginner, func(pgx.Tx) error {
		runs++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, runs)
	require.Equal(t, 1, beginner.begins)
}

func TestWithTxDoesNotRetryDomainErrors(t *testing.T) {
	beginner := &stubBeginner{txs: []*stubTx{{}, {}}}
	sentinel := errors.New("insufficient stock")

	var runs int
	err := WithTx(context.Background(), beginner, func(pgx.Tx) error {
		runs++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, runs, "domain errors must fail the transaction exactly once")
}

// A concurrently committed row aborts the loser's commit with SQLSTATE 40001.
// The closure must re-run against the new snapshot so it sees the committed
// balance and can fail with the domain verdict instead of a storage error.
func TestWithTxRetriesSerializationFailure(t *testing.T) {
	beginner := &stubBeginner{txs: []*stubTx{{commitErr: serializationErr()}, {}}}

	balance := 9
	insufficient := errors.New("insufficient stock")

	var runs int
	err := WithTx(context.Background(), beginner, func(pgx.Tx) error {
		runs++
		if runs == 1 {
			// First attempt reads the pre-commit snapshot; the competing
			// writer lands its movement while this one waits to commit.
			balance = 4
			return nil
		}
		if balance < 5 {
			return insufficient
		}
		return nil
	})
	require.ErrorIs(t, err, insufficient)
	require.Equal(t, 2, runs)
	require.Equal(t, 2, beginner.begins)
}

func TestWithTxGivesUpAfterBoundedAttempts(t *testing.T) {
	beginner := &stubBeginner{txs: []*stubTx{
		{commitErr: serializationErr()},
		{commitErr: serializationErr()},
		{commitErr: serializationErr()},
		{commitErr: serializationErr()},
	}}

	var runs int
	err := WithTx(context.Background(), beginner, func(pgx.Tx) error {
		runs++
		return nil
	})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, "40001", pgErr.Code)
	require.Equal(t, maxTxAttempts, runs)
}

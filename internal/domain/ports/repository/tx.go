package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one database transaction.
//
// The tx handle passed to fn is infra-defined (pgx.Tx for Postgres). Repository
// methods accept it as their `tx Tx` argument, take row locks (SELECT ... FOR UPDATE)
// when it is a real transaction, and fall back to the pool when it is NoTX.
//
// fn returning an error rolls the transaction back.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

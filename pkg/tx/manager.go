// Package tx передает транзакцию pgx через контекст, чтобы несколько
// запросов хранилища выполнялись атомарно.
package tx

import (
	"context"
	"fmt"

	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKeyType struct{}

var txKey = txKeyType{}

// ReadSnapshot согласованный снимок только для чтения: подсчет и выборка
// страницы видят одни и те же строки
var ReadSnapshot = pgx.TxOptions{
	IsoLevel:   pgx.RepeatableRead,
	AccessMode: pgx.ReadOnly,
}

// TxManager управляет жизненным циклом транзакций БД.
type TxManager interface {
	// Do выполняет fn внутри транзакции с настройками по умолчанию.
	// Ошибка fn откатывает транзакцию, успешное завершение фиксирует ее.
	Do(ctx context.Context, fn func(ctx context.Context) error) error

	// DoWith то же, что Do, но с заданными уровнем изоляции и режимом доступа
	DoWith(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error
}

type pgxTxManager struct {
	pool   *pgxpool.Pool
	logger interfaces.LoggerPort
}

func NewTxManager(pool *pgxpool.Pool, logger interfaces.LoggerPort) TxManager {
	return &pgxTxManager{pool: pool, logger: logger}
}

func (m *pgxTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.DoWith(ctx, pgx.TxOptions{}, fn)
}

func (m *pgxTxManager) DoWith(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	// Вложенный вызов выполняется в уже открытой транзакции
	if _, ok := GetTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("tx.Begin failed: %w", err)
	}
	defer func() {
		// после Commit вернет ErrTxClosed
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && m.logger != nil {
			m.logger.WarnWithContext(ctx, "Ошибка отката транзакции",
				interfaces.LogField{Key: "error", Value: rbErr.Error()},
				interfaces.LogField{Key: "original_error", Value: err.Error()},
			)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx.Commit failed: %w", err)
	}
	return nil
}

// GetTxFromContext извлекает транзакцию из контекста.
func GetTxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

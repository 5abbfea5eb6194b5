package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/clinica-suite/internal/domain"
	"github.com/jhoicas/clinica-suite/internal/domain/repository"
)

var _ repository.AccessCodeRepository = (*AccessCodeRepo)(nil)

// AccessCodeRepo implementación de AccessCodeRepository sobre la tabla user_access_codes.
type AccessCodeRepo struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewAccessCodeRepository construye el adaptador.
func NewAccessCodeRepository(pool *pgxpool.Pool) *AccessCodeRepo {
	return &AccessCodeRepo{pool: pool, tx: NewTxRunner(pool)}
}

// ListByUser devuelve los códigos del usuario ordenados por código.
func (r *AccessCodeRepo) ListByUser(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT code FROM user_access_codes WHERE user_id = $1 ORDER BY code`, userID)
	if err != nil {
		return nil, fmt.Errorf("list access codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan access codes: %w", err)
	}
	if codes == nil {
		codes = []string{}
	}
	return codes, nil
}

// Replace borra y reinserta los códigos del usuario dentro de una transacción.
func (r *AccessCodeRepo) Replace(ctx context.Context, userID string, codes []string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.tx.Run(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_access_codes WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete access codes: %w", err)
		}
		if len(codes) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO user_access_codes (user_id, code, granted_at)
			SELECT $1, unnest($2::text[]), now()`, userID, codes)
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("insert access codes: %w", err)
		}
		return nil
	})
}

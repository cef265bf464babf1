package lotrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lotstock/internal/domain"
	"lotstock/internal/errors"
)

// InsertReservation grava o cabeçalho e as linhas de uma reserva na mesma transação.
func (r *LotRepository) InsertReservation(ctx context.Context, reservation domain.Reservation) (domain.Reservation, error) {
	if reservation.ID == "" {
		reservation.ID = uuid.New().String()
	}
	if reservation.Status == "" {
		reservation.Status = domain.ReservationHeld
	}
	now := time.Now().UTC()
	reservation.CreatedAt = now
	reservation.UpdatedAt = now
	reservation.Version = 1

	err := r.atomic(ctx, func(ctx context.Context, repo *LotRepository) error {
		_, err := repo.q.ExecContext(ctx, `
            INSERT INTO reservations (id, ref_id, variant_id, status, version, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $6)`,
			reservation.ID, reservation.RefID, reservation.VariantID, string(reservation.Status), reservation.Version, now,
		)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return errors.NewConflictError(fmt.Sprintf("Já existe reserva para ref %s na variante %s.", reservation.RefID, reservation.VariantID))
			}
			repo.logger.Error("Falha ao inserir reserva.", err)
			return errors.NewDBError("Falha ao gravar reserva", err)
		}

		for _, line := range reservation.Lines {
			_, err := repo.q.ExecContext(ctx, `
                INSERT INTO reservation_lines (reservation_id, lot_id, quantity, remaining)
                VALUES ($1, $2, $3, $4)`,
				reservation.ID, line.LotID, line.Quantity, line.Remaining,
			)
			if err != nil {
				repo.logger.Error("Falha ao inserir linha da reserva.", err)
				return errors.NewDBError("Falha ao gravar linha da reserva", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return reservation, nil
}

// GetReservation busca a reserva de refID para a variante, com suas linhas.
func (r *LotRepository) GetReservation(ctx context.Context, variantID, refID string) (domain.Reservation, error) {
	ctxTimeout, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
        SELECT id, ref_id, variant_id, status, version, created_at, updated_at
        FROM reservations
        WHERE variant_id = $1 AND ref_id = $2`
	if r.inTx {
		query += ` FOR UPDATE`
	}

	var (
		res    domain.Reservation
		status string
	)
	err := r.q.QueryRowContext(ctxTimeout, query, variantID, refID).Scan(
		&res.ID, &res.RefID, &res.VariantID, &status, &res.Version, &res.CreatedAt, &res.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.Reservation{}, errors.NewNotFoundError(fmt.Sprintf("Reserva da ref %s não encontrada para a variante %s.", refID, variantID))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar reserva.", err)
		return domain.Reservation{}, errors.NewDBError("Falha ao buscar reserva", err)
	}
	res.Status = domain.ReservationStatus(status)

	rows, err := r.q.QueryContext(ctxTimeout, `
        SELECT lot_id, quantity, remaining
        FROM reservation_lines
        WHERE reservation_id = $1
        ORDER BY lot_id`, res.ID)
	if err != nil {
		r.logger.Error("Falha ao buscar linhas da reserva.", err)
		return domain.Reservation{}, errors.NewDBError("Falha ao buscar linhas da reserva", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.ReservationLine
		if err := rows.Scan(&line.LotID, &line.Quantity, &line.Remaining); err != nil {
			return domain.Reservation{}, errors.NewDBError("Falha ao ler linha da reserva", err)
		}
		res.Lines = append(res.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Reservation{}, errors.NewDBError("Falha ao ler linhas da reserva", err)
	}
	return res, nil
}

// UpdateReservation persiste status e linhas (quantidade e saldo). A versão informada precisa bater com a do banco.
func (r *LotRepository) UpdateReservation(ctx context.Context, reservation domain.Reservation) (domain.Reservation, error) {
	now := time.Now().UTC()

	err := r.atomic(ctx, func(ctx context.Context, repo *LotRepository) error {
		result, err := repo.q.ExecContext(ctx, `
            UPDATE reservations
            SET status = $2, version = version + 1, updated_at = $3
            WHERE id = $1 AND version = $4`,
			reservation.ID, string(reservation.Status), now, reservation.Version,
		)
		if err != nil {
			repo.logger.Error("Falha ao atualizar reserva.", err)
			return errors.NewDBError("Falha ao atualizar reserva", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return errors.NewDBError("Falha ao verificar linhas afetadas", err)
		}
		if rowsAffected == 0 {
			return errors.NewConflictError(fmt.Sprintf("A reserva %s foi modificada por outra operação.", reservation.ID))
		}

		// linhas fora da lista somem (reabertura de token liberado)
		lotIDs := make([]string, 0, len(reservation.Lines))
		for _, line := range reservation.Lines {
			lotIDs = append(lotIDs, line.LotID)
		}
		if _, err := repo.q.ExecContext(ctx, `
            DELETE FROM reservation_lines
            WHERE reservation_id = $1 AND NOT (lot_id = ANY($2::uuid[]))`,
			reservation.ID, pq.Array(lotIDs),
		); err != nil {
			repo.logger.Error("Falha ao remover linhas da reserva.", err)
			return errors.NewDBError("Falha ao atualizar linhas da reserva", err)
		}

		for _, line := range reservation.Lines {
			_, err := repo.q.ExecContext(ctx, `
                INSERT INTO reservation_lines (reservation_id, lot_id, quantity, remaining)
                VALUES ($1, $2, $3, $4)
                ON CONFLICT (reservation_id, lot_id)
                DO UPDATE SET quantity = EXCLUDED.quantity, remaining = EXCLUDED.remaining`,
				reservation.ID, line.LotID, line.Quantity, line.Remaining,
			)
			if err != nil {
				repo.logger.Error("Falha ao atualizar linha da reserva.", err)
				return errors.NewDBError("Falha ao atualizar linha da reserva", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	reservation.Version++
	reservation.UpdatedAt = now
	return reservation, nil
}

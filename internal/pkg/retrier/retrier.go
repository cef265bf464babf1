package retrier

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	apperror "lotstock/internal/errors"
	"lotstock/internal/pkg/logger"
)

// Policy define quantas vezes uma operação em conflito é repetida e a espera entre tentativas.
type Policy struct {
	MaxRetries int
	Backoff    time.Duration
}

func (p Policy) backoff() retry.Backoff {
	wait := p.Backoff
	if wait <= 0 {
		wait = time.Millisecond
	}
	max := p.MaxRetries
	if max < 0 {
		max = 0
	}
	return retry.WithMaxRetries(uint64(max), retry.NewConstant(wait))
}

// OnConflict executa fn e a repete enquanto ela falhar com ConflictError.
// fn deve desfazer as próprias mudanças ao falhar (ex.: rodar dentro de WithinTx).
// Esgotadas as tentativas, devolve o último ConflictError.
func OnConflict[T any](ctx context.Context, p Policy, log logger.Logger, opName string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	return retry.DoValue(ctx, p.backoff(), func(ctx context.Context) (T, error) {
		attempt++
		v, err := fn(ctx)

		var conflictErr *apperror.ConflictError
		if errors.As(err, &conflictErr) {
			log.Warn("Conflito de concorrência, tentando novamente.", map[string]interface{}{
				"operation": opName,
				"attempt":   attempt,
				"error":     err.Error(),
			})
			return v, retry.RetryableError(err)
		}
		return v, err
	})
}

package sync

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy reintento con backoff exponencial y jitter para fallas
// transitorias del catálogo remoto. Una política, aplicada uniformemente por
// el driver: nada de catch ad hoc por llamada.
type RetryPolicy struct {
	MaxAttempts int           // techo de intentos, incluido el primero
	BaseDelay   time.Duration // espera antes del segundo intento; se duplica después
	MaxJitter   time.Duration // jitter uniforme sumado a cada espera
}

// DefaultRetryPolicy 3 intentos, 2s base, hasta 500ms de jitter.
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   2 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// Do ejecuta fn hasta que tenga éxito, agote los intentos o falle de forma
// permanente. Solo se reintentan errores transitorios (ver IsTransient);
// la cancelación del contexto corta de inmediato.
func (p RetryPolicy) Do(ctx context.Context, log zerolog.Logger, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := p.BaseDelay << uint(attempt-2)
			if p.MaxJitter > 0 {
				wait += time.Duration(rand.Int63n(int64(p.MaxJitter)))
			}
			log.Info().
				Str("op", op).
				Int("attempt", attempt).
				Int("max_attempts", p.MaxAttempts).
				Dur("wait", wait).
				Msg("reintentando llamada remota")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !IsTransient(err) {
			log.Warn().Err(err).Str("op", op).Msg("error permanente, no se reintenta")
			return err
		}
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("error transitorio")
	}
	return lastErr
}

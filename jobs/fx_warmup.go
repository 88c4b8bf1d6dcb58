package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/expenseflow/expenseflow/internal/fx"
)

// PairSource discovers the currency pairs worth keeping warm.
type PairSource interface {
	PendingCurrencyPairs(ctx context.Context) ([][2]string, error)
}

// FXWarmupJob refreshes the Redis rate cache for every currency pair that a
// pending claim will need at listing time, so interactive requests mostly hit
// the cache instead of the external provider.
type FXWarmupJob struct {
	Source    PairSource
	Converter *fx.Converter
	Logger    *slog.Logger
	clock     func() time.Time
}

// NewFXWarmupJob wires dependencies for the warmup handler.
func NewFXWarmupJob(source PairSource, converter *fx.Converter, logger *slog.Logger) *FXWarmupJob {
	return &FXWarmupJob{
		Source:    source,
		Converter: converter,
		Logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes fx warmup tasks. Individual pair failures are logged and
// skipped; the run only fails when no pair could be resolved at all.
func (j *FXWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Converter == nil {
		return errors.New("fx warmup: handler not configured")
	}
	var payload FXWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	start := j.now()

	pairs := payload.Pairs
	if len(pairs) == 0 {
		if j.Source == nil {
			return errors.New("fx warmup: pair source not configured")
		}
		discovered, err := j.Source.PendingCurrencyPairs(ctx)
		if err != nil {
			logger.Error("discover currency pairs", slog.Any("error", err))
			return err
		}
		pairs = discovered
	}
	if len(pairs) == 0 {
		logger.Info("no currency pairs to warm")
		return nil
	}

	warmed := 0
	failed := 0
	for _, raw := range pairs {
		pair := fx.Pair{From: raw[0], To: raw[1]}
		if pair.Same() {
			continue
		}
		pairCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := j.Converter.Rate(pairCtx, pair)
		cancel()
		if err != nil {
			failed++
			logger.Warn("warm pair", slog.String("pair", pair.Key()), slog.Any("error", err))
			continue
		}
		warmed++
	}

	logger.Info("completed fx warmup",
		slog.Int("warmed", warmed),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)))
	if warmed == 0 && failed > 0 {
		return fx.ErrConversionUnavailable
	}
	return nil
}

func (j *FXWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskFXWarmup))
	}
	return slog.Default().With(slog.String("job", TaskFXWarmup))
}

func (j *FXWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

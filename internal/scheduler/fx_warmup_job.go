package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/spyglass/internal/domain"
)

// fxWarmupLookback is the history span kept warm for each pair.
const fxWarmupLookback = 365 * 24 * time.Hour

// fxWarmupTimeout bounds one full warmup pass.
const fxWarmupTimeout = 2 * time.Minute

// FxWarmupJob keeps the FX series cache warm for the pairs the normalizer
// reaches for most: base currency against the cross-rate intermediates.
// A warm cache means comparison requests rarely wait on the FX endpoint, and
// stale-fallback has data to fall back to during outages.
type FxWarmupJob struct {
	fx           domain.FxSeriesSource
	baseCurrency domain.Currency
	log          zerolog.Logger
}

// NewFxWarmupJob creates the FX cache warmup job.
func NewFxWarmupJob(fx domain.FxSeriesSource, baseCurrency domain.Currency, log zerolog.Logger) *FxWarmupJob {
	return &FxWarmupJob{
		fx:           fx,
		baseCurrency: baseCurrency,
		log:          log.With().Str("job", "fx_warmup").Logger(),
	}
}

// Name implements Job.
func (j *FxWarmupJob) Name() string {
	return "fx_warmup"
}

// Run fetches a year of history for each warm pair. Individual pair failures
// are logged and skipped; the pass itself never fails.
func (j *FxWarmupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), fxWarmupTimeout)
	defer cancel()

	end := time.Now()
	start := end.Add(-fxWarmupLookback)

	warmed := 0
	for _, pair := range j.pairs() {
		rates, err := j.fx.FetchFxSeries(ctx, pair, start, end)
		if err != nil {
			j.log.Warn().Err(err).Str("pair", pair).Msg("FX warmup fetch failed")
			continue
		}
		j.log.Debug().Str("pair", pair).Int("rates", len(rates)).Msg("FX pair warmed")
		warmed++
	}

	j.log.Info().Int("pairs", warmed).Msg("FX cache warmup complete")
	return nil
}

// pairs lists base-vs-intermediate pairs, skipping the identity pair.
func (j *FxWarmupJob) pairs() []string {
	intermediates := []domain.Currency{
		domain.CurrencyUSD, domain.CurrencyEUR, domain.CurrencyGBP, domain.CurrencyJPY,
	}
	out := make([]string, 0, len(intermediates))
	for _, c := range intermediates {
		if c == j.baseCurrency {
			continue
		}
		out = append(out, string(c)+string(j.baseCurrency))
	}
	return out
}

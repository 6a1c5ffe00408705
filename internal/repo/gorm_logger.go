package repo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// zlog routes GORM's logging into zerolog. It logs through zerolog.Ctx so
// ledger writes made while serving a request carry that request's id.
// Missing rows are expected (idempotency misses) and never logged.
type zlog struct {
	level logger.LogLevel
	slow  time.Duration
}

// newGormLogger logs failed statements as errors and statements slower than
// slow as warnings.
func newGormLogger(slow time.Duration) logger.Interface {
	return &zlog{level: logger.Warn, slow: slow}
}

func (l *zlog) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *zlog) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		zerolog.Ctx(ctx).Info().Msgf(msg, args...)
	}
}

func (l *zlog) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		zerolog.Ctx(ctx).Warn().Msgf(msg, args...)
	}
}

func (l *zlog) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		zerolog.Ctx(ctx).Error().Msgf(msg, args...)
	}
}

func (l *zlog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		sql, rows := fc()
		zerolog.Ctx(ctx).Error().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("ledger query failed")
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		sql, rows := fc()
		zerolog.Ctx(ctx).Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("slow ledger query")
	case l.level >= logger.Info:
		sql, rows := fc()
		zerolog.Ctx(ctx).Debug().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("ledger query")
	}
}

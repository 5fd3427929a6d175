package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ZerologAdapter wraps a zerolog.Logger behind the library's Logger
// interface so applications already running zerolog can hand their logger
// straight to the pipeline.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a Logger backed by the given zerolog.Logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

func mergeFields(fields []Fields) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	merged := make(map[string]any)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return merged
}

func (z *ZerologAdapter) Debug(msg string, fields ...Fields) {
	z.logger.Debug().Fields(mergeFields(fields)).Msg(msg)
}

func (z *ZerologAdapter) Info(msg string, fields ...Fields) {
	z.logger.Info().Fields(mergeFields(fields)).Msg(msg)
}

func (z *ZerologAdapter) Warn(msg string, fields ...Fields) {
	z.logger.Warn().Fields(mergeFields(fields)).Msg(msg)
}

func (z *ZerologAdapter) Error(err error, msg string, fields ...Fields) {
	z.logger.Error().Err(err).Fields(mergeFields(fields)).Msg(msg)
}

func (z *ZerologAdapter) Fatal(err error, msg string, fields ...Fields) {
	z.logger.Fatal().Err(err).Fields(mergeFields(fields)).Msg(msg)
}

func (z *ZerologAdapter) WithFields(fields Fields) Logger {
	return &ZerologAdapter{logger: z.logger.With().Fields(map[string]any(fields)).Logger()}
}

func (z *ZerologAdapter) WithContext(ctx context.Context) Logger {
	if fields, ok := ctx.Value(fieldsContextKey{}).(Fields); ok {
		return z.WithFields(fields)
	}
	return z
}

func (z *ZerologAdapter) SetLevel(level Level) {
	var zl zerolog.Level
	switch level {
	case DebugLevel:
		zl = zerolog.DebugLevel
	case InfoLevel:
		zl = zerolog.InfoLevel
	case WarnLevel:
		zl = zerolog.WarnLevel
	case ErrorLevel:
		zl = zerolog.ErrorLevel
	case FatalLevel:
		zl = zerolog.FatalLevel
	default:
		zl = zerolog.InfoLevel
	}
	z.logger = z.logger.Level(zl)
}

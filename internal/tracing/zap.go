package tracing

import "go.uber.org/zap"

// ZapHook logs every event through a structured zap.Logger at debug level,
// giving an operator human-readable output without the simulator's own
// handlers ever calling fmt.Println (the pattern original_source/gbn.py
// and abp.py used throughout).
type ZapHook struct {
	logger *zap.Logger
}

// NewZapHook wraps logger as a Hook.
func NewZapHook(logger *zap.Logger) *ZapHook {
	return &ZapHook{logger: logger}
}

// OnEvent implements Hook.
func (z *ZapHook) OnEvent(e Event) {
	z.logger.Debug("sim event",
		zap.Float64("time", e.Time),
		zap.String("kind", e.Kind),
		zap.String("target", e.Target),
		zap.String("detail", e.Detail),
	)
}

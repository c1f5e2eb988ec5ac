package log

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

// FilterRules creates an option which restricts output by level and logger name.
// Rules use the zapfilter syntax LEVELS:NAMESPACES, e.g. "warn+:* debug+:strategy*"
// logs warnings for all loggers and everything from the strategy loggers.
// An empty rule set disables filtering.
func FilterRules(rules string) (Option, error) {
	if rules == "" {
		return zap.WrapCore(func(c zapcore.Core) zapcore.Core { return c }), nil
	}
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid log filter %q: %w", rules, err)
	}
	return zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapfilter.NewFilteringCore(c, filter)
	}), nil
}

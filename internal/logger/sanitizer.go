package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// wraps a zapcore.Core and sanitizes log entries.
type SanitizerCore struct {
	zapcore.Core
	sensitiveFields []string
	mask            string
}

func NewSanitizerCore(core zapcore.Core, sensitiveFields []string, mask string) *SanitizerCore {
	return &SanitizerCore{
		Core:            core,
		sensitiveFields: sensitiveFields,
		mask:            mask,
	}
}

// adds structured context to the core.
func (s *SanitizerCore) With(fields []zapcore.Field) zapcore.Core {
	return &SanitizerCore{
		Core:            s.Core.With(sanitizeFields(fields, s.sensitiveFields, s.mask)),
		sensitiveFields: s.sensitiveFields,
		mask:            s.mask,
	}
}

// determines whether the supplied entry should be logged.
func (s *SanitizerCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if s.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, s)
	}
	return checkedEntry
}

func (s *SanitizerCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return s.Core.Write(entry, sanitizeFields(fields, s.sensitiveFields, s.mask))
}

// masks sensitive fields and sensitive keys of header maps.
func sanitizeFields(fields []zapcore.Field, sensitiveFields []string, mask string) []zapcore.Field {
	maskedFields := make([]zapcore.Field, len(fields))
	copy(maskedFields, fields)

	for i, field := range maskedFields {
		if isSensitive(field.Key, sensitiveFields) {
			maskedFields[i] = zap.String(field.Key, mask)
			continue
		}

		if field.Type != zapcore.ReflectType {
			continue
		}
		values, ok := field.Interface.(map[string]string)
		if !ok {
			continue
		}
		masked := make(map[string]string, len(values))
		for k, v := range values {
			if isSensitive(k, sensitiveFields) {
				v = mask
			}
			masked[k] = v
		}
		maskedFields[i] = zap.Any(field.Key, masked)
	}

	return maskedFields
}

func isSensitive(key string, sensitiveFields []string) bool {
	for _, sensitive := range sensitiveFields {
		if strings.EqualFold(key, sensitive) {
			return true
		}
	}
	return false
}

package log

import (
	"sort"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// Init builds the JSON production logger writing to stdout and, when set, file.
func Init(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.OutputPaths = []string{"stdout"}
	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	SetLogger(l)
	return l, nil
}

// SetLogger replaces the process logger.
func SetLogger(l *zap.Logger) { logger.Store(l) }

// L returns the process logger for code running outside a request.
func L() *zap.Logger { return logger.Load() }

func fieldsFor(c *fiber.Ctx, action string, err error, extra map[string]any) []zap.Field {
	fs := []zap.Field{zap.String("action", action)}
	if c != nil {
		fs = append(fs,
			zap.String("ip", c.IP()),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
		)
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			fs = append(fs, zap.String("req_id", rid))
		}
		if uid, ok := c.Locals("user_id").(int64); ok && uid != 0 {
			fs = append(fs, zap.Int64("user_id", uid))
		}
	}
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fs = append(fs, zap.Any(k, extra[k]))
	}
	return fs
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, fieldsFor(c, action, nil, fields)...)
}

func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, append(fieldsFor(c, action, nil, fields), zap.Bool("audit", true))...)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	L().Warn(action, fieldsFor(c, action, nil, fields)...)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	L().Error(action, fieldsFor(c, action, err, fields)...)
}

package logger

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Log is the global logger instance
	Log = zap.NewNop()
)

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"

// RequestIDHeader is read from and echoed back on every request
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// Option adds an extra sink to the process logger.
type Option func(*options)

type options struct {
	writers []io.Writer
	cores   []zapcore.Core
}

// WithWriter tees JSON encoded entries into w, e.g. a CloudWatch Logs writer.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.writers = append(o.writers, w)
		}
	}
}

// WithCore tees entries into an existing core, e.g. the OpenTelemetry bridge.
func WithCore(core zapcore.Core) Option {
	return func(o *options) {
		if core != nil {
			o.cores = append(o.cores, core)
		}
	}
}

// Initialize sets up the logger with the specified environment
func Initialize(env string, opts ...Option) *zap.Logger {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(o.writers) == 0 && len(o.cores) == 0 {
		l, err := config.Build()
		if err != nil {
			fmt.Printf("Failed to initialize logger: %v\n", err)
			os.Exit(1)
		}
		Log = l
		return Log
	}

	level := zap.NewAtomicLevelAt(config.Level.Level())
	var consoleEncoder zapcore.Encoder
	if env == "production" {
		consoleEncoder = zapcore.NewJSONEncoder(config.EncoderConfig)
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
	}
	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)}

	// Extra writers always receive JSON, regardless of the console format.
	jsonConfig := config.EncoderConfig
	jsonConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	for _, w := range o.writers {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonConfig), zapcore.AddSync(w), level))
	}
	cores = append(cores, o.cores...)

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return Log
}

// RequestID returns a gin middleware that assigns every request an ID,
// taken from X-Request-ID when the caller sent one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Request = c.Request.WithContext(WithContext(c.Request.Context(), requestID))
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// Error logs an error with request ID and additional context
func Error(ctx context.Context, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("request_id", RequestIDFrom(ctx)))
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	Log.Error(msg, fields...)
}

// Info logs an info message with request ID and additional context
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Info(msg, append(fields, zap.String("request_id", RequestIDFrom(ctx)))...)
}

// Debug logs a debug message with request ID and additional context
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Debug(msg, append(fields, zap.String("request_id", RequestIDFrom(ctx)))...)
}

// Warn logs a warning message with request ID and additional context
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Warn(msg, append(fields, zap.String("request_id", RequestIDFrom(ctx)))...)
}

// RequestIDFrom extracts the request ID from a gin or plain context.
func RequestIDFrom(ctx context.Context) string {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		if requestID := ginCtx.GetString(RequestIDKey); requestID != "" {
			return requestID
		}
		ctx = ginCtx.Request.Context()
	}
	if requestID, ok := ctx.Value(ctxKey{}).(string); ok {
		return requestID
	}
	return "unknown"
}

// WithContext creates a new context with the given request ID
func WithContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

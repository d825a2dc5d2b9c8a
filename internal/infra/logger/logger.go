package logger

import (
	"context"
	"net"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// New builds the process logger and installs it as the zap global so that
// WithContext can decorate it later.
func New(env, serviceName string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env != "production" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lg, err := cfg.Build(zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(lg)
	return lg, nil
}

// WithContext returns the global logger tagged with the request id found on ctx.
func WithContext(ctx context.Context) *zap.Logger {
	lg := zap.L()
	if ctx == nil {
		return lg
	}
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok && id != "" {
		return lg.With(zap.String("request_id", id))
	}
	return lg
}

// MaskEmail keeps up to three leading characters of the local part and the
// domain: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***" + domain
}

// MaskIP hides the host part of an address. IPv4 keeps two octets, IPv6 keeps
// four groups.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "***"
	}
	if v4 := parsed.To4(); v4 != nil {
		parts := strings.Split(v4.String(), ".")
		return parts[0] + "." + parts[1] + ".*.*"
	}
	groups := strings.Split(ip, ":")
	if len(groups) < 4 {
		return "***"
	}
	return strings.Join(groups[:4], ":") + ":*:*:*:*"
}

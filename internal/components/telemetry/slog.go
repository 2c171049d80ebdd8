package telemetry

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
)

// SlogAPI implements API on top of log/slog, the zero value logs to slog.Default().
type SlogAPI struct {
	Logger *slog.Logger
}

func (s SlogAPI) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// attrs turns positional params into a "params" group: params.0, params.1, ...
func attrs(id string, params []any) []any {
	out := make([]any, 0, 2)
	if id != "" {
		out = append(out, slog.String("id", id))
	}
	if len(params) == 0 {
		return out
	}
	group := make([]any, len(params))
	for i, p := range params {
		group[i] = slog.Any(strconv.Itoa(i), p)
	}
	return append(out, slog.Group("params", group...))
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.logger().Error("broken", attrs(id, params)...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.logger().Warn("warning", attrs(id, params)...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	s.logger().Debug(message, attrs("", params)...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	s.logger().Info("count", slog.String("id", id), slog.Int64("n", count))
}

// InitSlog installs a colored stderr handler as the default slog logger, debug
// reports (every http request included) are only shown when `verbose` is set.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))
}

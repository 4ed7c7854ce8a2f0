// Package promtext renders authcore counters in the Prometheus text
// exposition format without pulling in a client library. It reads the same
// [metrics.Snapshot] values the otelx bridge does; use it when a plain
// scrape endpoint is all that is needed.
package promtext

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/karsvik/authcore/metrics"
)

// Source supplies counter snapshots, typically *authcore.Service.
type Source interface {
	MetricsSnapshot() metrics.Snapshot
}

var help = map[metrics.ID]string{
	metrics.LoginSuccess:        "Successful password logins.",
	metrics.LoginFailure:        "Rejected login attempts.",
	metrics.LoginRateLimited:    "Logins denied by the rate limiter.",
	metrics.TwoFactorRequired:   "Logins deferred pending a second factor.",
	metrics.TwoFactorSuccess:    "Completed two-factor verifications.",
	metrics.TwoFactorFailure:    "Rejected two-factor codes.",
	metrics.TokenRefreshed:      "Token pairs rotated via refresh.",
	metrics.RefreshRejected:     "Refresh attempts rejected.",
	metrics.SessionCreated:      "Sessions created.",
	metrics.SessionInvalidated:  "Sessions invalidated by logout or rotation.",
	metrics.RateLimiterFailOpen: "Rate limiter decisions that failed open.",
}

// Exporter renders a metrics source in Prometheus text exposition format.
type Exporter struct {
	source Source
}

// NewExporter returns an exporter reading from the given source.
func NewExporter(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler serving the rendered metrics.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render writes every counter with its HELP and TYPE lines, in export order.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}

	snapshot := e.source.MetricsSnapshot()

	var b strings.Builder
	b.Grow(4096)
	for _, id := range metrics.IDs() {
		writeCounter(&b, id.Name(), help[id], snapshot.Get(id))
	}
	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

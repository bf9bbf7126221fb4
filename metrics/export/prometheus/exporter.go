package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	driveauth "github.com/weisiqian3/driveauth"
	"github.com/weisiqian3/driveauth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() driveauth.MetricsSnapshot
	DroppedAuditEvents() uint64
}

// Exporter renders engine metrics in Prometheus text exposition format
// without pulling in a client library; the engine's fixed metric set
// does not need one.
type Exporter struct {
	source metricsSource
}

// NewExporter reads from an engine.
func NewExporter(engine *driveauth.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource reads from a custom source, usually a test
// double.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the rendered metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render produces the current metrics in text exposition format.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.DroppedAuditEvents()

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		writeCounter(&b, def.Name, def.Help, snapshot.Counter(def.ID))
	}

	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(snapshot.LatencyBuckets)
		writeHistogram(&b, def.Name, def.Help, cumulative, snapshot.LatencySumNs)
	}

	writeCounter(&b, "driveauth_audit_dropped_total", "Audit events dropped by dispatcher backpressure.", dropped)

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

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64, sumNs int64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" histogram\n")

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	b.WriteByte('\n')

	b.WriteString(name)
	b.WriteString("_sum ")
	b.WriteString(strconv.FormatFloat(float64(sumNs)/1e9, 'f', -1, 64))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}

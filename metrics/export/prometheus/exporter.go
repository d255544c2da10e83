package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/eastwyck/authcore"
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var counterDefs = []counterDef{
	{authcore.MetricLoginSuccess, "authcore_login_success_total", "Successful session logins."},
	{authcore.MetricLoginFailure, "authcore_login_failure_total", "Login attempts that failed outside policy (unknown account, unknown role)."},
	{authcore.MetricLoginNotAdmitted, "authcore_login_not_admitted_total", "Login attempts refused by admission (already logged in, capacity)."},
	{authcore.MetricLoginBlocked, "authcore_login_blocked_total", "Login attempts blocked by account policy (locked, expired, role disabled)."},
	{authcore.MetricSessionOpened, "authcore_session_opened_total", "Sessions opened in either context."},
	{authcore.MetricSessionClosed, "authcore_session_closed_total", "Sessions closed by logout."},
	{authcore.MetricSessionSuperseded, "authcore_session_superseded_total", "Single-context sessions replaced by a newer login."},
	{authcore.MetricLogoutMissed, "authcore_logout_missed_total", "Logout calls that matched no live session."},
	{authcore.MetricAccountCreated, "authcore_account_created_total", "Accounts created through the directory."},
	{authcore.MetricAccountDeleted, "authcore_account_deleted_total", "Accounts deleted through the directory."},
	{authcore.MetricFlowStarted, "authcore_flow_started_total", "Login flows started."},
	{authcore.MetricFlowCancelled, "authcore_flow_cancelled_total", "Login flows cancelled by the prompt or context."},
	{authcore.MetricFlowAttemptsExceeded, "authcore_flow_attempts_exceeded_total", "Login flows that hit the attempt cap."},
}

// Exporter renders authcore metrics in Prometheus text exposition format.
type Exporter struct {
	source metricsSource
}

// NewExporter creates an exporter reading from the given [authcore.Facade].
func NewExporter(facade *authcore.Facade) *Exporter {
	return &Exporter{source: facade}
}

// NewExporterFromSource creates an exporter from a custom metrics source.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler that serves the rendered metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the current counters in Prometheus text exposition format.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range counterDefs {
		writeCounter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
	}

	writeCounter(&b, "authcore_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", dropped)

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

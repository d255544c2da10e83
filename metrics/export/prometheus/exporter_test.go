package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eastwyck/authcore"
	"github.com/eastwyck/authcore/credstore"
)

type fakeSource struct {
	counters map[authcore.MetricID]uint64
	dropped  uint64
}

func (s *fakeSource) MetricsSnapshot() authcore.MetricsSnapshot {
	return authcore.MetricsSnapshot{Counters: s.counters}
}

func (s *fakeSource) AuditDropped() uint64 {
	return s.dropped
}

func TestRenderExposesEveryCounter(t *testing.T) {
	source := &fakeSource{
		counters: map[authcore.MetricID]uint64{
			authcore.MetricLoginSuccess:   7,
			authcore.MetricSessionOpened:  7,
			authcore.MetricLogoutMissed:   2,
			authcore.MetricAccountCreated: 3,
		},
		dropped: 5,
	}

	out := NewExporterFromSource(source).Render()

	for _, want := range []string{
		"# HELP authcore_login_success_total ",
		"# TYPE authcore_login_success_total counter\n",
		"authcore_login_success_total 7\n",
		"authcore_logout_missed_total 2\n",
		"authcore_account_created_total 3\n",
		"authcore_flow_started_total 0\n",
		"authcore_audit_dropped_total 5\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered output missing %q:\n%s", want, out)
		}
	}

	// Every defined counter appears even when zero.
	for _, def := range counterDefs {
		if !strings.Contains(out, "# TYPE "+def.Name+" counter\n") {
			t.Fatalf("rendered output missing counter %s", def.Name)
		}
	}
}

func TestRenderEmptyWhenNothingCounted(t *testing.T) {
	source := &fakeSource{counters: map[authcore.MetricID]uint64{}}
	if out := NewExporterFromSource(source).Render(); out != "" {
		t.Fatalf("expected empty exposition, got:\n%s", out)
	}

	var nilExporter *Exporter
	if out := nilExporter.Render(); out != "" {
		t.Fatal("nil exporter must render nothing")
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	source := &fakeSource{
		counters: map[authcore.MetricID]uint64{authcore.MetricLoginSuccess: 1},
	}
	exporter := NewExporterFromSource(source)

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); got != "text/plain; version=0.0.4; charset=utf-8" {
		t.Fatalf("Content-Type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "authcore_login_success_total 1\n") {
		t.Fatalf("body missing counter line:\n%s", rec.Body.String())
	}
}

func TestExporterReadsFromFacade(t *testing.T) {
	facade, err := authcore.New().
		WithStore(credstore.NewMemory()).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = facade.Close() })

	ctx := context.Background()
	if _, err := facade.CreateAccount(ctx, "alice", []byte("s3cret-pw"), authcore.RoleBasic); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	out := NewExporter(facade).Render()
	if !strings.Contains(out, "authcore_account_created_total 1\n") {
		t.Fatalf("facade counters missing from exposition:\n%s", out)
	}
	if !strings.Contains(out, "authcore_login_success_total 0\n") {
		t.Fatalf("zero counters must still be exposed:\n%s", out)
	}
}

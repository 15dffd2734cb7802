package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily はレジストリから指定名のメトリクスファミリーを取得する。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はメトリクスから指定ラベルの値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPRequest_CountsByStatus はステータスコード別に件数が記録されることを検証する。
func TestRecordHTTPRequest_CountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(200, 10*time.Millisecond)
	c.RecordHTTPRequest(200, 20*time.Millisecond)
	c.RecordHTTPRequest(401, 5*time.Millisecond)

	mf := findMetricFamily(t, reg, "todoman_http_requests_total")
	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		counts[labelValue(m, "status_code")] = m.GetCounter().GetValue()
	}
	if counts["200"] != 2 {
		t.Errorf("status 200 count = %v, want 2", counts["200"])
	}
	if counts["401"] != 1 {
		t.Errorf("status 401 count = %v, want 1", counts["401"])
	}

	hist := findMetricFamily(t, reg, "todoman_http_request_duration_seconds")
	if got := hist.GetMetric()[0].GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("duration sample count = %d, want 3", got)
	}
}

func TestRecordAuthEvent_CountsByEventAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthEvent(EventLogin, ResultSuccess)
	c.RecordAuthEvent(EventLogin, ResultFailure)
	c.RecordAuthEvent(EventLogin, ResultFailure)
	c.RecordAuthEvent(EventRegister, ResultSuccess)

	mf := findMetricFamily(t, reg, "todoman_auth_events_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "event")+"/"+labelValue(m, "result")] = m.GetCounter().GetValue()
	}

	want := map[string]float64{
		"login/success":    1,
		"login/failure":    2,
		"register/success": 1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestRecordTaskOperation_CountsByOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTaskOperation("create")
	c.RecordTaskOperation("create")
	c.RecordTaskOperation("delete")

	mf := findMetricFamily(t, reg, "todoman_tasks_operations_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "op")] = m.GetCounter().GetValue()
	}
	if got["create"] != 2 || got["delete"] != 1 {
		t.Errorf("task operations = %v, want create=2 delete=1", got)
	}
}

// TestHandler_ServesMetrics はスクレイプ用ハンドラーがメトリクスを返すことを検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordAuthEvent(EventRegister, ResultSuccess)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "todoman_auth_events_total") {
		t.Error("response should contain todoman_auth_events_total metric")
	}
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}

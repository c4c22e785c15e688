package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// counterValue は指定名のカウンタの最初のメトリクス値を返す。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

// TestRecordUSDASuccess_IncrementsCounter はUSDA成功カウンタが増加することを検証する。
func TestRecordUSDASuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUSDASuccess("search")
	c.RecordUSDASuccess("search")

	if val := counterValue(t, reg, "nutrilog_usda_success_total"); val != 2 {
		t.Errorf("usda_success_total = %v, want 2", val)
	}
}

// TestRecordUSDAFailure_IncrementsCounter はUSDA失敗カウンタが増加することを検証する。
func TestRecordUSDAFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUSDAFailure("search", "timeout")

	if val := counterValue(t, reg, "nutrilog_usda_fail_total"); val != 1 {
		t.Errorf("usda_fail_total = %v, want 1", val)
	}
}

func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "nutrilog_http_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
					}
				case "404":
					if val != 1 {
						t.Errorf("http_status_total{status_code=404} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("nutrilog_http_status_total metric not found")
	}
}

// TestRecordUSDALatency_ObservesHistogram はUSDAレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordUSDALatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUSDALatency(100 * time.Millisecond)
	c.RecordUSDALatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "nutrilog_usda_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("nutrilog_usda_latency_seconds metric not found")
	}
}

// TestRecordEntryLogged_IncrementsCounterWithLabel は食事記録カウンタが区分別に増加することを検証する。
func TestRecordEntryLogged_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEntryLogged("breakfast")
	c.RecordEntryLogged("breakfast")
	c.RecordEntryLogged("dinner")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "nutrilog_entries_logged_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("nutrilog_entries_logged_total metric not found")
	}
}

// TestRecordFoodImported_IncrementsCounter はインポートカウンタが増加することを検証する。
func TestRecordFoodImported_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFoodImported()
	c.RecordFoodImported()
	c.RecordFoodImported()

	if val := counterValue(t, reg, "nutrilog_foods_imported_total"); val != 3 {
		t.Errorf("foods_imported_total = %v, want 3", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// いくつかのメトリクスを記録
	c.RecordUSDASuccess("search")
	c.RecordUSDAFailure("food", "http_500")
	c.RecordHTTPStatus(200)
	c.RecordUSDALatency(500 * time.Millisecond)
	c.RecordEntryLogged("lunch")
	c.RecordFoodImported()

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// Prometheus形式のメトリクスが含まれていることを確認
	expectedMetrics := []string{
		"nutrilog_usda_success_total",
		"nutrilog_usda_fail_total",
		"nutrilog_http_status_total",
		"nutrilog_usda_latency_seconds",
		"nutrilog_entries_logged_total",
		"nutrilog_foods_imported_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordFoodImported()
	c2.RecordFoodImported()
	c2.RecordFoodImported()

	val1 := counterValue(t, reg1, "nutrilog_foods_imported_total")
	val2 := counterValue(t, reg2, "nutrilog_foods_imported_total")

	if val1 != 1 {
		t.Errorf("reg1 foods_imported = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 foods_imported = %v, want 2", val2)
	}
}

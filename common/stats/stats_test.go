package stats

import (
	"strings"
	"testing"
	"time"
)

func TestPrecisionChange(t *testing.T) {
	stat := DefaultStatsReceiver().(*defaultStatsReceiver)
	if stat.precision != time.Nanosecond {
		t.Fatal("Default precision should be nanos.")
	}

	statp := stat.Precision(time.Millisecond).(*defaultStatsReceiver)
	if stat.precision != time.Nanosecond {
		t.Fatal("Default precision should still nanos.")
	}
	if statp.precision != time.Millisecond {
		t.Fatal("New stat precision should be millis.")
	}
}

func TestScopeChange(t *testing.T) {
	stat := DefaultStatsReceiver().(*defaultStatsReceiver)
	if len(stat.scope) != 0 {
		t.Fatal("Default scope should be empty.")
	}

	statp := stat.Scope("a/b", "c").(*defaultStatsReceiver)
	if len(stat.scope) != 0 {
		t.Fatal("Default scope should still empty.")
	}
	if len(statp.scope) != 2 || statp.scope[0] != "a_SLASH_b" || statp.scope[1] != "c" {
		t.Fatal("Invalid scope value: ", statp.scope)
	}
	if statp.scopedName("d") != "a_SLASH_b/c/d" {
		t.Fatal("Invalid scope name: " + statp.scopedName("d"))
	}
}

func TestSiblingScopesDoNotShareBacking(t *testing.T) {
	root := DefaultStatsReceiver().Scope("orchestrator")
	a := root.Scope("a").(*defaultStatsReceiver)
	b := root.Scope("b").(*defaultStatsReceiver)
	if a.scopedName("x") != "orchestrator/a/x" || b.scopedName("x") != "orchestrator/b/x" {
		t.Fatal("Scopes leaked into each other: ", a.scopedName("x"), b.scopedName("x"))
	}
}

func TestMarshal(t *testing.T) {
	defer func() { Time = DefaultStatsTime() }()

	reg := NewFinagleStatsRegistry()
	reg.GetOrRegister("counter", NewCounter()).(Counter).Inc(1)
	reg.GetOrRegister("gauge", NewGauge()).(Gauge).Update(2)

	Time = NewTestTime(time.Unix(0, 0), time.Nanosecond*5)
	reg.GetOrRegister("latency", NewLatency()).(Latency).Time().Stop()
	Time = NewTestTime(time.Unix(0, 0), time.Nanosecond*10)
	reg.GetOrRegister("latency", NewLatency()).(Latency).Time().Stop()

	bytes, err := reg.(MarshalerPretty).MarshalJSONPretty()
	expected :=
		`{
  "counter": 1,
  "gauge": 2,
  "latency.avg": 7.5,
  "latency.count": 2,
  "latency.max": 10,
  "latency.min": 5,
  "latency.p50": 7.5,
  "latency.p90": 10,
  "latency.p95": 10,
  "latency.p99": 10,
  "latency.p999": 10,
  "latency.p9999": 10,
  "latency.sum": 15
}`
	if string(bytes) != expected {
		t.Fatal("Wrong json marshal output: ", string(bytes), err)
	}
}

func TestRecordUsesPrecision(t *testing.T) {
	stat := DefaultStatsReceiver().Precision(time.Millisecond)
	stat.Latency(OrchTaskLatency_ms).Record(3 * time.Millisecond)

	rendered := string(stat.Render(false))
	if !strings.Contains(rendered, `"taskLatency_ms.max":3`) {
		t.Fatal("Expected millisecond rendering: ", rendered)
	}
}

func TestRenderClearsLatencies(t *testing.T) {
	stat := DefaultStatsReceiver()
	stat.Counter(OrchSubmittedCounter).Inc(1)
	stat.Latency(OrchTaskLatency_ms).Record(time.Millisecond)

	rendered := string(stat.Render(false))
	if !strings.Contains(rendered, `"submittedCounter":1`) || !strings.Contains(rendered, `"taskLatency_ms.count":1`) {
		t.Fatal("Expected current stats in render", rendered)
	}

	rendered = string(stat.Render(false))
	if !strings.Contains(rendered, `"submittedCounter":1`) {
		t.Fatal("Expected counters to survive render", rendered)
	}
	if !strings.Contains(rendered, `"taskLatency_ms.count":0`) {
		t.Fatal("Expected clearing of latencies after render", rendered)
	}
}

func TestNilReceiver(t *testing.T) {
	stat := NilStatsReceiver()
	stat.Scope("a").Counter("b").Inc(1)
	stat.Latency("c").Time().Stop()
	if stat.Counter("b").Count() != 0 {
		t.Fatal("Nil counter should not count")
	}
	if string(stat.Render(true)) != "{}" {
		t.Fatal("Nil receiver should render an empty object")
	}
}

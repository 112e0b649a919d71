package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTaskRequestDefaultsToNormalPriority(t *testing.T) {
	var req TaskRequest
	err := json.Unmarshal([]byte(`{"payload": {"type": "compute", "name": "build", "estimated_duration": "15ms"}}`), &req)
	if err != nil {
		t.Fatal(err)
	}
	if req.Priority != Normal {
		t.Fatalf("Expected normal priority, got %s", req.Priority)
	}
	c, ok := req.Payload.(Compute)
	if !ok {
		t.Fatalf("Expected compute payload, got %T", req.Payload)
	}
	if c.Name != "build" || c.EstimatedDuration != 15*time.Millisecond {
		t.Fatalf("Unexpected payload %+v", c)
	}
}

func TestTaskRequestRoundTrip(t *testing.T) {
	in := TaskRequest{Priority: Dream, Payload: Optimize{Target: FunctionOptimization("hot_loop", []byte{0x90, 0xc3})}}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out TaskRequest
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out.Priority != Dream {
		t.Fatalf("Priority lost: %s", out.Priority)
	}
	o := out.Payload.(Optimize)
	if o.Target.Kind != FunctionTarget || o.Target.Name != "hot_loop" || len(o.Target.Binary) != 2 {
		t.Fatalf("Target lost: %+v", o.Target)
	}
}

func TestUnmarshalPayloadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		`{}`:                   "no type",
		`{"type": "teleport"}`: "unknown payload type",
		`{"type": "compute"}`:  "needs a name",
		`{"type": "compute", "name": "x", "estimated_duration": "soon"}`: "estimated_duration",
		`{"type": "index_file"}`:                             "needs a path",
		`{"type": "search", "query": "x", "limit": -1}`:      "negative limit",
		`{"type": "maintenance", "maintenance": "defrag"}`:   "unknown maintenance type",
		`{"type": "optimize", "target": {"kind": "galaxy"}}`: "unknown optimization target",
	}
	for in, want := range cases {
		_, err := UnmarshalPayload([]byte(in))
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("UnmarshalPayload(%s): expected error containing %q, got %v", in, want, err)
		}
	}
}

func TestTaskIDParse(t *testing.T) {
	id := NewTaskID()
	if id == NilTaskID {
		t.Fatal("NewTaskID returned the nil id")
	}
	parsed, err := ParseTaskID(id.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != id {
		t.Fatalf("Expected %s, got %s", id, parsed)
	}
	if _, err := ParseTaskID("not-an-id"); err == nil {
		t.Fatal("Expected an error parsing garbage")
	}
	if NewTaskID() == id {
		t.Fatal("Two ids collided")
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("HIGH")
	if err != nil || p != High {
		t.Fatalf("Expected High, got %s %v", p, err)
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Fatal("Expected an error for an unknown priority")
	}
	if !(Critical < High && High < Normal && Normal < Low && Low < Dream) {
		t.Fatal("Priorities are out of order")
	}
}

package domain

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// TaskRequest is the wire form of a submission:
//
//	{"priority": "high", "payload": {"type": "compute", "name": "x", "estimated_duration": "10ms"}}
//
// A missing priority means Normal.
type TaskRequest struct {
	Priority Priority
	Payload  Payload
}

// Task builds a new Pending task from the request.
func (r TaskRequest) Task() *Task {
	return NewTask(r.Priority, r.Payload)
}

type taskRequestJSON struct {
	Priority string          `json:"priority,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

func (r TaskRequest) MarshalJSON() ([]byte, error) {
	payload, err := MarshalPayload(r.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taskRequestJSON{Priority: r.Priority.String(), Payload: payload})
}

func (r *TaskRequest) UnmarshalJSON(b []byte) error {
	var raw taskRequestJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return errors.Wrap(err, "decoding task request")
	}
	priority, err := ParsePriority(raw.Priority)
	if err != nil {
		return err
	}
	if len(raw.Payload) == 0 {
		return errors.New("task request has no payload")
	}
	payload, err := UnmarshalPayload(raw.Payload)
	if err != nil {
		return err
	}
	r.Priority = priority
	r.Payload = payload
	return nil
}

type targetJSON struct {
	Kind   TargetKind `json:"kind"`
	Name   string     `json:"name,omitempty"`
	Binary []byte     `json:"binary,omitempty"`
	Path   string     `json:"path,omitempty"`
}

type payloadJSON struct {
	Type PayloadKind `json:"type"`

	Name              string `json:"name,omitempty"`
	EstimatedDuration string `json:"estimated_duration,omitempty"`

	Path string `json:"path,omitempty"`

	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`

	Target *targetJSON `json:"target,omitempty"`

	Maintenance MaintenanceType `json:"maintenance,omitempty"`
}

// MarshalPayload encodes a payload with a "type" discriminator.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil payload")
	}
	out := payloadJSON{Type: p.Kind()}
	switch v := p.(type) {
	case Compute:
		out.Name = v.Name
		out.EstimatedDuration = v.EstimatedDuration.String()
	case IndexFile:
		out.Path = v.Path
	case Search:
		out.Query = v.Query
		out.Limit = v.Limit
	case Optimize:
		out.Target = &targetJSON{Kind: v.Target.Kind, Name: v.Target.Name, Binary: v.Target.Binary, Path: v.Target.Path}
	case Maintenance:
		out.Maintenance = v.Type
	default:
		return nil, errors.Errorf("unsupported payload %T", p)
	}
	return json.Marshal(out)
}

// UnmarshalPayload decodes and validates a payload written by MarshalPayload.
func UnmarshalPayload(b []byte) (Payload, error) {
	var in payloadJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, errors.Wrap(err, "decoding payload")
	}
	switch in.Type {
	case ComputeKind:
		if in.Name == "" {
			return nil, errors.New("compute payload needs a name")
		}
		var d time.Duration
		if in.EstimatedDuration != "" {
			var err error
			if d, err = time.ParseDuration(in.EstimatedDuration); err != nil {
				return nil, errors.Wrap(err, "compute payload estimated_duration")
			}
		}
		if d < 0 {
			return nil, errors.Errorf("compute payload has negative duration %s", d)
		}
		return Compute{Name: in.Name, EstimatedDuration: d}, nil
	case IndexFileKind:
		if in.Path == "" {
			return nil, errors.New("index_file payload needs a path")
		}
		return IndexFile{Path: in.Path}, nil
	case SearchKind:
		if in.Limit < 0 {
			return nil, errors.Errorf("search payload has negative limit %d", in.Limit)
		}
		return Search{Query: in.Query, Limit: in.Limit}, nil
	case OptimizeKind:
		if in.Target == nil {
			return Optimize{Target: SystemOptimization()}, nil
		}
		switch in.Target.Kind {
		case FunctionTarget:
			return Optimize{Target: FunctionOptimization(in.Target.Name, in.Target.Binary)}, nil
		case ModuleTarget:
			return Optimize{Target: ModuleOptimization(in.Target.Path)}, nil
		case SystemTarget, "":
			return Optimize{Target: SystemOptimization()}, nil
		}
		return nil, errors.Errorf("unknown optimization target %q", in.Target.Kind)
	case MaintenanceKind:
		if !in.Maintenance.Valid() {
			return nil, errors.Errorf("unknown maintenance type %q", in.Maintenance)
		}
		return Maintenance{Type: in.Maintenance}, nil
	case "":
		return nil, errors.New("payload has no type")
	}
	return nil, errors.Errorf("unknown payload type %q", in.Type)
}

package domain

import (
	"fmt"
	"time"
)

// PayloadKind names a Payload variant.
type PayloadKind string

const (
	ComputeKind     PayloadKind = "compute"
	IndexFileKind   PayloadKind = "index_file"
	SearchKind      PayloadKind = "search"
	OptimizeKind    PayloadKind = "optimize"
	MaintenanceKind PayloadKind = "maintenance"
)

// Payload describes what a task does. The set of variants is closed: only the
// types in this file implement it. The scheduler never looks inside a payload,
// it hands it to a handler.
type Payload interface {
	Kind() PayloadKind
	// Label is the name latencies are recorded under.
	Label() string
	isPayload()
}

// Compute is generic work expected to take roughly EstimatedDuration.
type Compute struct {
	Name              string
	EstimatedDuration time.Duration
}

// IndexFile indexes one file into the semantic file system.
type IndexFile struct {
	Path string
}

// Search runs a query over the search root and returns at most Limit matches.
type Search struct {
	Query string
	Limit int
}

// Optimize runs one self-optimization cycle against Target.
type Optimize struct {
	Target OptimizationTarget
}

// Maintenance is background housekeeping.
type Maintenance struct {
	Type MaintenanceType
}

func (Compute) Kind() PayloadKind     { return ComputeKind }
func (IndexFile) Kind() PayloadKind   { return IndexFileKind }
func (Search) Kind() PayloadKind      { return SearchKind }
func (Optimize) Kind() PayloadKind    { return OptimizeKind }
func (Maintenance) Kind() PayloadKind { return MaintenanceKind }

func (Compute) isPayload()     {}
func (IndexFile) isPayload()   {}
func (Search) isPayload()      {}
func (Optimize) isPayload()    {}
func (Maintenance) isPayload() {}

func (c Compute) Label() string     { return fmt.Sprintf("compute(%s)", c.Name) }
func (f IndexFile) Label() string   { return fmt.Sprintf("index_file(%s)", f.Path) }
func (s Search) Label() string      { return fmt.Sprintf("search(%q, %d)", s.Query, s.Limit) }
func (o Optimize) Label() string    { return fmt.Sprintf("optimize(%s)", o.Target) }
func (m Maintenance) Label() string { return fmt.Sprintf("maintenance(%s)", m.Type) }

// TargetKind selects what an Optimize payload works on.
type TargetKind string

const (
	FunctionTarget TargetKind = "function"
	ModuleTarget   TargetKind = "module"
	SystemTarget   TargetKind = "system"
)

// OptimizationTarget is a function (name plus machine code), a module on disk,
// or the whole system.
type OptimizationTarget struct {
	Kind   TargetKind
	Name   string
	Binary []byte
	Path   string
}

func FunctionOptimization(name string, binary []byte) OptimizationTarget {
	return OptimizationTarget{Kind: FunctionTarget, Name: name, Binary: binary}
}

func ModuleOptimization(path string) OptimizationTarget {
	return OptimizationTarget{Kind: ModuleTarget, Path: path}
}

func SystemOptimization() OptimizationTarget {
	return OptimizationTarget{Kind: SystemTarget}
}

func (t OptimizationTarget) String() string {
	switch t.Kind {
	case FunctionTarget:
		return fmt.Sprintf("function %s (%d bytes)", t.Name, len(t.Binary))
	case ModuleTarget:
		return fmt.Sprintf("module %s", t.Path)
	case SystemTarget:
		return "system"
	}
	return string(t.Kind)
}

// MaintenanceType is the kind of housekeeping a Maintenance payload does.
type MaintenanceType string

const (
	GarbageCollection MaintenanceType = "garbage_collection"
	IndexRebuild      MaintenanceType = "index_rebuild"
	CacheFlush        MaintenanceType = "cache_flush"
	MetricsExport     MaintenanceType = "metrics_export"
)

func (m MaintenanceType) Valid() bool {
	switch m {
	case GarbageCollection, IndexRebuild, CacheFlush, MetricsExport:
		return true
	}
	return false
}

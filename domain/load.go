package domain

import (
	"time"
)

// SystemMetrics is one sample of host and scheduler load.
type SystemMetrics struct {
	TotalTasks    uint64        `json:"total_tasks"`
	ActiveTasks   uint64        `json:"active_tasks"`
	PendingTasks  uint64        `json:"pending_tasks"`
	AvgLatencyMs  float64       `json:"avg_latency_ms"`
	CPUUsage      float64       `json:"cpu_usage"`
	MemoryMB      float64       `json:"memory_mb"`
	MemoryPercent float64       `json:"memory_percent"`
	GPUUsage      *float64      `json:"gpu_usage,omitempty"`
	IdleDuration  time.Duration `json:"idle_duration"`
}

// WorkerStatus is a point-in-time view of one worker.
type WorkerStatus struct {
	ID             WorkerID      `json:"id"`
	Type           WorkerType    `json:"type"`
	CurrentTask    *TaskID       `json:"current_task,omitempty"`
	TasksCompleted uint64        `json:"tasks_completed"`
	TotalWorkTime  time.Duration `json:"total_work_time"`
	// 0 is idle, 1 is saturated.
	LoadFactor float64 `json:"load_factor"`
}

// SystemLoad is a snapshot of the whole system.
type SystemLoad struct {
	Timestamp  time.Time      `json:"timestamp"`
	Metrics    SystemMetrics  `json:"metrics"`
	Workers    []WorkerStatus `json:"workers"`
	Bottleneck *Bottleneck    `json:"bottleneck,omitempty"`
}

// Bottleneck is a diagnosis of what limits throughput.
type Bottleneck string

const (
	CPUSaturated      Bottleneck = "cpu_saturated"
	MemoryPressure    Bottleneck = "memory_pressure"
	GPUStarved        Bottleneck = "gpu_starved"
	IOWait            Bottleneck = "io_wait"
	TaskQueueOverflow Bottleneck = "task_queue_overflow"
)

// OrchestratorStatistics are the orchestrator's counters. They are read
// independently, so PendingTasks may be briefly inconsistent with the others.
type OrchestratorStatistics struct {
	TotalTasks     uint64 `json:"total_tasks"`
	CompletedTasks uint64 `json:"completed_tasks"`
	FailedTasks    uint64 `json:"failed_tasks"`
	StolenTasks    uint64 `json:"stolen_tasks"`
	PendingTasks   uint64 `json:"pending_tasks"`
	WorkerCount    int    `json:"worker_count"`
}

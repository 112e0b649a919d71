package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	submittedDesc = prometheus.NewDesc("conductor_tasks_submitted_total",
		"Tasks accepted by Submit.", nil, nil)
	completedDesc = prometheus.NewDesc("conductor_tasks_completed_total",
		"Tasks that reached Completed.", nil, nil)
	failedDesc = prometheus.NewDesc("conductor_tasks_failed_total",
		"Tasks that reached Failed.", nil, nil)
	stolenDesc = prometheus.NewDesc("conductor_tasks_stolen_total",
		"Tasks taken from another worker's local queue.", nil, nil)
	pendingDesc = prometheus.NewDesc("conductor_tasks_pending",
		"Approximate number of unfinished tasks.", nil, nil)
	injectorDesc = prometheus.NewDesc("conductor_injector_length",
		"Tasks waiting in the global injector.", nil, nil)
	workerTasksDesc = prometheus.NewDesc("conductor_worker_tasks_total",
		"Tasks finished by a worker, completed or failed.", []string{"worker"}, nil)
	workerBusyDesc = prometheus.NewDesc("conductor_worker_busy_seconds_total",
		"Time a worker spent inside handlers.", []string{"worker"}, nil)
	workerActiveDesc = prometheus.NewDesc("conductor_worker_active",
		"1 while a worker is running a task.", []string{"worker"}, nil)
)

type collector struct {
	o *Orchestrator
}

// Collector exports the orchestrator counters and per-worker state to Prometheus.
func (o *Orchestrator) Collector() prometheus.Collector {
	return collector{o}
}

func (c collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		submittedDesc, completedDesc, failedDesc, stolenDesc, pendingDesc,
		injectorDesc, workerTasksDesc, workerBusyDesc, workerActiveDesc,
	} {
		ch <- d
	}
}

func (c collector) Collect(ch chan<- prometheus.Metric) {
	st := c.o.Stats()
	ch <- prometheus.MustNewConstMetric(submittedDesc, prometheus.CounterValue, float64(st.TotalTasks))
	ch <- prometheus.MustNewConstMetric(completedDesc, prometheus.CounterValue, float64(st.CompletedTasks))
	ch <- prometheus.MustNewConstMetric(failedDesc, prometheus.CounterValue, float64(st.FailedTasks))
	ch <- prometheus.MustNewConstMetric(stolenDesc, prometheus.CounterValue, float64(st.StolenTasks))
	ch <- prometheus.MustNewConstMetric(pendingDesc, prometheus.GaugeValue, float64(st.PendingTasks))
	ch <- prometheus.MustNewConstMetric(injectorDesc, prometheus.GaugeValue, float64(c.o.injector.Len()))
	for _, w := range c.o.workers {
		ws := w.status()
		label := ws.ID.String()
		ch <- prometheus.MustNewConstMetric(workerTasksDesc, prometheus.CounterValue, float64(ws.TasksCompleted), label)
		ch <- prometheus.MustNewConstMetric(workerBusyDesc, prometheus.CounterValue, ws.TotalWorkTime.Seconds(), label)
		ch <- prometheus.MustNewConstMetric(workerActiveDesc, prometheus.GaugeValue, ws.LoadFactor, label)
	}
}

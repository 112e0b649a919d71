package stats

/*
This file defines all the metrics being collected. As new metrics are added please follow this pattern.
*/

const (
	/************************* Orchestrator metrics **************************/
	/*
		number of tasks accepted by Submit
	*/
	OrchSubmittedCounter = "submittedCounter"

	/*
		number of submissions refused because the approximate pending count reached the max queue size
	*/
	OrchCapacityRejectedCounter = "capacityRejectedCounter"

	/*
		number of tasks that reached Completed
	*/
	OrchCompletedCounter = "completedCounter"

	/*
		number of tasks that reached Failed (handler errors, panics and timeouts)
	*/
	OrchFailedCounter = "failedCounter"

	/*
		number of handler panics recovered by a worker
	*/
	OrchHandlerPanicCounter = "handlerPanicCounter"

	/*
		number of tasks abandoned after the task timeout
	*/
	OrchTaskTimeoutCounter = "taskTimeoutCounter"

	/*
		number of successful steals from another worker's local queue
	*/
	OrchStolenCounter = "stolenCounter"

	/*
		number of Retry results seen while stealing
	*/
	OrchStealRetryCounter = "stealRetryCounter"

	/*
		approximate pending tasks, sampled on every submission
	*/
	OrchPendingGauge = "pendingGauge"

	/*
		number of worker goroutines currently running a loop
	*/
	OrchRunningWorkersGauge = "runningWorkersGauge"

	/*
		handler execution time, per task
	*/
	OrchTaskLatency_ms = "taskLatency_ms"

	/*
		time between submission and the start of execution
	*/
	OrchQueueLatency_ms = "queueLatency_ms"

	/************************* Handler metrics **************************/
	/*
		number of jobs run on the blocking pool
	*/
	HandlerBlockingJobCounter = "blockingJobCounter"

	/*
		number of optimization cycles run by the optimizer gate
	*/
	HandlerOptimizeCycleCounter = "optimizeCycleCounter"

	/*
		number of optimization requests refused because self-optimization is disabled
	*/
	HandlerOptimizeDisabledCounter = "optimizeDisabledCounter"

	/************************* Monitor metrics **************************/
	/*
		number of tasks whose duration exceeded the latency threshold
	*/
	MonitorLatencyViolationCounter = "latencyViolationCounter"

	/*
		host cpu usage percent at the last sample
	*/
	MonitorCPUPercentGauge = "cpuPercentGauge"

	/*
		used host memory in MB at the last sample
	*/
	MonitorMemoryMBGauge = "memoryMBGauge"

	/*
		seconds since the last user activity
	*/
	MonitorIdleSecondsGauge = "idleSecondsGauge"

	/************************* Conductor metrics **************************/
	/*
		number of dream cycles that submitted optimization tasks
	*/
	ConductorDreamCycleCounter = "dreamCycleCounter"

	/*
		number of optimization tasks the dream loop failed to submit
	*/
	ConductorDreamSubmitErrCounter = "dreamSubmitErrCounter"

	/************************* API metrics **************************/
	/*
		number of task submission requests
	*/
	APISubmitRequestCounter = "submitRequestCounter"

	/*
		number of submission requests refused by the rate limiter
	*/
	APIRateLimitedCounter = "rateLimitedCounter"

	/*
		latency of the submit handler
	*/
	APISubmitLatency_ms = "submitLatency_ms"
)

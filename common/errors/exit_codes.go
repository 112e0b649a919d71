package errors

type ExitCode int

const (
	GenericFailureExitCode ExitCode = 1

	UsageExitCode ExitCode = 2

	ConfigFailureExitCode ExitCode = 70

	// Client side
	ConnectFailureExitCode ExitCode = 80
	NotFoundExitCode       ExitCode = 81
	CapacityExitCode       ExitCode = 82

	// Server side
	ServeFailureExitCode ExitCode = 90
	WorkerPanicExitCode  ExitCode = 91
	BenchTimeoutExitCode ExitCode = 100
)

package executor

// Headers the editor puts above a run's output.
const (
	ResultHeader = "=== Execution Result ===\n"
	ErrorHeader  = "=== Error ===\n"
	// RunningText is shown while a run is in flight.
	RunningText = "Compiling and running...\n"
)

// Present renders a result the way the editor's output pane shows it.
func Present(res ExecutionResult) string {
	if res.Success {
		return ResultHeader + res.Output
	}
	return ErrorHeader + res.Output
}

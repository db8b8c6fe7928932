package schema

// Activity feed streams.
const (
	// StreamDecisions carries one event per relevant stream event or
	// scheduled trigger that started an action loop run.
	StreamDecisions = "decisions"
	// StreamSteps carries one event per action loop step.
	StreamSteps = "steps"
	// StreamErrors carries contained faults (decider, transport, lookups).
	StreamErrors = "errors"
	// StreamSchedule carries scheduled task runs.
	StreamSchedule = "schedule"
)

var ActivityStreams = []string{
	StreamDecisions,
	StreamSteps,
	StreamErrors,
	StreamSchedule,
}

// StreamOrdering returns "fifo" or "lifo" for a given stream. Steps read
// naturally in execution order; everything else newest first.
func StreamOrdering(stream string) string {
	if stream == StreamSteps {
		return "fifo"
	}
	return "lifo"
}

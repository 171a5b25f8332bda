package cache

// State is the connectivity state of the durable tier.
type State int

const (
	// StateConnecting means a handshake is pending or being retried.
	StateConnecting State = iota
	// StateAvailable means the durable tier is attempted on every operation.
	StateAvailable
	// StateDisabled means the failure threshold was reached; only an operator
	// re-enable leaves this state.
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAvailable:
		return "available"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// AvailabilityState is a snapshot of the availability monitor.
type AvailabilityState struct {
	State               State  `json:"-"`
	StateName           string `json:"state"`
	IsAvailable         bool   `json:"is_available"`
	Disabled            bool   `json:"disabled"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	FailureThreshold    int    `json:"failure_threshold"`
	// Disablements counts transitions into StateDisabled over the process lifetime.
	Disablements int `json:"disablements"`
}

// DurableStats describes the durable tier.
type DurableStats struct {
	AvailabilityState
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
	// Keys is the number of keys in the durable store, -1 when it could not be read.
	Keys int64 `json:"keys"`
}

// LocalStats describes the in-process tier.
type LocalStats struct {
	EntryCount int    `json:"entry_count"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
}

// Stats is returned by the cache facade for health and diagnostics endpoints.
type Stats struct {
	Durable DurableStats `json:"durable"`
	Local   LocalStats   `json:"local"`
}

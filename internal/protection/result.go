package protection

// Guard evaluation priorities. Lower number = more authoritative: evaluated
// first, and its reason wins when multiple guards block.
const (
	PriorityCoreAssetImmunity = 1
	PriorityGracePeriod       = 3
	PriorityHoldingPeriod     = 4
	PriorityWhipsaw           = 5
)

// Result is a single guard's verdict on a request. Immutable once produced;
// every result is kept in the decision hierarchy regardless of outcome.
type Result struct {
	SystemName   string                 `json:"system_name"`
	BlocksAction bool                   `json:"blocks_action"`
	Reason       string                 `json:"reason"`
	Priority     int                    `json:"priority"`
	CheckTimeMs  float64                `json:"check_time_ms"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Guard is one protection system in the evaluation pipeline. Evaluate must
// be pure: reads guard state, never mutates it. State mutation happens via
// each guard's explicit record methods after the caller executes an
// approved action.
type Guard interface {
	Name() string
	Priority() int
	Evaluate(req *Request) Result
}

package batch

// Phase is the driver's position in the run.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseConfigLoaded
	PhaseAccountsLoaded
	PhaseSelectParams
	PhaseRequestOrder
	PhaseSubmit
	PhaseDelay
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseConfigLoaded:
		return "config_loaded"
	case PhaseAccountsLoaded:
		return "accounts_loaded"
	case PhaseSelectParams:
		return "select_params"
	case PhaseRequestOrder:
		return "request_order"
	case PhaseSubmit:
		return "submit"
	case PhaseDelay:
		return "delay"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

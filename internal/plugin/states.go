package plugin

// State is one step of the plugin lifecycle state machine:
//
//	Discovered --load--> Loaded --activate--> Active
//	                      ^  |                  |
//	                      |  +-----deactivate---+
//	                      +----uninstall----> Uninstalled (terminal)
type State string

const (
	StateDiscovered  State = "discovered"
	StateLoaded      State = "loaded"
	StateActive      State = "active"
	StateUninstalled State = "uninstalled"
)

// transitions maps each state to the states it may advance to.
var transitions = map[State][]State{
	StateDiscovered:  {StateLoaded},
	StateLoaded:      {StateActive, StateUninstalled},
	StateActive:      {StateLoaded},
	StateUninstalled: {},
}

// CanTransition reports whether from may advance directly to to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

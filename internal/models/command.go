package models

// Known command names understood by the analysis server.
const (
	CommandListModes  = "list_modes"
	CommandRestart    = "restart"
	CommandChangeMode = "change_mode"
)

// Command is an operator/device request sent to the analysis server.
type Command struct {
	Name string
	Args map[string]string
}

// ServerMessage is a decoded inbound payload.
// HasModes is false for every shape the relay does not recognize.
type ServerMessage struct {
	HasModes bool
	Modes    []string
}

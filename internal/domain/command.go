package domain

// Command is an operator command as typed in a dashboard. The relay treats it as opaque text.
type Command string

// Command kinds understood by the flight computer. Listed for collaborators; the relay does not enforce them.
const (
	CommandAbort  Command = "ABORT"
	CommandArm    Command = "ARM"
	CommandPing   Command = "PING"
	CommandLaunch Command = "LAUNCH"
)

// Known reports whether c is one of the command kinds the flight computer understands.
func (c Command) Known() bool {
	switch c {
	case CommandAbort, CommandArm, CommandPing, CommandLaunch:
		return true
	default:
		return false
	}
}

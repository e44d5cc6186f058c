package sim

// SendError marks a failed send or receive. In the hardware being modeled it
// corresponds to a ready signal being low in the cycle a transfer was
// attempted.
type SendError struct{}

// NewSendError creates a SendError.
func NewSendError() *SendError {
	return new(SendError)
}

// A Connection is responsible for delivering messages to their destinations.
type Connection interface {
	Named
	Hookable

	PlugIn(port Port)
	Unplug(port Port)
	NotifyAvailable(port Port)
	NotifySend()
}

// HookPosConnDeliver marks a connection delivered a message.
var HookPosConnDeliver = &HookPos{Name: "Conn Deliver"}

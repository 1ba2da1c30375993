package bus

import "errors"

// ErrTimeoutWaitingForRunner is returned when a publisher's deadline
// elapses before a reply arrives. The front service completes the
// MessageRequest with this outcome without canceling the runner's
// in-flight work; the eventual reply, if any, is discarded as an orphan.
var ErrTimeoutWaitingForRunner = errors.New("bus: timeout waiting for runner")

package domain

// Device is a network client known to (or synthesized for) the inventory.
type Device struct {
	Name  string `json:"name" db:"name"`
	MAC   string `json:"mac" db:"mac"`
	Type  string `json:"type" db:"type"`
	Owner string `json:"owner" db:"owner"`
}

// Placeholder values for devices targeted by MAC but absent from the
// inventory. Locking an unregistered client is still possible.
const (
	UnregisteredOwner = "unregistered"
	UnknownDeviceType = "unknown"
)

// ActionStatus classifies the per-device outcome of a gateway call.
type ActionStatus string

const (
	ActionStatusSuccess ActionStatus = "success"
	ActionStatusSkipped ActionStatus = "skipped"
	ActionStatusError   ActionStatus = "error"
)

// ActionResult is the per-device result of a lock/unlock request.
type ActionResult struct {
	MAC     string       `json:"mac"`
	Locked  bool         `json:"locked"`
	Status  ActionStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

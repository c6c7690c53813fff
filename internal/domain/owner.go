package domain

// Owner is an account that devices and schedules can belong to.
type Owner struct {
	Key         string `json:"key" db:"key"`
	DisplayName string `json:"displayName" db:"display_name"`
}

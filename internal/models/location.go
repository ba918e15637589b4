package models

// Location is a monitored city. ID is the weather source's location identifier.
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	VIP  bool   `json:"isVip"`
	Tag  string `json:"tagId,omitempty"`
}

// NotificationEligible reports whether alerts for this location may be pushed.
func (l Location) NotificationEligible() bool {
	return l.VIP && l.Tag != ""
}

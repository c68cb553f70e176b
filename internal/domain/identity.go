package domain

import "time"

// Identity is the host's observed public network identity. It is replaced
// wholesale on each successful resolution.
type Identity struct {
	Address     string `json:"address"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	City        string `json:"city,omitempty"`
	ISP         string `json:"isp,omitempty"`
}

// ChangeType classifies an identity transition. When several fields change in
// one comparison only the highest-priority type is reported:
// Country > Ip > Isp.
type ChangeType string

const (
	ChangeInitial ChangeType = "initial"
	ChangeIP      ChangeType = "ip_changed"
	ChangeCountry ChangeType = "country_changed"
	ChangeISP     ChangeType = "isp_changed"
)

// IdentityChange describes one transition between two resolved identities.
// Previous is nil only for the Initial event.
type IdentityChange struct {
	Type       ChangeType `json:"change_type"`
	Previous   *Identity  `json:"previous,omitempty"`
	Current    Identity   `json:"current"`
	Timestamp  time.Time  `json:"timestamp"`
	IsExpected bool       `json:"is_expected"`
}

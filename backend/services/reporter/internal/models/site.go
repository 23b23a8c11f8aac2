package models

// VendorType selects the backend a site's chargers are read from.
type VendorType string

// Supported vendors.
const (
	VendorWallbox VendorType = "wallbox"
	VendorEasee   VendorType = "easee"
)

// Site is one charger installation with its vendor account.
type Site struct {
	ID       string     `yaml:"-" json:"id"`
	Name     string     `yaml:"name" json:"name"`
	Type     VendorType `yaml:"type" json:"type"`
	Login    string     `yaml:"login" json:"-"`
	Password string     `yaml:"password" json:"-"`
}

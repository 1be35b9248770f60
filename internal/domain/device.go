package domain

// Device is a statically configured endpoint to monitor
type Device struct {
	Name         string `yaml:"name,omitempty" mapstructure:"name" json:"name,omitempty"`
	IP           string `yaml:"ip" mapstructure:"ip" json:"ip"`
	Enabled      *bool  `yaml:"enabled,omitempty" mapstructure:"enabled" json:"enabled,omitempty"`
	ExtendedInfo bool   `yaml:"extended_info,omitempty" mapstructure:"extended_info" json:"extended_info,omitempty"`
}

// IsEnabled treats a missing flag as enabled
func (d Device) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// HostInterface is a network interface reported by the host inventory
type HostInterface struct {
	Name     string `json:"name"`
	IP       string `json:"ip"`
	Netmask  string `json:"netmask"`
	Family   string `json:"family"`
	Internal bool   `json:"internal"`
}

// IsIPv4 reports whether the interface carries an IPv4 address
func (i HostInterface) IsIPv4() bool {
	return i.Family == "IPv4"
}

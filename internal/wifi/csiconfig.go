package wifi

import "fmt"

const (
	ScaleShiftMax = 15

	// ChannelFilterOff delivers CSI for every received frame;
	// ChannelFilterPrimary restricts delivery to the primary channel.
	ChannelFilterOff     ChannelFilter = "off"
	ChannelFilterPrimary ChannelFilter = "primary"
)

var validChannelFilters = map[ChannelFilter]struct{}{
	ChannelFilterOff:     {},
	ChannelFilterPrimary: {},
}

type ChannelFilter string

func (f ChannelFilter) String() string {
	return string(f)
}

// CSIConfig selects which training fields the radio reports CSI for and
// how raw samples are scaled before delivery.
type CSIConfig struct {
	// Training-field toggles. At least one must be enabled.
	LLTF      bool `yaml:"lltf" json:"lltf"`           // legacy long training field
	HTLTF     bool `yaml:"htltf" json:"htltf"`         // HT long training field
	STBCHTLTF bool `yaml:"stbcHtltf" json:"stbcHtltf"` // space-time block code HT-LTF

	ChannelFilter ChannelFilter `yaml:"channelFilter" json:"channelFilter"`

	// ManualScale switches from automatic to manual scaling with the
	// given right-shift amount (0..15).
	ManualScale bool  `yaml:"manualScale" json:"manualScale"`
	ScaleShift  uint8 `yaml:"scaleShift" json:"scaleShift"`
}

// DefaultCSIConfig reports CSI for all training fields with automatic
// scaling, matching the radio's own defaults.
func DefaultCSIConfig() *CSIConfig {
	return &CSIConfig{
		LLTF:          true,
		HTLTF:         true,
		STBCHTLTF:     true,
		ChannelFilter: ChannelFilterOff,
	}
}

func (c *CSIConfig) Validate() error {
	if !c.LLTF && !c.HTLTF && !c.STBCHTLTF {
		return fmt.Errorf("wifi.CSIConfig: at least one training field must be enabled")
	}
	if c.ChannelFilter != "" {
		if _, ok := validChannelFilters[c.ChannelFilter]; !ok {
			return fmt.Errorf("wifi.CSIConfig: invalid channel filter: %s", c.ChannelFilter)
		}
	}
	if c.ManualScale && c.ScaleShift > ScaleShiftMax {
		return fmt.Errorf("wifi.CSIConfig: scale shift must be between 0 and %d: %d given", ScaleShiftMax, c.ScaleShift)
	}
	if !c.ManualScale && c.ScaleShift != 0 {
		return fmt.Errorf("wifi.CSIConfig: scale shift requires manual scaling")
	}
	return nil
}

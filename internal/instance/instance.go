// Package instance persists per-widget-instance configuration.
package instance

import (
	"strconv"
	"strings"
)

// ID identifies one placed widget instance. It is stable for the lifetime
// of the placement.
type ID int

func (id ID) String() string {
	return strconv.Itoa(int(id))
}

// ParseID parses the decimal form produced by ID.String.
func ParseID(s string) (ID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return ID(n), nil
}

// Preference values. They are stored as open strings so that values written
// by newer or foreign versions never break reading.
const (
	// GroupAppDefault means "use the application's last saved group".
	GroupAppDefault = "last"

	DayToday    = "today"
	DayTomorrow = "tomorrow"

	ThemeSystem = "system"
	ThemeDay    = "day"
	ThemeNight  = "night"
)

// Config is the persisted configuration of one widget instance.
type Config struct {
	Group        string `yaml:"group" json:"group"`
	Day          string `yaml:"day" json:"day"`
	Customized   bool   `yaml:"is_edited" json:"is_edited"`
	Theme        string `yaml:"theme" json:"theme"`
	DynamicColor bool   `yaml:"dynamic_colors" json:"dynamic_colors"`
}

// DefaultConfig is what Get returns for an instance that has no record.
func DefaultConfig() Config {
	return Config{
		Group: GroupAppDefault,
		Day:   DayToday,
		Theme: ThemeSystem,
	}
}

// fillDefaults replaces empty string fields with defaults. Unknown values
// are kept as-is; consumers map them to safe defaults at their switch sites.
func (c Config) fillDefaults() Config {
	def := DefaultConfig()
	if c.Group == "" {
		c.Group = def.Group
	}
	if c.Day == "" {
		c.Day = def.Day
	}
	if c.Theme == "" {
		c.Theme = def.Theme
	}
	return c
}

// Store is the instance config persistence contract.
type Store interface {
	// Get returns the config for id, or DefaultConfig if none exists.
	Get(id ID) (Config, error)
	// Put replaces the config for id.
	Put(id ID, cfg Config) error
	// Delete removes the config for id. Deleting an unknown id is a no-op.
	Delete(id ID) error
	// IDs lists instances that have a record, in ascending order.
	IDs() ([]ID, error)
}

package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// Policy file names inside the policy directory.
const (
	profilesFile = "profiles.json"
	zonesFile    = "zones.json"
	fansFile     = "fans.json"
	groupsFile   = "groups.json"
	eventsFile   = "events.json"
)

// Loader reads the declarative policy files. The files are JSON with
// comments allowed; each holds an array of entries. profiles.json, groups.json
// and events.json are optional — their absence means an empty set.
type Loader struct {
	dir string
	log Logger
}

// NewLoader creates a loader rooted at the policy directory.
func NewLoader(dir string, logger Logger) *Loader {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Loader{dir: dir, log: logger}
}

// read parses one policy file into v. Returns false when an optional file is
// absent; a missing required file or a parse failure is a load error.
func (l *Loader) read(name string, v any, optional bool) (bool, error) {
	path := filepath.Join(l.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			l.log.Debug("optional policy file absent", "file", name)
			return false, nil
		}
		return false, fmt.Errorf("%w: %s: %w", ErrPolicyFile, name, err)
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), v); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrPolicyFile, name, err)
	}
	return true, nil
}

// Profiles loads profile definitions. The file is optional.
func (l *Loader) Profiles() ([]profileConfig, error) {
	var cfgs []profileConfig
	if _, err := l.read(profilesFile, &cfgs, true); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// Zones loads zone definitions. The file is required.
func (l *Loader) Zones() ([]zoneConfig, error) {
	var cfgs []zoneConfig
	if _, err := l.read(zonesFile, &cfgs, false); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// Fans loads fan definitions. The file is required.
func (l *Loader) Fans() ([]fanConfig, error) {
	var cfgs []fanConfig
	if _, err := l.read(fansFile, &cfgs, false); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// Groups loads group definitions. The file is optional.
func (l *Loader) Groups() ([]groupConfig, error) {
	var cfgs []groupConfig
	if _, err := l.read(groupsFile, &cfgs, true); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// Events loads event definitions. The file is optional.
func (l *Loader) Events() ([]eventConfig, error) {
	var cfgs []eventConfig
	if _, err := l.read(eventsFile, &cfgs, true); err != nil {
		return nil, err
	}
	return cfgs, nil
}

// profileConfig is one profiles.json entry. A profile is either statically
// active or activated by a cached property matching a value.
type profileConfig struct {
	Name     string   `json:"name"`
	Profiles []string `json:"profiles"`
	Active   bool     `json:"active"`

	Path      string `json:"path"`
	Interface string `json:"interface"`
	Property  string `json:"property"`
	Value     any    `json:"value"`
}

// zoneConfig is one zones.json entry. Pointer fields are required; their
// absence is detectable and fatal at load.
type zoneConfig struct {
	Name                string      `json:"name"`
	Profiles            []string    `json:"profiles"`
	PowerOnTarget       *uint64     `json:"poweron_target"`
	DefaultFloor        *uint64     `json:"default_floor"`
	DecreaseIntervalSec *float64    `json:"decrease_interval"`
	DefaultTarget       uint64      `json:"default_target"`
	Modes               *modeConfig `json:"modes"`
}

// modeConfig declares a zone's thermal-mode surface.
type modeConfig struct {
	Supported []string `json:"supported"`
	Current   string   `json:"current"`
	Persist   bool     `json:"persist"`
}

// fanConfig is one fans.json entry. name, zone and sensors are required.
type fanConfig struct {
	Name            string   `json:"name"`
	Profiles        []string `json:"profiles"`
	Zone            string   `json:"zone"`
	Sensors         []string `json:"sensors"`
	Path            string   `json:"path"`
	TargetInterface string   `json:"target_interface"`
	TargetProperty  string   `json:"target_property"`
}

// groupConfig is one groups.json entry: a named set of object paths.
type groupConfig struct {
	Name     string   `json:"name"`
	Profiles []string `json:"profiles"`
	Members  []string `json:"members"`
}

// eventConfig is one events.json entry.
type eventConfig struct {
	Name     string          `json:"name"`
	Profiles []string        `json:"profiles"`
	Groups   []eventGroupRef `json:"groups"`
	Triggers []triggerConfig `json:"triggers"`
	Actions  []actionConfig  `json:"actions"`
}

// eventGroupRef names a group definition and supplies the interface and
// property the event monitors on its members.
type eventGroupRef struct {
	Name      string   `json:"name"`
	Profiles  []string `json:"profiles"`
	Service   string   `json:"service"`
	Interface string   `json:"interface"`
	Property  string   `json:"property"`
}

// triggerConfig is one trigger entry: class "timer", "signal", "poweron" or
// "poweroff", with class-specific fields.
type triggerConfig struct {
	Class string `json:"class"`

	// timer
	Type        string   `json:"type"`
	IntervalSec *float64 `json:"interval"`
	Refresh     *bool    `json:"refresh"`

	// signal
	Signal    string `json:"signal"`
	Path      string `json:"path"`
	Service   string `json:"service"`
	Interface string `json:"interface"`
	Property  string `json:"property"`
}

// actionConfig is one action entry: the action kind plus its arguments.
type actionConfig struct {
	Name      string  `json:"name"`
	Zone      string  `json:"zone"`
	Target    *uint64 `json:"target"`
	Floor     *uint64 `json:"floor"`
	Parameter string  `json:"parameter"`
	Value     any     `json:"value"`
}

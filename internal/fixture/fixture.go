// Package fixture provides an in-memory device backed by a YAML snapshot.
package fixture

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
)

// Package is the recorded state of one installed package.
type Package struct {
	Enabled bool `yaml:"enabled"`
}

// Snapshot is the on-disk form of a device.
type Snapshot struct {
	Properties map[string]string  `yaml:"properties"`
	Packages   map[string]Package `yaml:"packages"`
}

// Device serves properties and package state from a Snapshot.
// Absent packages read as core.ErrPackageNotFound, and lookups listed in
// Failures return the given error instead.
type Device struct {
	mu       sync.Mutex
	snap     Snapshot
	failures map[string]error
	writes   []Write
}

// Write records one SetApplicationEnabledSetting call.
type Write struct {
	Package string
	State   core.EnabledState
}

// New returns a Device over a copy of snap.
func New(snap Snapshot) *Device {
	d := &Device{
		snap: Snapshot{
			Properties: make(map[string]string, len(snap.Properties)),
			Packages:   make(map[string]Package, len(snap.Packages)),
		},
		failures: make(map[string]error),
	}
	for k, v := range snap.Properties {
		d.snap.Properties[k] = v
	}
	for k, v := range snap.Packages {
		d.snap.Packages[k] = v
	}
	return d
}

// Load reads a snapshot file.
func Load(path string) (*Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return New(snap), nil
}

// Save writes the current state back to path.
func (d *Device) Save(path string) error {
	d.mu.Lock()
	data, err := yaml.Marshal(d.snap)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshaling fixture: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	return nil
}

// FailLookup makes GetPackageInfo for name return err. A nil err clears it.
func (d *Device) FailLookup(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, name)
		return
	}
	d.failures[name] = err
}

func (d *Device) Get(_ context.Context, key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap.Properties[key], nil
}

func (d *Device) GetPackageInfo(_ context.Context, name string) (core.PackageInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.failures[name]; ok {
		return core.PackageInfo{}, err
	}
	p, ok := d.snap.Packages[name]
	if !ok {
		return core.PackageInfo{}, fmt.Errorf("%s: %w", name, core.ErrPackageNotFound)
	}
	return core.PackageInfo{Name: name, Enabled: p.Enabled}, nil
}

// SetApplicationEnabledSetting mirrors the platform call. StateDefault
// restores the manifest default, which for a fixture is enabled.
func (d *Device) SetApplicationEnabledSetting(_ context.Context, name string, state core.EnabledState, _ int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.failures[name]; ok {
		return err
	}
	if _, ok := d.snap.Packages[name]; !ok {
		return fmt.Errorf("%s: %w", name, core.ErrPackageNotFound)
	}

	switch state {
	case core.StateEnabled, core.StateDefault:
		d.snap.Packages[name] = Package{Enabled: true}
	case core.StateDisabled:
		d.snap.Packages[name] = Package{Enabled: false}
	default:
		return fmt.Errorf("%s: %w: %d", name, core.ErrInvalidState, state)
	}
	d.writes = append(d.writes, Write{Package: name, State: state})
	return nil
}

// Writes returns every successful state write in call order.
func (d *Device) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Write(nil), d.writes...)
}

var (
	_ core.PropertyStore   = (*Device)(nil)
	_ core.PackageRegistry = (*Device)(nil)
)

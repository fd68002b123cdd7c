// Package constitution loads the kernel's closed transformation-type
// registry, AAV bit assignments, instruction budget, and initial authority
// seed from a YAML constitution file. The constitution is consumed exactly
// once, at kernel construction; nothing in it changes at runtime.
package constitution

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/macterra/Axio-sub003/pkg/kernel"
)

// File is the YAML shape of a constitution document.
type File struct {
	Transformations []TransformationDef `yaml:"transformations"`
	Governance      GovernanceDef       `yaml:"governance"`

	InstructionBudget int64    `yaml:"instruction_budget"`
	Costs             CostsDef `yaml:"costs"`

	Authorities []SeedAuthority `yaml:"authorities"`
}

// TransformationDef assigns one named transformation type to an AAV bit.
type TransformationDef struct {
	Name string `yaml:"name"`
	Bit  uint8  `yaml:"bit"`
}

// GovernanceDef names the transformations that admit governance actions.
type GovernanceDef struct {
	Create  string `yaml:"create"`
	Destroy string `yaml:"destroy"`
}

// CostsDef overrides per-operation instruction costs. Zero fields keep the
// kernel defaults.
type CostsDef struct {
	Injection     int64 `yaml:"injection"`
	Renewal       int64 `yaml:"renewal"`
	Governance    int64 `yaml:"governance"`
	ActionRequest int64 `yaml:"action_request"`
}

// SeedAuthority is one initial authority grant, with transformations given
// by name rather than raw bits.
type SeedAuthority struct {
	AuthorityID     string   `yaml:"authority_id"`
	HolderID        string   `yaml:"holder_id"`
	ResourceScope   string   `yaml:"resource_scope"`
	Status          string   `yaml:"status"` // empty means ACTIVE
	Transformations []string `yaml:"transformations"`
	StartEpoch      uint64   `yaml:"start_epoch"`
	ExpiryEpoch     uint64   `yaml:"expiry_epoch"`
}

// Constitution is a validated constitution: resolved bit assignments plus
// the derived kernel configuration.
type Constitution struct {
	bits  map[string]kernel.Transformation
	names map[kernel.Transformation]string
	file  File
}

// Load reads and validates a constitution file from disk.
func Load(path string) (*Constitution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read constitution: %w", err)
	}
	return Parse(data)
}

// Parse validates a constitution document.
func Parse(data []byte) (*Constitution, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse constitution: %w", err)
	}

	if len(f.Transformations) == 0 {
		return nil, fmt.Errorf("constitution defines no transformation types")
	}

	c := &Constitution{
		bits:  make(map[string]kernel.Transformation, len(f.Transformations)),
		names: make(map[kernel.Transformation]string, len(f.Transformations)),
		file:  f,
	}
	for _, def := range f.Transformations {
		if def.Name == "" {
			return nil, fmt.Errorf("transformation with empty name")
		}
		t := kernel.Transformation(def.Bit)
		if t > kernel.MaxTransformation {
			return nil, fmt.Errorf("transformation %s: bit %d is in the reserved range", def.Name, def.Bit)
		}
		if _, dup := c.bits[def.Name]; dup {
			return nil, fmt.Errorf("transformation %s defined twice", def.Name)
		}
		if prior, dup := c.names[t]; dup {
			return nil, fmt.Errorf("bit %d assigned to both %s and %s", def.Bit, prior, def.Name)
		}
		c.bits[def.Name] = t
		c.names[t] = def.Name
	}

	if f.Governance.Create == "" || f.Governance.Destroy == "" {
		return nil, fmt.Errorf("constitution must name governance create and destroy transformations")
	}
	if _, ok := c.bits[f.Governance.Create]; !ok {
		return nil, fmt.Errorf("governance create transformation %s not defined", f.Governance.Create)
	}
	if _, ok := c.bits[f.Governance.Destroy]; !ok {
		return nil, fmt.Errorf("governance destroy transformation %s not defined", f.Governance.Destroy)
	}

	for i, seed := range f.Authorities {
		if seed.AuthorityID == "" {
			return nil, fmt.Errorf("authorities[%d]: empty authority_id", i)
		}
		for _, name := range seed.Transformations {
			if _, ok := c.bits[name]; !ok {
				return nil, fmt.Errorf("authority %s: unknown transformation %s", seed.AuthorityID, name)
			}
		}
		switch seed.Status {
		case "", string(kernel.StatusActive), string(kernel.StatusPending):
		default:
			return nil, fmt.Errorf("authority %s: seed status %q not allowed", seed.AuthorityID, seed.Status)
		}
	}

	return c, nil
}

// Transformation resolves a transformation name to its AAV bit.
func (c *Constitution) Transformation(name string) (kernel.Transformation, bool) {
	t, ok := c.bits[name]
	return t, ok
}

// TransformationName resolves an AAV bit back to its constitution name.
func (c *Constitution) TransformationName(t kernel.Transformation) (string, bool) {
	name, ok := c.names[t]
	return name, ok
}

// AAV builds an Authorized-Action Vector from transformation names.
// Unknown names were already rejected by Parse for seed records; callers
// resolving runtime input should check Transformation first.
func (c *Constitution) AAV(names []string) kernel.AAV {
	var a kernel.AAV
	for _, name := range names {
		if t, ok := c.bits[name]; ok {
			a = a.With(t)
		}
	}
	return a
}

// KernelConfig derives the kernel configuration: governance bits, budget,
// costs, and the seed authority records.
func (c *Constitution) KernelConfig(logger *slog.Logger) kernel.Config {
	cfg := kernel.DefaultConfig()
	cfg.Logger = logger
	cfg.CreateTransformation = c.bits[c.file.Governance.Create]
	cfg.DestroyTransformation = c.bits[c.file.Governance.Destroy]

	if c.file.InstructionBudget > 0 {
		cfg.InstructionBudget = c.file.InstructionBudget
	}
	if v := c.file.Costs.Injection; v > 0 {
		cfg.Costs.Injection = v
	}
	if v := c.file.Costs.Renewal; v > 0 {
		cfg.Costs.Renewal = v
	}
	if v := c.file.Costs.Governance; v > 0 {
		cfg.Costs.Governance = v
	}
	if v := c.file.Costs.ActionRequest; v > 0 {
		cfg.Costs.ActionRequest = v
	}

	for _, seed := range c.file.Authorities {
		status := kernel.Status(seed.Status)
		if seed.Status == "" {
			status = kernel.StatusActive
		}
		cfg.Seed = append(cfg.Seed, kernel.AuthorityRecord{
			AuthorityID:   seed.AuthorityID,
			HolderID:      seed.HolderID,
			ResourceScope: seed.ResourceScope,
			Status:        status,
			AAV:           c.AAV(seed.Transformations),
			StartEpoch:    seed.StartEpoch,
			ExpiryEpoch:   seed.ExpiryEpoch,
		})
	}
	return cfg
}

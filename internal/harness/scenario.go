// Package harness drives the kernel from declarative scenario files: it
// loads batches of events, feeds them through a kernel instance, fans
// results out to the audit stream and the journal, and verifies journaled
// runs by deterministic replay.
package harness

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/macterra/Axio-sub003/pkg/constitution"
	"github.com/macterra/Axio-sub003/pkg/kernel"
)

// Scenario is a named sequence of step batches.
type Scenario struct {
	Name    string  `yaml:"name"`
	Batches []batch `yaml:"batches"`
}

type batch struct {
	BatchID          string            `yaml:"batch_id"`
	EpochAdvancement *epochAdvancement `yaml:"epoch_advancement"`
	Events           []eventDef        `yaml:"events"`
}

type epochAdvancement struct {
	EventID  string `yaml:"event_id"`
	NewEpoch uint64 `yaml:"new_epoch"`
}

// eventDef is one scenario event. Exactly one of the kind fields is set.
type eventDef struct {
	Inject     *injectDef     `yaml:"inject"`
	Renew      *renewDef      `yaml:"renew"`
	Governance *governanceDef `yaml:"governance"`
	Action     *actionDef     `yaml:"action"`
}

type authorityDef struct {
	AuthorityID     string   `yaml:"authority_id"`
	HolderID        string   `yaml:"holder_id"`
	ResourceScope   string   `yaml:"resource_scope"`
	Status          string   `yaml:"status"`
	Transformations []string `yaml:"transformations"`
	StartEpoch      uint64   `yaml:"start_epoch"`
	ExpiryEpoch     uint64   `yaml:"expiry_epoch"`
}

type injectDef struct {
	Authority authorityDef `yaml:"authority"`
	Nonce     string       `yaml:"nonce"`
}

type renewDef struct {
	Authority           authorityDef `yaml:"authority"`
	PriorAuthorityID    string       `yaml:"prior_authority_id"`
	EventID             string       `yaml:"event_id"`
	AuthorizingSourceID string       `yaml:"authorizing_source_id"`
}

type governanceDef struct {
	EventID    string   `yaml:"event_id"`
	Action     string   `yaml:"action"`
	Initiators []string `yaml:"initiators"`

	// DESTROY_AUTHORITY
	TargetAuthorityID string `yaml:"target_authority_id"`

	// CREATE_AUTHORITY
	NewAuthorityID        string   `yaml:"new_authority_id"`
	ResourceScope         string   `yaml:"resource_scope"`
	ScopeBasisAuthorityID string   `yaml:"scope_basis_authority_id"`
	Transformations       []string `yaml:"transformations"`
	ExpiryEpoch           uint64   `yaml:"expiry_epoch"`
	HolderID              string   `yaml:"holder_id"`
	Lineage               []string `yaml:"lineage"`
}

type actionDef struct {
	RequestID      string `yaml:"request_id"`
	ResourceScope  string `yaml:"resource_scope"`
	Transformation string `yaml:"transformation"`
}

// Batch is one resolved unit of kernel work with its run-scoped identity.
type Batch struct {
	BatchID string
	Step    kernel.StepBatch
}

// LoadScenario reads and resolves a scenario file against a constitution.
func LoadScenario(path string, c *constitution.Constitution) (string, []Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data, c)
}

// ParseScenario resolves scenario YAML into kernel step batches. Every
// transformation name must resolve against the constitution; missing batch
// and request identifiers are minted.
func ParseScenario(data []byte, c *constitution.Constitution) (string, []Batch, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return "", nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Batches) == 0 {
		return "", nil, fmt.Errorf("scenario %q has no batches", sc.Name)
	}

	batches := make([]Batch, 0, len(sc.Batches))
	for bi, b := range sc.Batches {
		out := Batch{BatchID: b.BatchID}
		if out.BatchID == "" {
			out.BatchID = uuid.NewString()
		}
		if b.EpochAdvancement != nil {
			out.Step.EpochAdvancement = &kernel.EpochAdvancementRequest{
				EventID:  b.EpochAdvancement.EventID,
				NewEpoch: b.EpochAdvancement.NewEpoch,
			}
		}
		for ei, ev := range b.Events {
			resolved, err := resolveEvent(ev, c)
			if err != nil {
				return "", nil, fmt.Errorf("batch %d event %d: %w", bi, ei, err)
			}
			out.Step.Events = append(out.Step.Events, resolved)
		}
		batches = append(batches, out)
	}
	return sc.Name, batches, nil
}

func resolveEvent(ev eventDef, c *constitution.Constitution) (kernel.Event, error) {
	set := 0
	for _, present := range []bool{ev.Inject != nil, ev.Renew != nil, ev.Governance != nil, ev.Action != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("expected exactly one event kind, got %d", set)
	}

	switch {
	case ev.Inject != nil:
		rec, err := resolveAuthority(ev.Inject.Authority, c)
		if err != nil {
			return nil, err
		}
		return kernel.AuthorityInjectionEvent{Authority: rec, Nonce: ev.Inject.Nonce}, nil

	case ev.Renew != nil:
		rec, err := resolveAuthority(ev.Renew.Authority, c)
		if err != nil {
			return nil, err
		}
		eventID := ev.Renew.EventID
		if eventID == "" {
			eventID = uuid.NewString()
		}
		return kernel.AuthorityRenewalRequest{
			NewAuthority:                rec,
			PriorAuthorityID:            ev.Renew.PriorAuthorityID,
			RenewalEventID:              eventID,
			ExternalAuthorizingSourceID: ev.Renew.AuthorizingSourceID,
		}, nil

	case ev.Governance != nil:
		g := ev.Governance
		actionType := kernel.GovernanceActionType(g.Action)
		if actionType != kernel.GovernanceDestroyAuthority && actionType != kernel.GovernanceCreateAuthority {
			return nil, fmt.Errorf("unknown governance action %q", g.Action)
		}
		aav, err := resolveAAV(g.Transformations, c)
		if err != nil {
			return nil, err
		}
		eventID := g.EventID
		if eventID == "" {
			eventID = uuid.NewString()
		}
		req := kernel.GovernanceActionRequest{
			EventID:      eventID,
			ActionType:   actionType,
			InitiatorIDs: g.Initiators,
			Params: kernel.GovernanceParams{
				TargetAuthorityID:     g.TargetAuthorityID,
				NewAuthorityID:        g.NewAuthorityID,
				ResourceScope:         g.ResourceScope,
				ScopeBasisAuthorityID: g.ScopeBasisAuthorityID,
				AAV:                   aav,
				ExpiryEpoch:           g.ExpiryEpoch,
				HolderID:              g.HolderID,
				Lineage:               g.Lineage,
			},
		}
		if actionType == kernel.GovernanceDestroyAuthority {
			req.TargetIDs = []string{g.TargetAuthorityID}
		}
		return req, nil

	default:
		a := ev.Action
		bit, ok := c.Transformation(a.Transformation)
		if !ok {
			return nil, fmt.Errorf("unknown transformation %q", a.Transformation)
		}
		requestID := a.RequestID
		if requestID == "" {
			requestID = uuid.NewString()
		}
		return kernel.ActionRequestEvent{
			RequestID:          requestID,
			ResourceScope:      a.ResourceScope,
			TransformationType: bit,
		}, nil
	}
}

func resolveAuthority(def authorityDef, c *constitution.Constitution) (kernel.AuthorityRecord, error) {
	aav, err := resolveAAV(def.Transformations, c)
	if err != nil {
		return kernel.AuthorityRecord{}, err
	}
	status := kernel.Status(def.Status)
	if def.Status == "" {
		status = kernel.StatusActive
	}
	return kernel.AuthorityRecord{
		AuthorityID:   def.AuthorityID,
		HolderID:      def.HolderID,
		ResourceScope: def.ResourceScope,
		Status:        status,
		AAV:           aav,
		StartEpoch:    def.StartEpoch,
		ExpiryEpoch:   def.ExpiryEpoch,
	}, nil
}

func resolveAAV(names []string, c *constitution.Constitution) (kernel.AAV, error) {
	var aav kernel.AAV
	for _, name := range names {
		bit, ok := c.Transformation(name)
		if !ok {
			return 0, fmt.Errorf("unknown transformation %q", name)
		}
		aav = aav.With(bit)
	}
	return aav, nil
}

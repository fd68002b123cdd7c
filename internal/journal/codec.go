package journal

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/macterra/Axio-sub003/pkg/kernel"
)

// Deterministic encoding keeps journal blobs byte-comparable across runs.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("journal: cbor encode mode: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("journal: cbor decode mode: %v", err))
	}
}

const (
	kindInjection  = "injection"
	kindRenewal    = "renewal"
	kindGovernance = "governance"
	kindAction     = "action"
)

// eventEnvelope tags one phase-2 event with its concrete kind so the sum
// type survives the round trip.
type eventEnvelope struct {
	Kind       string                          `cbor:"kind"`
	Injection  *kernel.AuthorityInjectionEvent `cbor:"injection,omitempty"`
	Renewal    *kernel.AuthorityRenewalRequest `cbor:"renewal,omitempty"`
	Governance *kernel.GovernanceActionRequest `cbor:"governance,omitempty"`
	Action     *kernel.ActionRequestEvent      `cbor:"action,omitempty"`
}

type batchEnvelope struct {
	EpochAdvancement *kernel.EpochAdvancementRequest `cbor:"epoch_advancement,omitempty"`
	Events           []eventEnvelope                 `cbor:"events"`
}

func encodeBatch(b kernel.StepBatch) ([]byte, error) {
	env := batchEnvelope{EpochAdvancement: b.EpochAdvancement}
	for _, ev := range b.Events {
		switch e := ev.(type) {
		case kernel.AuthorityInjectionEvent:
			env.Events = append(env.Events, eventEnvelope{Kind: kindInjection, Injection: &e})
		case kernel.AuthorityRenewalRequest:
			env.Events = append(env.Events, eventEnvelope{Kind: kindRenewal, Renewal: &e})
		case kernel.GovernanceActionRequest:
			env.Events = append(env.Events, eventEnvelope{Kind: kindGovernance, Governance: &e})
		case kernel.ActionRequestEvent:
			env.Events = append(env.Events, eventEnvelope{Kind: kindAction, Action: &e})
		default:
			return nil, fmt.Errorf("unknown event type %T", ev)
		}
	}
	return encMode.Marshal(env)
}

func decodeBatch(data []byte) (kernel.StepBatch, error) {
	var env batchEnvelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return kernel.StepBatch{}, err
	}
	batch := kernel.StepBatch{EpochAdvancement: env.EpochAdvancement}
	for _, ev := range env.Events {
		switch ev.Kind {
		case kindInjection:
			if ev.Injection == nil {
				return kernel.StepBatch{}, fmt.Errorf("injection envelope missing payload")
			}
			batch.Events = append(batch.Events, *ev.Injection)
		case kindRenewal:
			if ev.Renewal == nil {
				return kernel.StepBatch{}, fmt.Errorf("renewal envelope missing payload")
			}
			batch.Events = append(batch.Events, *ev.Renewal)
		case kindGovernance:
			if ev.Governance == nil {
				return kernel.StepBatch{}, fmt.Errorf("governance envelope missing payload")
			}
			batch.Events = append(batch.Events, *ev.Governance)
		case kindAction:
			if ev.Action == nil {
				return kernel.StepBatch{}, fmt.Errorf("action envelope missing payload")
			}
			batch.Events = append(batch.Events, *ev.Action)
		default:
			return kernel.StepBatch{}, fmt.Errorf("unknown event kind %q", ev.Kind)
		}
	}
	return batch, nil
}

func encodeSnapshot(st *kernel.AuthorityState) ([]byte, error) {
	return encMode.Marshal(st)
}

func decodeSnapshot(data []byte) (*kernel.AuthorityState, error) {
	var st kernel.AuthorityState
	if err := decMode.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

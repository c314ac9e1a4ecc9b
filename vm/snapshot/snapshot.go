// Package snapshot encodes Intcode engine state as CBOR so that a suspended
// machine can be stored, sent to another process and resumed there.
package snapshot

import (
	"fmt"

	"github.com/chazu/intcode/vm"
	"github.com/fxamacker/cbor/v2"
)

// Version is the current snapshot format.
const Version uint8 = 1

// Snapshot is the wire form of vm.State.
type Snapshot struct {
	Version       uint8   `cbor:"1,keyasint"`
	Memory        []int64 `cbor:"2,keyasint"`
	IP            int64   `cbor:"3,keyasint"`
	RelativeBase  int64   `cbor:"4,keyasint,omitempty"`
	AwaitingInput bool    `cbor:"5,keyasint,omitempty"`
	Halted        bool    `cbor:"6,keyasint,omitempty"`
	Steps         int64   `cbor:"7,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// FromState wraps st in the current format.
func FromState(st vm.State) *Snapshot {
	return &Snapshot{
		Version:       Version,
		Memory:        st.Memory,
		IP:            st.IP,
		RelativeBase:  st.RelativeBase,
		AwaitingInput: st.AwaitingInput,
		Halted:        st.Halted,
		Steps:         st.Steps,
	}
}

// State converts s back to engine state.
func (s *Snapshot) State() vm.State {
	return vm.State{
		Memory:        s.Memory,
		IP:            s.IP,
		RelativeBase:  s.RelativeBase,
		AwaitingInput: s.AwaitingInput,
		Halted:        s.Halted,
		Steps:         s.Steps,
	}
}

// Marshal serializes s. Equal snapshots always encode to equal bytes.
func Marshal(s *Snapshot) ([]byte, error) {
	return encMode.Marshal(s)
}

// Unmarshal deserializes a snapshot and checks its version.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("snapshot: unsupported version %d", s.Version)
	}
	return &s, nil
}

// Encode captures e and serializes it.
func Encode(e *vm.Engine) ([]byte, error) {
	st, err := e.State()
	if err != nil {
		return nil, err
	}
	return Marshal(FromState(st))
}

// Decode rebuilds an engine from data. opts are applied to the new engine;
// limits and tracing are not part of a snapshot.
func Decode(data []byte, opts ...vm.Option) (*vm.Engine, error) {
	s, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	e, err := vm.Restore(s.State(), opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return e, nil
}

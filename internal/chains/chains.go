package chains

import (
	"fmt"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Family identifies the architectural family a chain belongs to. All
// family-specific behaviour (address syntax, bridge routing) hangs off the
// capability table keyed by this value.
type Family string

const (
	FamilyEVM      Family = "evm"
	FamilySolana   Family = "solana"
	FamilySui      Family = "sui"
	FamilyAptos    Family = "aptos"
	FamilyStarknet Family = "starknet"
)

func (f Family) String() string {
	return string(f)
}

// ChainID is a wallet-local chain identifier from static configuration. It is
// distinct from the Wormhole routing id, which not every chain has.
type ChainID uint64

// Descriptor describes one configured chain. Descriptors are immutable after
// registry construction.
type Descriptor struct {
	ID     ChainID
	Name   string
	Family Family
	IsHub  bool

	// WormholeID is the Wormhole chain id used for bridge routing.
	// vaa.ChainIDUnset means the chain is not reachable over the bridge.
	WormholeID vaaLib.ChainID
}

// Bridgeable reports whether the chain can participate in a cross-chain
// transfer at all (a Wormhole routing id exists for it).
func (d Descriptor) Bridgeable() bool {
	return d.WormholeID != vaaLib.ChainIDUnset
}

// UnknownChainError is returned for any chain id absent from the registry.
type UnknownChainError struct {
	ID ChainID
}

func (e *UnknownChainError) Error() string {
	return fmt.Sprintf("unknown chain id %d", e.ID)
}

// Registry is the static chain table built once at startup.
type Registry struct {
	byID    map[ChainID]Descriptor
	ordered []Descriptor
}

// NewRegistry builds a registry from descriptors. Duplicate ids, unknown
// families and more than one hub are configuration errors.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		byID: make(map[ChainID]Descriptor, len(descriptors)),
	}

	hubSeen := false
	for _, d := range descriptors {
		if _, ok := familyCapabilities[d.Family]; !ok {
			return nil, fmt.Errorf("chain %q: unsupported family %q", d.Name, d.Family)
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate chain id %d", d.ID)
		}
		if d.IsHub {
			if hubSeen {
				return nil, fmt.Errorf("chain %q: hub already configured", d.Name)
			}
			hubSeen = true
		}
		r.byID[d.ID] = d
		r.ordered = append(r.ordered, d)
	}

	return r, nil
}

// DefaultRegistry returns the chain table the wallet ships with. Base is the
// hub chain; Starknet has no Wormhole routing id and is therefore local-only.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Descriptor{ID: 8453, Name: "Base", Family: FamilyEVM, IsHub: true, WormholeID: vaaLib.ChainIDBase},
		Descriptor{ID: 42161, Name: "Arbitrum", Family: FamilyEVM, WormholeID: vaaLib.ChainIDArbitrum},
		Descriptor{ID: 10, Name: "Optimism", Family: FamilyEVM, WormholeID: vaaLib.ChainIDOptimism},
		Descriptor{ID: 101, Name: "Solana", Family: FamilySolana, WormholeID: vaaLib.ChainIDSolana},
		Descriptor{ID: 784, Name: "Sui", Family: FamilySui, WormholeID: vaaLib.ChainIDSui},
		Descriptor{ID: 637, Name: "Aptos", Family: FamilyAptos, WormholeID: vaaLib.ChainIDAptos},
		Descriptor{ID: 393, Name: "Starknet", Family: FamilyStarknet},
	)
	if err != nil {
		// The default table is compile-time data; a bad entry is a bug.
		panic(err)
	}
	return r
}

// FamilyOf maps a chain id to its family. It is total over the registry and
// fails with UnknownChainError for everything else.
func (r *Registry) FamilyOf(id ChainID) (Family, error) {
	d, ok := r.byID[id]
	if !ok {
		return "", &UnknownChainError{ID: id}
	}
	return d.Family, nil
}

// Descriptor looks up the full descriptor for a chain id.
func (r *Registry) Descriptor(id ChainID) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, &UnknownChainError{ID: id}
	}
	return d, nil
}

// All returns the configured chains in declaration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Hub returns the hub chain descriptor, if one is configured.
func (r *Registry) Hub() (Descriptor, bool) {
	for _, d := range r.ordered {
		if d.IsHub {
			return d, true
		}
	}
	return Descriptor{}, false
}

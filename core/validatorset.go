package core

import (
	"encoding/json"
	"sort"
	"sync"
)

// ValidatorInfo is a registered validator's address and stake weight.
type ValidatorInfo struct {
	Address string `json:"address"`
	Stake   uint64 `json:"stake"`
}

// ValidatorSet maps validator address to its registration. Registration is
// idempotent on address: the first registration wins, so a replayed or
// maliciously re-broadcast RegisterValidator message cannot overwrite an
// existing stake and cannot be used to amplify gossip into repeated state
// mutations.
type ValidatorSet struct {
	mu         sync.Mutex
	validators map[string]ValidatorInfo
}

// NewValidatorSet returns an empty validator set.
func NewValidatorSet() *ValidatorSet {
	return &ValidatorSet{validators: make(map[string]ValidatorInfo)}
}

// Register inserts (address, stake) if address is not already present.
// Returns true if this call actually inserted a new validator.
func (vs *ValidatorSet) Register(address string, stake uint64) bool {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if _, exists := vs.validators[address]; exists {
		return false
	}
	vs.validators[address] = ValidatorInfo{Address: address, Stake: stake}
	return true
}

// Get returns the validator registered under address, if any.
func (vs *ValidatorSet) Get(address string) (ValidatorInfo, bool) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	v, ok := vs.validators[address]
	return v, ok
}

// Len returns the number of registered validators.
func (vs *ValidatorSet) Len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.validators)
}

// Sorted returns all validators ordered ascending by address. This
// deterministic order is what makes EDFM proposer election agree across
// nodes: iterating a Go map directly would not.
func (vs *ValidatorSet) Sorted() []ValidatorInfo {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	out := make([]ValidatorInfo, 0, len(vs.validators))
	for _, v := range vs.validators {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// TotalStake returns the sum of every registered validator's stake.
func (vs *ValidatorSet) TotalStake() uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	var total uint64
	for _, v := range vs.validators {
		total += v.Stake
	}
	return total
}

// Marshal serializes the set for persistence under the "state" key.
func (vs *ValidatorSet) Marshal() ([]byte, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	list := make([]ValidatorInfo, 0, len(vs.validators))
	for _, v := range vs.validators {
		list = append(list, v)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Address < list[j].Address })
	return json.Marshal(list)
}

// LoadValidatorSet rebuilds a ValidatorSet from its persisted form. A nil or
// empty blob yields an empty set (fresh node).
func LoadValidatorSet(data []byte) (*ValidatorSet, error) {
	vs := NewValidatorSet()
	if len(data) == 0 {
		return vs, nil
	}
	var list []ValidatorInfo
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	for _, v := range list {
		vs.validators[v.Address] = v
	}
	return vs, nil
}

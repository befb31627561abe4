package consensus

import (
	"testing"

	"github.com/aldera-network/aldera/core"
)

func buildValidatorSet(t *testing.T, stakes map[string]uint64) *core.ValidatorSet {
	t.Helper()
	vs := core.NewValidatorSet()
	for addr, stake := range stakes {
		vs.Register(addr, stake)
	}
	return vs
}

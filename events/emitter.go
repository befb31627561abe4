package events

import (
	"log"
	"sync"
)

// EventType labels what happened.
type EventType string

const (
	// EventProposerElected fires on every producer tick that elects a
	// proposer, before that proposer has actually produced anything; a
	// height that stays uncommitted across ticks fires it again each tick.
	EventProposerElected EventType = "proposer_elected"
	// EventBlockProposed fires when this node broadcasts its own
	// ProposeBlock. Proposals received from peers do not emit it.
	EventBlockProposed EventType = "block_proposed"
	// EventPreVoteQuorum fires the first time a block hash crosses prevote
	// quorum at its height.
	EventPreVoteQuorum EventType = "prevote_quorum"
	// EventPreCommitQuorum fires the first time a block hash crosses
	// precommit quorum at its height.
	EventPreCommitQuorum EventType = "precommit_quorum"
	// EventBlockCommitted fires once a block that reached precommit quorum
	// is durably appended to the local chain. A chain replaced wholesale by
	// sync does not emit it.
	EventBlockCommitted EventType = "block_committed"
	// EventSyncStarted fires when the node requests a peer's full chain.
	EventSyncStarted EventType = "sync_started"
	// EventSyncCompleted labels a peer's chain being accepted and replacing
	// the local one. No component in this module emits it.
	EventSyncCompleted EventType = "sync_completed"
	// EventGenesisMismatch labels a candidate chain rejected because its
	// root block does not match the local genesis. No component in this
	// module emits it; the rejection is only logged by the session.
	EventGenesisMismatch EventType = "genesis_mismatch"
	// EventValidatorRegistered labels a new validator address being
	// admitted to the local validator set. No component in this module
	// emits it; admissions are only logged by the session.
	EventValidatorRegistered EventType = "validator_registered"
)

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id"`
	BlockHeight int64          `json:"block_height"`
	Data        map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the node or halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[events] handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}

package events

import (
	"encoding/json"
	"time"
)

// Mutation is a lightweight notification that a ledger row changed.
// Consumers fetch the row themselves; the message carries no amounts.
type Mutation struct {
	Entity    string    `json:"entity"`
	Op        string    `json:"op"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// Operations carried in Mutation.Op.
const (
	OpCreated  = "created"
	OpVoided   = "voided"
	OpAdjusted = "adjusted"
	OpLinked   = "linked"
	OpUnlinked = "unlinked"
)

// NewMutation builds a timestamped mutation event.
func NewMutation(entity, op string, id int64) Mutation {
	return Mutation{Entity: entity, Op: op, ID: id, Timestamp: time.Now()}
}

func (m Mutation) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MutationFromJSON(data []byte) (Mutation, error) {
	var m Mutation
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, nil
}

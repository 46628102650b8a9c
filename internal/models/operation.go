package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OpKind is the kind of remote mutation an operation performs.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Operation is one queued mutation awaiting replay against the remote store.
// Instances are immutable after construction except for RetryCount, which the
// sync engine bumps on each failed replay attempt.
type Operation struct {
	ID         string
	Kind       OpKind
	Collection string

	// DocumentID is required for update and delete. For add it is optional;
	// absence means the store assigns an id.
	DocumentID string

	// Fields is required non-empty for add and update, ignored for delete.
	Fields map[string]Value

	CreatedAt  time.Time
	RetryCount int
}

// NewOperation builds an operation with a fresh id, a capture-time timestamp,
// and a zero retry count.
func NewOperation(kind OpKind, collection, documentID string, fields map[string]Value) *Operation {
	return &Operation{
		ID:         uuid.NewString(),
		Kind:       kind,
		Collection: collection,
		DocumentID: documentID,
		Fields:     fields,
		CreatedAt:  time.Now().Truncate(time.Millisecond),
	}
}

// Validate checks the structural preconditions for the operation's kind.
// Anything beyond this surfaces only when the operation executes remotely.
func (o *Operation) Validate() error {
	switch o.Kind {
	case OpAdd, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, o.Kind)
	}

	if strings.TrimSpace(o.Collection) == "" {
		return ErrEmptyCollection
	}

	if (o.Kind == OpAdd || o.Kind == OpUpdate) && len(o.Fields) == 0 {
		return fmt.Errorf("%w for %s", ErrMissingFields, o.Kind)
	}

	if (o.Kind == OpUpdate || o.Kind == OpDelete) && o.DocumentID == "" {
		return fmt.Errorf("%w for %s", ErrMissingDocumentID, o.Kind)
	}

	return nil
}

// NativeFields projects the field map into untyped values for the remote
// store client.
func (o *Operation) NativeFields() map[string]any {
	if o.Fields == nil {
		return nil
	}
	native := make(map[string]any, len(o.Fields))
	for name, value := range o.Fields {
		native[name] = value.ToNative()
	}
	return native
}

// operationJSON is the on-disk record. Timestamps travel as numeric
// seconds-since-epoch for portability.
type operationJSON struct {
	ID         string           `json:"id"`
	Kind       OpKind           `json:"kind"`
	Collection string           `json:"collection"`
	DocumentID string           `json:"document_id,omitempty"`
	Fields     map[string]Value `json:"fields,omitempty"`
	CreatedAt  float64          `json:"created_at"`
	RetryCount int              `json:"retry_count"`
}

// MarshalJSON implements json.Marshaler.
func (o *Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(operationJSON{
		ID:         o.ID,
		Kind:       o.Kind,
		Collection: o.Collection,
		DocumentID: o.DocumentID,
		Fields:     o.Fields,
		CreatedAt:  float64(o.CreatedAt.UnixMilli()) / 1000,
		RetryCount: o.RetryCount,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var wire operationJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	o.ID = wire.ID
	o.Kind = wire.Kind
	o.Collection = wire.Collection
	o.DocumentID = wire.DocumentID
	o.Fields = wire.Fields
	o.CreatedAt = time.UnixMilli(int64(math.Round(wire.CreatedAt * 1000))).UTC()
	o.RetryCount = wire.RetryCount
	return nil
}

// Describe returns a one-line summary for logs.
func (o *Operation) Describe() string {
	target := o.Collection
	if o.DocumentID != "" {
		target += "/" + o.DocumentID
	}
	return fmt.Sprintf("%s %s", o.Kind, target)
}

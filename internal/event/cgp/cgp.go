/*
Package cgp implements the CHIT Geometry Packet envelope, the JSON format PMOVES.AI services
use to exchange data with geometric metadata attached.
*/
package cgp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Envelope is a CHIT Geometry Packet.
type Envelope struct {
	// ID uniquely identifies the packet.
	ID string `json:"id"`

	// Kind names the payload type, e.g. "health.transition".
	Kind string `json:"kind"`

	// Source is the emitting service.
	Source string `json:"source"`

	EmittedAt time.Time `json:"emitted_at"`

	Geometry Geometry `json:"geometry"`

	// Payload is the kind-specific body.
	Payload json.RawMessage `json:"payload"`
}

// Geometry carries the geometric metadata of a packet. Coordinates are optional; tier placement
// alone is valid geometry.
type Geometry struct {
	Tier   string    `json:"tier"`
	Coords []float64 `json:"coords,omitempty"`
}

// New constructs an Envelope of kind from source, marshalling payload into the packet body.
func New(kind, source string, geometry Geometry, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrap(err, "marshal payload")
	}

	return Envelope{
		ID:        uuid.NewString(),
		Kind:      kind,
		Source:    source,
		EmittedAt: time.Now().UTC(),
		Geometry:  geometry,
		Payload:   body,
	}, nil
}

// Marshal encodes the envelope to its wire form.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

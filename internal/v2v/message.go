// Package v2v defines the vehicle-to-vehicle message model exchanged over the
// simulation bus.
package v2v

import (
	"fmt"

	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
)

// VehicleID identifies a vehicle for the lifetime of a run. IDs are assigned
// ascending from 1 at spawn and never reused.
type VehicleID uint16

// String renders the on-air label, e.g. "V007".
func (id VehicleID) String() string {
	return fmt.Sprintf("V%03d", uint16(id))
}

// Kind discriminates message payloads on the bus.
type Kind uint8

const (
	// KindBSM is the periodic basic safety broadcast.
	KindBSM Kind = iota + 1
	// KindCWM is the targeted collision warning.
	KindCWM
)

func (k Kind) String() string {
	switch k {
	case KindBSM:
		return "BSM"
	case KindCWM:
		return "CWM"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Message is the common surface of everything published on the bus.
// Timestamps are simulation seconds.
type Message interface {
	MessageKind() Kind
	Sender() VehicleID
	SentAt() float64
}

// BasicSafetyMessage is the periodic state broadcast every vehicle emits.
// Position carries the planar frame; Longitude/Latitude carry the anchored
// geographic equivalent the way real BSMs carry GPS fixes.
type BasicSafetyMessage struct {
	ID           uuid.UUID
	Source       VehicleID
	SimTime      float64
	Position     geom.XY
	Velocity     geom.XY
	Acceleration geom.XY
	Heading      float64
	Speed        float64
	Longitude    float64
	Latitude     float64
}

func (m BasicSafetyMessage) MessageKind() Kind { return KindBSM }

func (m BasicSafetyMessage) Sender() VehicleID { return m.Source }

func (m BasicSafetyMessage) SentAt() float64 { return m.SimTime }

// CollisionWarningMessage is emitted by the closing vehicle of an at-risk
// pair, addressed to the vehicle it is closing on.
type CollisionWarningMessage struct {
	ID            uuid.UUID
	Source        VehicleID
	Target        VehicleID
	SimTime       float64
	TimeToClosest float64
	MinSeparation float64
	Mitigated     bool
}

func (m CollisionWarningMessage) MessageKind() Kind { return KindCWM }

func (m CollisionWarningMessage) Sender() VehicleID { return m.Source }

func (m CollisionWarningMessage) SentAt() float64 { return m.SimTime }

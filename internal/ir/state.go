package ir

import (
	"fmt"
	"time"
)

// EntityStatus tags a changed entity state.
type EntityStatus int

const (
	StatusLoaded EntityStatus = iota
	StatusNew
	StatusUpdated
	StatusRemoved
)

// String returns the upper-case status name.
func (s EntityStatus) String() string {
	switch s {
	case StatusLoaded:
		return "LOADED"
	case StatusNew:
		return "NEW"
	case StatusUpdated:
		return "UPDATED"
	case StatusRemoved:
		return "REMOVED"
	default:
		return fmt.Sprintf("EntityStatus(%d)", int(s))
	}
}

// ParseEntityStatus parses a status name (case-sensitive, upper-case).
func ParseEntityStatus(s string) (EntityStatus, error) {
	switch s {
	case "LOADED":
		return StatusLoaded, nil
	case "NEW":
		return StatusNew, nil
	case "UPDATED":
		return StatusUpdated, nil
	case "REMOVED":
		return StatusRemoved, nil
	default:
		return 0, fmt.Errorf("unknown entity status %q", s)
	}
}

// EntityState is a snapshot of one changed entity.
//
// Associations map to the target identity ("" means no target).
// ManyAssociations keep target order.
type EntityState struct {
	Identity         string
	Type             string
	Status           EntityStatus
	Version          string
	LastModified     time.Time
	Properties       map[QualifiedName]IRValue
	Associations     map[QualifiedName]string
	ManyAssociations map[QualifiedName][]string
}

// Property returns the property value for q, or IRNull if unset.
func (s EntityState) Property(q QualifiedName) IRValue {
	if v, ok := s.Properties[q]; ok && v != nil {
		return v
	}
	return IRNull{}
}

// Package ir provides the type-model boundary for the indexing engine.
//
// This package contains type definitions only: qualified names, the
// pre-resolved descriptors of entity, interface, composite and enum
// types, the sealed Value interface and entity state snapshots. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Descriptors are explicit data, never discovered by reflection
//   - QualifiedName is comparable and used as a map key everywhere
//   - Value is sealed; only the types in this package implement it
package ir

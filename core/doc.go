// Package core defines the data model shared by every layer of the entity service.
//
// # Overview
//
// The core package provides:
//   - ActionKind and Outcome, the inbound contract of the action dispatcher
//   - Entity and Reference, the generic representation of a persisted row
//   - Parameters, the typed view over a raw parameter mapping
//   - FilterExpr, the structured filter language accepted by List and Count
//   - The error taxonomy returned by every action
//
// Nothing in this package talks to storage or metadata. Those concerns live in
// the metadata, search, binder, storage and service packages, which all depend
// on core and never the other way around.
package core

// Package engine contains the shift loop and simulation logic.
// This is the heartbeat of the emergency room.
//
// ARCHITECTURAL RULE: all mutation goes through Engine under one lock.
// Sub-systems act on the patients the engine hands them and never keep
// references of their own; presentation only ever sees Snapshot values.
package engine

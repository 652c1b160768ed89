package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors with proper codes.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique constraint violated (duplicate code string, batch number)
// - ErrExpired: batch or code past its expiry timestamp
// - ErrAlreadyUsed: code already consumed by a first valid scan
// - ErrInvalidState: entity in wrong custody state for the requested transition
// - ErrUnavailable: external dependency (anchor store, redis) temporarily down
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

package storage

import "errors"

// ErrNotFound is wrapped by every store when a referenced record does not
// exist. Services branch on it with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrInsufficientBalance is returned when an atomic credit would drive a
// wallet field negative.
var ErrInsufficientBalance = errors.New("insufficient balance")

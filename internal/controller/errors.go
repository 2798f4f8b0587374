package controller

import "errors"

// ErrPersistence wraps state store and history failures returned by RunCycle.
var ErrPersistence = errors.New("controller: persistence failed")

// Package model holds the value types shared by every analysis stage: the
// Severity total order and the ChangedFile records supplied by the caller.
package model

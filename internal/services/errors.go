package services

import "errors"

var (
	// ErrPriceMismatch means the provider-computed invoice amount disagrees
	// with the enrollment's total. The offending invoice is deleted before
	// this error surfaces.
	ErrPriceMismatch = errors.New("invoice amount does not match enrollment total")

	// ErrSourceConsumed means a one-shot payment source was replayed.
	// The caller must obtain a fresh source.
	ErrSourceConsumed = errors.New("payment source was already consumed")

	// ErrSourceNotFound means no usable source exists and none can be
	// created without a target bank.
	ErrSourceNotFound = errors.New("no usable payment source")
)

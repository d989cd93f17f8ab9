package models

import "errors"

var (
	ErrInvalidQuantity     = errors.New("invalid quantity: must be a positive number")
	ErrInvalidWasteType    = errors.New("invalid waste type")
	ErrInvalidUnit         = errors.New("invalid unit")
	ErrWasteTypeMismatch   = errors.New("waste type does not match bin")
	ErrInvalidBin          = errors.New("invalid bin definition")
	ErrBinNotFound         = errors.New("bin not found")
	ErrRequestNotFound     = errors.New("pickup request not found")
	ErrInvalidRequestState = errors.New("pickup request is not pending")
	ErrMissingHandler      = errors.New("completion requires handler id and name")
	ErrTransactionFailure  = errors.New("transaction failed")
)

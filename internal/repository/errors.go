package repository

import "errors"

var (
	// ErrTokenExpired is returned when an operation needs a valid access token
	ErrTokenExpired = errors.New("access token expired")

	// ErrBarcodeNotFound is returned when a scanned value matches no active barcode
	ErrBarcodeNotFound = errors.New("barcode not found")

	// ErrDocumentNotFound is returned when a document is missing from the local cache
	ErrDocumentNotFound = errors.New("document not found")
)

package viewmodel

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/AndrewKorobchuk/tsd/internal/repository"
	"github.com/AndrewKorobchuk/tsd/pkg/api"
	"github.com/AndrewKorobchuk/tsd/pkg/settings"
)

var (
	ErrSaving          = errors.New("document is being saved")
	ErrAlreadySaved    = errors.New("document already saved, reset to start a new one")
	ErrHeaderPersisted = errors.New("document header is already saved on the server")
	ErrNoSuchItem      = errors.New("no such document item")
	ErrItemPersisted   = errors.New("document item is already saved on the server")
)

// ValidationError is a local input problem found before any network call
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ItemSaveError reports the document line whose submission failed
type ItemSaveError struct {
	Index int
	Item  DraftItem
	Err   error
}

func (e *ItemSaveError) Error() string {
	name := e.Item.NomenclatureName
	if name == "" {
		name = fmt.Sprintf("nomenclature %d", e.Item.NomenclatureID)
	}
	return fmt.Sprintf("item %d (%s): %s", e.Index+1, name, Message(e.Err))
}

func (e *ItemSaveError) Unwrap() error {
	return e.Err
}

// Message turns an error into the text shown to the operator
func Message(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	var itemErr *ItemSaveError
	var httpErr *api.HTTPError
	var transportErr *api.TransportError

	switch {
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &itemErr):
		return itemErr.Error()
	case errors.Is(err, settings.ErrNotConfigured):
		return "Server connection is not configured"
	case errors.Is(err, repository.ErrTokenExpired):
		return "Session expired, please log in again"
	case errors.Is(err, repository.ErrBarcodeNotFound):
		return "Barcode not found"
	case errors.Is(err, api.ErrEmptyBody):
		return "Empty response from server"
	case errors.As(err, &httpErr):
		if httpErr.StatusCode == http.StatusUnauthorized && httpErr.Detail == "" {
			return "Not authorized"
		}
		if httpErr.Detail != "" {
			return httpErr.Detail
		}
		return fmt.Sprintf("Server error %d", httpErr.StatusCode)
	case errors.As(err, &transportErr):
		return "Network error: " + transportErr.Err.Error()
	}
	return err.Error()
}

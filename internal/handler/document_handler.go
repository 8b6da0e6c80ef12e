package handler

import (
	"fmt"
	"net/http"

	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/internal/repository"
	"github.com/AndrewKorobchuk/tsd/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// documentsResponse is one query of the local document list
type documentsResponse struct {
	Filter    repository.DocumentFilter `json:"filter"`
	Documents []model.Document          `json:"documents"`
}

// ListDocuments returns the cached documents matching the query filter.
// It leaves the streamed list alone.
func (h *Handler) ListDocuments(c echo.Context) error {
	filter, err := bindDocumentFilter(c)
	if err != nil {
		return badRequest(c, "Invalid document filter")
	}

	docs, err := h.DocumentStore.List(c.Request().Context(), filter)
	if err != nil {
		return fail(c, err)
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return c.JSON(http.StatusOK, documentsResponse{Filter: filter, Documents: docs})
}

// SetDocumentFilter switches the streamed document list to the query filter
// and returns its first snapshot.
func (h *Handler) SetDocumentFilter(c echo.Context) error {
	filter, err := bindDocumentFilter(c)
	if err != nil {
		return badRequest(c, "Invalid document filter")
	}

	h.Documents.SetFilter(filter)
	return c.JSON(http.StatusOK, h.Documents.State())
}

// DocumentCounts recounts the cached documents of every type
func (h *Handler) DocumentCounts(c echo.Context) error {
	state, err := h.Counts.Refresh(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// StreamDocuments sends the document list as server-sent events whenever it changes
func (h *Handler) StreamDocuments(c echo.Context) error {
	ch, cancel := h.Documents.Observe()
	return stream(c, "documents", ch, cancel)
}

// SyncDocuments replaces the cached documents with the server list
func (h *Handler) SyncDocuments(c echo.Context) error {
	n, err := h.Documents.Sync(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"synced": n})
}

// GetDocument returns one cached document
func (h *Handler) GetDocument(c echo.Context) error {
	doc, err := h.cachedDocument(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

// DocumentItems returns the cached lines of a document. With refresh=true
// the document is fetched from the backend first.
func (h *Handler) DocumentItems(c echo.Context) error {
	ctx := c.Request().Context()

	var refresh bool
	if err := echo.QueryParamsBinder(c).Bool("refresh", &refresh).BindError(); err != nil {
		return badRequest(c, "refresh must be true or false")
	}

	doc, err := h.cachedDocument(c)
	if err != nil {
		return fail(c, err)
	}

	if refresh {
		token, err := h.Auth.AccessToken()
		if err != nil {
			return fail(c, err)
		}
		if _, err := h.DocumentStore.RefreshDocument(ctx, token, doc.ID); err != nil {
			return fail(c, err)
		}
	}

	items, err := h.DocumentStore.Items(ctx, doc.ID)
	return list(c, items, err)
}

func (h *Handler) PostDocument(c echo.Context) error {
	id, err := documentID(c)
	if err != nil {
		return badRequest(c, "Document ID must be a number")
	}
	if err := h.Documents.Post(c.Request().Context(), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Document posted"})
}

func (h *Handler) CancelDocument(c echo.Context) error {
	id, err := documentID(c)
	if err != nil {
		return badRequest(c, "Document ID must be a number")
	}
	if err := h.Documents.Cancel(c.Request().Context(), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Document cancelled"})
}

func (h *Handler) DeleteDocument(c echo.Context) error {
	id, err := documentID(c)
	if err != nil {
		return badRequest(c, "Document ID must be a number")
	}
	if err := h.Documents.Delete(c.Request().Context(), id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) cachedDocument(c echo.Context) (*model.Document, error) {
	id, err := documentID(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Document ID must be a number")
	}
	doc, err := h.DocumentStore.ByID(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %d", repository.ErrDocumentNotFound, id)
	}
	return doc, nil
}

func documentID(c echo.Context) (int64, error) {
	var id int64
	err := echo.PathParamsBinder(c).MustInt64("id", &id).BindError()
	return id, err
}

// stream writes every value received on ch as a server-sent event until the
// client goes away or ch is closed.
func stream[T any](c echo.Context, event string, ch <-chan T, cancel func()) error {
	defer cancel()
	log := logger.FromContext(c)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug("Event stream closed by client", zap.String("event", event))
			return nil
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return err
			}
			res.Flush()
		}
	}
}

func bindDocumentFilter(c echo.Context) (repository.DocumentFilter, error) {
	var filter repository.DocumentFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &filter); err != nil {
		return filter, err
	}
	// Unknown values fall back to the defaults the backend uses
	if filter.Type != "" {
		filter.Type = model.ParseDocumentType(string(filter.Type))
	}
	if filter.Status != "" {
		filter.Status = model.ParseDocumentStatus(string(filter.Status))
	}
	return filter, nil
}

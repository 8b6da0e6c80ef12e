package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AndrewKorobchuk/tsd/internal/cache"
	"github.com/AndrewKorobchuk/tsd/internal/model"
	"github.com/AndrewKorobchuk/tsd/pkg/api"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	scanCacheTTL     = 10 * time.Minute
	scanCacheCleanup = 15 * time.Minute
)

// BarcodesRepository serves barcodes and resolves scanned values
type BarcodesRepository struct {
	*directory[model.Barcode]
	scans *gocache.Cache
}

func NewBarcodesRepository(store *cache.Store, clients ClientSource, log *zap.Logger) *BarcodesRepository {
	return &BarcodesRepository{
		directory: &directory[model.Barcode]{
			entity:  "barcodes",
			table:   cache.NewTable[model.Barcode](store),
			clients: clients,
			order:   "nomenclature_name, barcode",
			fetch: func(ctx context.Context, c *api.Client, token string) ([]model.Barcode, error) {
				return c.ListBarcodes(ctx, token, api.BarcodeParams{ListParams: syncParams()})
			},
			log: orNop(log),
		},
		scans: gocache.New(scanCacheTTL, scanCacheCleanup),
	}
}

// SyncFromServer replaces the barcode table and forgets remote scan results
func (r *BarcodesRepository) SyncFromServer(ctx context.Context, token string) (int, error) {
	n, err := r.directory.SyncFromServer(ctx, token)
	if err == nil {
		r.scans.Flush()
	}
	return n, err
}

// ByValue returns the active cached barcode with the exact value, or nil
func (r *BarcodesRepository) ByValue(ctx context.Context, value string) (*model.Barcode, error) {
	return r.table.First(ctx, cache.Active(), cache.Eq("barcode", value))
}

// ByNomenclature returns the active cached barcodes of one item
func (r *BarcodesRepository) ByNomenclature(ctx context.Context, nomenclatureID int64) ([]model.Barcode, error) {
	return r.table.Find(ctx, cache.Active(), cache.Eq("nomenclature_id", nomenclatureID), cache.OrderBy("barcode"))
}

// Lookup resolves a scanned value. The local table is tried first, then
// recent remote answers, then the backend scan endpoint.
func (r *BarcodesRepository) Lookup(ctx context.Context, token, value string) (*model.Barcode, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrBarcodeNotFound
	}

	local, err := r.ByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	if local != nil {
		return local, nil
	}

	if cached, ok := r.scans.Get(value); ok {
		b := cached.(model.Barcode)
		return &b, nil
	}

	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}

	remote, err := client.ScanBarcode(ctx, token, value)
	if err != nil {
		if api.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrBarcodeNotFound, value)
		}
		return nil, err
	}
	if !remote.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrBarcodeNotFound, value)
	}

	r.scans.Set(value, *remote, gocache.DefaultExpiration)
	r.log.Debug("Barcode resolved remotely", zap.String("barcode", value), zap.Int64("nomenclature_id", remote.NomenclatureID))
	return remote, nil
}

// Create registers a barcode on the server and caches it
func (r *BarcodesRepository) Create(ctx context.Context, token string, in api.BarcodeRequest) (*model.Barcode, error) {
	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}

	created, err := client.CreateBarcode(ctx, token, in)
	if err != nil {
		return nil, err
	}
	if err := r.table.Upsert(ctx, *created); err != nil {
		return nil, err
	}
	r.scans.Delete(created.Barcode)
	return created, nil
}

// Update changes a barcode on the server and mirrors the result locally
func (r *BarcodesRepository) Update(ctx context.Context, token string, id int64, in api.BarcodeRequest) (*model.Barcode, error) {
	client, err := r.clients.Client()
	if err != nil {
		return nil, err
	}

	updated, err := client.UpdateBarcode(ctx, token, id, in)
	if err != nil {
		return nil, err
	}
	if err := r.table.Upsert(ctx, *updated); err != nil {
		return nil, err
	}
	r.scans.Flush()
	return updated, nil
}

// Delete removes a barcode on the server and then from the cache
func (r *BarcodesRepository) Delete(ctx context.Context, token string, id int64) error {
	client, err := r.clients.Client()
	if err != nil {
		return err
	}

	if err := client.DeleteBarcode(ctx, token, id); err != nil {
		return err
	}
	if _, err := r.table.Delete(ctx, cache.Eq("id", id)); err != nil {
		return err
	}
	r.scans.Flush()
	return nil
}

package bitrix

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wichananm65/paint-sync/internal/paint"
)

type itemResult struct {
	Item Item `json:"item"`
}

type itemsResult struct {
	Items []Item `json:"items"`
}

var selectFields = []string{"id", FieldTitle, FieldExternalID, FieldLastSync}

// SyncProduct mirrors p into the CRM. A known remote id is updated directly on
// isUpdate; otherwise the external id is looked up first so at most one
// remote item exists per local product.
func (c *Client) SyncProduct(ctx context.Context, p paint.Product, isUpdate bool) (Item, error) {
	fields := ToFields(p, c.adminUserID, c.now())
	logger := log.WithFields(log.Fields{"product": p.ID, "update": isUpdate})

	if isUpdate && p.Synced() {
		item, err := c.updateItem(ctx, *p.BitrixID, fields)
		if err == nil {
			logger.WithField("bitrix_id", item.ID).Info("bitrix item updated")
			return item, nil
		}
		if !IsNotFound(err) {
			return Item{}, err
		}
		logger.WithField("bitrix_id", *p.BitrixID).Warn("linked bitrix item is gone, resolving by external id")
	}

	existing, err := c.FindProductByExternalID(ctx, p.ID)
	if err != nil {
		return Item{}, err
	}
	if existing != nil {
		item, err := c.updateItem(ctx, existing.ID, fields)
		if err != nil {
			return Item{}, err
		}
		logger.WithField("bitrix_id", item.ID).Info("bitrix item updated")
		return item, nil
	}

	var res itemResult
	params := map[string]any{"entityTypeId": c.entityTypeID, "fields": fields}
	if err := c.call(ctx, methodItemAdd, params, &res); err != nil {
		return Item{}, err
	}
	logger.WithField("bitrix_id", res.Item.ID).Info("bitrix item created")
	return res.Item, nil
}

func (c *Client) updateItem(ctx context.Context, id int64, fields map[string]any) (Item, error) {
	var res itemResult
	params := map[string]any{"entityTypeId": c.entityTypeID, "id": id, "fields": fields}
	if err := c.call(ctx, methodItemUpdate, params, &res); err != nil {
		return Item{}, err
	}
	if res.Item.ID == 0 {
		res.Item.ID = id
	}
	return res.Item, nil
}

// FindProductByExternalID returns the remote item carrying the local id, or
// nil when there is none.
func (c *Client) FindProductByExternalID(ctx context.Context, id int64) (*Item, error) {
	var res itemsResult
	params := map[string]any{
		"entityTypeId": c.entityTypeID,
		"filter":       map[string]any{"=" + FieldExternalID: ExternalID(id)},
		"select":       selectFields,
	}
	if err := c.call(ctx, methodItemList, params, &res); err != nil {
		return nil, err
	}
	for i := range res.Items {
		if string(res.Items[i].ExternalID) == ExternalID(id) {
			item := res.Items[i]
			return &item, nil
		}
	}
	return nil, nil
}

// DeleteProduct removes the remote item for a local id. Deleting a product
// that was never synced is not an error.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	item, err := c.FindProductByExternalID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		log.WithField("product", id).Debug("no bitrix item to delete")
		return nil
	}
	params := map[string]any{"entityTypeId": c.entityTypeID, "id": item.ID}
	if err := c.call(ctx, methodItemDelete, params, nil); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	log.WithFields(log.Fields{"product": id, "bitrix_id": item.ID}).Info("bitrix item deleted")
	return nil
}

// SyncError is one failed product in a batch.
type SyncError struct {
	Product int64  `json:"product"`
	Error   string `json:"error"`
}

// SyncResult tallies a batch sync. Items maps local ids to the remote ids
// they were synced to.
type SyncResult struct {
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Errors     []SyncError     `json:"errors"`
	Items      map[int64]int64 `json:"-"`
}

// BatchSync pushes every product as an update. A failing product is recorded
// and the rest of the batch carries on.
func (c *Client) BatchSync(ctx context.Context, products []paint.Product) SyncResult {
	type outcome struct {
		item Item
		err  error
	}
	outcomes := make([]outcome, len(products))

	g := new(errgroup.Group)
	g.SetLimit(c.syncConcurrency)
	for i := range products {
		i := i
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			item, err := c.SyncProduct(callCtx, products[i], true)
			outcomes[i] = outcome{item: item, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := SyncResult{Errors: []SyncError{}, Items: make(map[int64]int64)}
	for i, o := range outcomes {
		if o.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SyncError{Product: products[i].ID, Error: errors.Cause(o.err).Error()})
			log.WithError(o.err).WithField("product", products[i].ID).Warn("batch sync item failed")
			continue
		}
		result.Successful++
		result.Items[products[i].ID] = o.item.ID
	}
	log.WithFields(log.Fields{"successful": result.Successful, "failed": result.Failed}).Info("batch sync finished")
	return result
}

// Package crmsync connects the paint catalog to the CRM: it turns local
// changes into background sync tasks and serves the CRM-facing endpoints.
package crmsync

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/wichananm65/paint-sync/internal/bitrix"
	"github.com/wichananm65/paint-sync/internal/paint"
	"github.com/wichananm65/paint-sync/internal/tasks"
)

// Remote is the part of the CRM client used here.
type Remote interface {
	SyncProduct(ctx context.Context, p paint.Product, isUpdate bool) (bitrix.Item, error)
	DeleteProduct(ctx context.Context, id int64) error
	BatchSync(ctx context.Context, products []paint.Product) bitrix.SyncResult
	ListItems(ctx context.Context, start, limit string) (bitrix.RawResponse, error)
	ListTypes(ctx context.Context) (bitrix.RawResponse, error)
}

// Queue accepts background work without blocking.
type Queue interface {
	Submit(t tasks.Task) error
	Stats() tasks.Stats
}

// Dispatcher implements paint.ChangeNotifier. A nil remote means the CRM
// is not configured and every notification is dropped.
type Dispatcher struct {
	remote   Remote
	repo     paint.Repository
	queue    Queue
	autoSync bool
}

var _ paint.ChangeNotifier = (*Dispatcher)(nil)

func NewDispatcher(remote Remote, repo paint.Repository, queue Queue, autoSync bool) *Dispatcher {
	return &Dispatcher{remote: remote, repo: repo, queue: queue, autoSync: autoSync}
}

func (d *Dispatcher) Configured() bool { return d.remote != nil }

func (d *Dispatcher) AutoSync() bool { return d.remote != nil && d.autoSync }

func (d *Dispatcher) ProductSaved(p paint.Product, isUpdate bool) {
	if !d.AutoSync() {
		return
	}
	d.submit(fmt.Sprintf("bitrix.sync product=%d", p.ID), func(ctx context.Context) error {
		item, err := d.remote.SyncProduct(ctx, p, isUpdate)
		if err != nil {
			return err
		}
		return d.link(ctx, p, item.ID)
	})
}

func (d *Dispatcher) ProductDeleted(p paint.Product) {
	if !d.AutoSync() {
		return
	}
	d.submit(fmt.Sprintf("bitrix.delete product=%d", p.ID), func(ctx context.Context) error {
		return d.remote.DeleteProduct(ctx, p.ID)
	})
}

func (d *Dispatcher) submit(name string, run func(ctx context.Context) error) {
	if err := d.queue.Submit(tasks.Task{Name: name, Run: run}); err != nil {
		log.WithError(err).WithField("task", name).Warn("bitrix sync not scheduled")
	}
}

// link records the remote id on the local product when it changed.
func (d *Dispatcher) link(ctx context.Context, p paint.Product, remoteID int64) error {
	if remoteID == 0 || (p.Synced() && *p.BitrixID == remoteID) {
		return nil
	}
	_, err := d.repo.Update(ctx, p.ID, paint.LinkPatch(remoteID))
	if errors.Is(err, paint.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("link product %d to bitrix item %d: %w", p.ID, remoteID, err)
	}
	return nil
}

// SyncAll pushes the whole catalog and links every synced product.
func (d *Dispatcher) SyncAll(ctx context.Context) (bitrix.SyncResult, error) {
	if d.remote == nil {
		return bitrix.SyncResult{}, bitrix.ErrNotConfigured
	}
	products, err := d.repo.List(ctx)
	if err != nil {
		return bitrix.SyncResult{}, err
	}
	result := d.remote.BatchSync(ctx, products)
	for _, p := range products {
		remoteID, ok := result.Items[p.ID]
		if !ok {
			continue
		}
		if err := d.link(ctx, p, remoteID); err != nil {
			log.WithError(err).WithField("product", p.ID).Warn("could not link synced product")
		}
	}
	return result, nil
}

// Unlink clears the CRM link of whichever local product points at remoteID.
// It reports whether a product was found.
func (d *Dispatcher) Unlink(ctx context.Context, remoteID int64) (bool, error) {
	products, err := d.repo.List(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range products {
		if p.BitrixID == nil || *p.BitrixID != remoteID {
			continue
		}
		if _, err := d.repo.Update(ctx, p.ID, paint.UnlinkPatch()); err != nil {
			if errors.Is(err, paint.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (d *Dispatcher) QueueStats() tasks.Stats {
	return d.queue.Stats()
}

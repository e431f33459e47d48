// Package review mediates every read and write of captured records and keeps
// the local review session consistent with the remote store.
package review

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"detectreview/internal/errs"
	"detectreview/internal/logger"
	"detectreview/internal/model"
)

// Store is the remote record store.
type Store interface {
	Create(ctx context.Context, imagePath string, detections []model.Detection) (int64, error)
	List(ctx context.Context) ([]model.CapturedRecord, error)
	Update(ctx context.Context, id int64, notes string) (model.CapturedRecord, error)
	// Delete removes the record and its image. A non-empty warning reports an
	// image that could not be removed after the record was deleted.
	Delete(ctx context.Context, id int64) (warning string, err error)
}

// SaveFunc writes annotated image bytes to durable storage and returns the
// path it wrote.
type SaveFunc func(image []byte) (string, error)

// Proxy owns the cached review session. Its operations are serialized.
type Proxy struct {
	store  Store
	logger *logger.Logger

	mu      sync.Mutex
	session Session
	loaded  bool
}

// NewProxy creates a proxy with no session loaded.
func NewProxy(store Store, logger *logger.Logger) *Proxy {
	return &Proxy{
		store:   store,
		logger:  logger,
		session: newSession(nil),
	}
}

// Session returns a copy of the cached session.
func (p *Proxy) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.clone()
}

// Loaded reports whether a session is currently held.
func (p *Proxy) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// LoadAll replaces the session with the store's records and puts the cursor
// on the first one.
func (p *Proxy) LoadAll(ctx context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	records, err := p.store.List(ctx)
	if err != nil {
		return p.session.clone(), storeError(err)
	}

	p.session = newSession(records)
	p.loaded = true
	p.logger.Info("Loaded %d captured records", len(records))
	return p.session.clone(), nil
}

// Discard drops the cached session.
func (p *Proxy) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = newSession(nil)
	p.loaded = false
}

// CapturePersist saves the annotated image through save and registers it
// with the store. The store is not called when saving fails. Any cached
// session is discarded since it no longer matches the store.
func (p *Proxy) CapturePersist(ctx context.Context, result model.DetectionResult, save SaveFunc) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(result.AnnotatedImage) == 0 {
		return 0, errs.Wrapf(errs.ErrPersistFailed, "result has no annotated image")
	}

	path, err := save(result.AnnotatedImage)
	if err != nil {
		return 0, errs.Wrapf(errs.ErrPersistFailed, "failed to save image: %v", err)
	}

	id, err := p.store.Create(ctx, path, result.Detections)
	if err != nil {
		p.logger.Warning("Saved %s but the store rejected it: %v", path, err)
		return 0, storeError(err)
	}

	p.session = newSession(nil)
	p.loaded = false
	p.logger.Info("Captured record %d at %s", id, path)
	return id, nil
}

// UpdateNotes sets the notes of a record and replaces it in the session with
// what the store returned. The cursor does not move.
func (p *Proxy) UpdateNotes(ctx context.Context, id int64, notes string) (model.CapturedRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, err := p.store.Update(ctx, id, notes)
	if err != nil {
		return model.CapturedRecord{}, storeError(err)
	}

	if i := p.session.indexOf(id); i >= 0 {
		next := p.session.clone()
		next.Records[i] = record
		p.session = next
	}
	return record, nil
}

// DeleteRecord removes a record from the store and the session. The
// returned warning is non-empty when the store could not remove the image.
func (p *Proxy) DeleteRecord(ctx context.Context, id int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	warning, err := p.store.Delete(ctx, id)
	if err != nil {
		return "", storeError(err)
	}
	if warning != "" {
		p.logger.Warning("Record %d deleted: %s", id, warning)
	}

	if i := p.session.indexOf(id); i >= 0 {
		p.session = p.session.without(i)
	}
	return warning, nil
}

// Navigate moves the cursor by delta, staying put at either end.
func (p *Proxy) Navigate(delta int) Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = p.session.navigate(delta)
	return p.session.clone()
}

// SelectIndex puts the cursor on index i.
func (p *Proxy) SelectIndex(i int) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.session.Records) {
		return p.session.clone(), errs.Wrapf(errs.ErrInvalidTransition,
			"index %d out of range [0, %d)", i, len(p.session.Records))
	}
	p.session.Cursor = i
	return p.session.clone(), nil
}

// storeError keeps taxonomy errors from the store and files everything else
// under StoreUnavailable.
func storeError(err error) error {
	for _, kind := range []error{errs.ErrStoreUnavailable, errs.ErrPersistFailed, errs.ErrRecordNotFound} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return errors.Wrap(errs.ErrStoreUnavailable, err.Error())
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"rfpquote/internal"
	"rfpquote/internal/config"
	"rfpquote/internal/storage"
)

var ErrNoStoredReference = errors.New("no reference data in storage")

const (
	metaLastImport = "reference.last_import"
	metaLastPull   = "reference.last_remote_pull"
	metaLastWrite  = "reference.last_admin_write"
)

// SyncService keeps the persisted reference tables and the published snapshot in step.
// Every write is validated on a copy of the current snapshot, persisted, then published.
type SyncService struct {
	db     *storage.DB
	client *Client
	holder *Holder
	cfg    config.Config
}

func NewSyncService(db *storage.DB, holder *Holder, cfg config.Config) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), holder: holder, cfg: cfg}
}

func (s *SyncService) Holder() *Holder { return s.holder }

// LoadFromDB builds a snapshot from storage.
func LoadFromDB(db *storage.DB) (*Reference, error) {
	products, err := db.ListProducts()
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNoStoredReference
	}
	tests, err := db.ListTestPrices()
	if err != nil {
		return nil, err
	}
	tiers, err := db.ListDiscountTiers()
	if err != nil {
		return nil, err
	}
	if len(tiers) == 0 {
		tiers = DefaultDiscountTiers()
	}
	return NewReference(products, tests, tiers)
}

// ImportDir loads reference files from dir, overwrites storage and publishes them.
func (s *SyncService) ImportDir(dir string) (*Reference, error) {
	ref, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if err := s.replace(ref, metaLastImport); err != nil {
		return nil, err
	}
	log.Info().Str("dir", dir).Int("products", ref.Index().Len()).Int("tests", ref.Tests().Len()).Msg("reference imported")
	return ref, nil
}

// PullRemote fetches the reference tables from the remote service.
func (s *SyncService) PullRemote(ctx context.Context) (*Reference, error) {
	ref, err := s.client.FetchReference(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.replace(ref, metaLastPull); err != nil {
		return nil, err
	}
	log.Info().Str("url", s.cfg.ReferenceBaseURL).Int("products", ref.Index().Len()).Msg("reference pulled")
	return ref, nil
}

// Reload republishes whatever is in storage. It reports whether the snapshot changed.
func (s *SyncService) Reload() (bool, error) {
	ref, err := LoadFromDB(s.db)
	if err != nil {
		return false, err
	}
	changed := false
	_, err = s.holder.Update(func(cur *Reference) (*Reference, error) {
		changed = !sameReference(cur, ref)
		if !changed {
			return cur, nil
		}
		return ref, nil
	})
	return changed, err
}

func (s *SyncService) replace(ref *Reference, metaKey string) error {
	_, err := s.holder.Update(func(*Reference) (*Reference, error) {
		if err := s.db.ReplaceReference(ref.Products(), ref.Tests().Entries(), ref.Tiers()); err != nil {
			return nil, fmt.Errorf("persist reference: %w", err)
		}
		return ref, nil
	})
	if err != nil {
		return err
	}
	s.stamp(metaKey)
	return nil
}

func (s *SyncService) UpsertProduct(p internal.CatalogProduct) (*Reference, error) {
	return s.write(func(cur *Reference) (*Reference, error) {
		next, err := cur.WithProduct(p)
		if err != nil {
			return nil, err
		}
		return next, s.db.UpsertProduct(p)
	})
}

// DeleteProduct reports false when the SKU is unknown.
func (s *SyncService) DeleteProduct(sku string) (bool, error) {
	found := false
	_, err := s.write(func(cur *Reference) (*Reference, error) {
		next, ok, err := cur.WithoutProduct(sku)
		if err != nil || !ok {
			return cur, err
		}
		found = true
		_, err = s.db.DeleteProduct(sku)
		return next, err
	})
	return found, err
}

func (s *SyncService) UpsertTest(entry internal.TestPriceEntry) (*Reference, error) {
	return s.write(func(cur *Reference) (*Reference, error) {
		next, err := cur.WithTest(entry)
		if err != nil {
			return nil, err
		}
		return next, s.db.UpsertTestPrice(entry)
	})
}

func (s *SyncService) DeleteTest(name string) (bool, error) {
	found := false
	_, err := s.write(func(cur *Reference) (*Reference, error) {
		next, ok, err := cur.WithoutTest(name)
		if err != nil || !ok {
			return cur, err
		}
		found = true
		_, err = s.db.DeleteTestPrice(name)
		return next, err
	})
	return found, err
}

func (s *SyncService) SetTiers(tiers []internal.DiscountTier) (*Reference, error) {
	return s.write(func(cur *Reference) (*Reference, error) {
		next, err := cur.WithTiers(tiers)
		if err != nil {
			return nil, err
		}
		return next, s.db.ReplaceDiscountTiers(next.Tiers())
	})
}

func (s *SyncService) write(fn func(cur *Reference) (*Reference, error)) (*Reference, error) {
	next, err := s.holder.Update(func(cur *Reference) (*Reference, error) {
		if cur == nil {
			return nil, ErrNoStoredReference
		}
		return fn(cur)
	})
	if err != nil {
		return nil, err
	}
	s.stamp(metaLastWrite)
	return next, nil
}

// stamp records when the reference tables last changed. A failure does not undo
// the write it follows.
func (s *SyncService) stamp(key string) {
	if err := s.db.SetMetadata(key, time.Now().UTC().Format(time.RFC3339)); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("reference timestamp not recorded")
	}
}

func sameReference(a, b *Reference) bool {
	if a == nil || b == nil {
		return a == b
	}
	ap, bp := a.Products(), b.Products()
	if len(ap) != len(bp) {
		return false
	}
	for i := range ap {
		if ap[i].SKU != bp[i].SKU || ap[i].Name != bp[i].Name || ap[i].Category != bp[i].Category ||
			!ap[i].BasePricePerMeter.Equal(bp[i].BasePricePerMeter) || len(ap[i].Specs) != len(bp[i].Specs) {
			return false
		}
		for k := range ap[i].Specs {
			if ap[i].SpecDisplay(k) != bp[i].SpecDisplay(k) {
				return false
			}
		}
	}
	at, bt := a.Tests().Entries(), b.Tests().Entries()
	if len(at) != len(bt) {
		return false
	}
	for i := range at {
		if at[i].Name != bt[i].Name || !at[i].Price.Equal(bt[i].Price) || at[i].DurationDays != bt[i].DurationDays {
			return false
		}
	}
	atr, btr := a.Tiers(), b.Tiers()
	if len(atr) != len(btr) {
		return false
	}
	for i := range atr {
		if !atr[i].MinQuantity.Equal(btr[i].MinQuantity) || !atr[i].DiscountPercent.Equal(btr[i].DiscountPercent) {
			return false
		}
	}
	return true
}

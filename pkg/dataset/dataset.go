// Package dataset implements the content-addressed dataset store:
// type-specific encoding, deflate compression above a threshold, a
// 64-bit content hash used as the dedup key, and insert-or-reuse /
// in-place-update / bulk-insert / ownership operations over it.
//
// Grounded on original_source/HydraServer/db/model.py's Dataset.set_val
// / set_hash / set_owner for exact semantics, and on the teacher's
// pkg/storage/boltdb.go for the persistence shape.
package dataset

import (
	"time"

	"github.com/hydroframe/scenario-engine/pkg/errs"
	"github.com/hydroframe/scenario-engine/pkg/log"
	"github.com/hydroframe/scenario-engine/pkg/metrics"
	"github.com/hydroframe/scenario-engine/pkg/store"
	"github.com/hydroframe/scenario-engine/pkg/types"
)

// TimePoint is one (timestamp, value) pair accepted by Encode for the
// timeseries list form. Value is the raw token as received — a literal
// number, array, or object is coerced from its textual form during
// encoding; anything else is retained as a JSON string.
type TimePoint struct {
	Timestamp time.Time
	Value     string
}

// Store is the DatasetStore of spec.md §4.1.
type Store struct {
	CompressionThreshold int
}

// New builds a Store with the given compression_threshold (spec.md §6).
func New(compressionThreshold int) *Store {
	if compressionThreshold <= 0 {
		compressionThreshold = 5000
	}
	return &Store{CompressionThreshold: compressionThreshold}
}

// PermissionChecker is the subset of pkg/permission.Guard the dataset
// store needs, kept narrow so pkg/dataset does not import
// pkg/permission; *permission.Guard satisfies it, and tests can pass a
// stub.
type PermissionChecker interface {
	CanViewDataset(sess *store.Session, userID int64, d *types.Dataset) (bool, error)
}

// AddOrReuse encodes raw, computes its content hash, and either returns
// an existing Dataset with the same hash (aliasing, spec.md law 4) or
// inserts a new one owned by userID.
func (st *Store) AddOrReuse(
	sess *store.Session,
	guard PermissionChecker,
	dtype types.DatasetType,
	raw any,
	units, dimension, name string,
	metadata map[string]string,
	userID int64,
) (*types.Dataset, error) {
	canonical, err := Encode(dtype, raw)
	if err != nil {
		return nil, err
	}

	hash := Hash(name, units, dimension, dtype, canonical, metadata)

	existing, err := sess.GetDatasetByHash(hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		visible, err := guard.CanViewDataset(sess, userID, existing)
		if err != nil {
			return nil, err
		}
		if !visible {
			metrics.PermissionDenialsTotal.WithLabelValues("dataset", "view").Inc()
			return nil, errs.New(errs.Permission, "user %d cannot view dataset %d", userID, existing.DatasetID)
		}
		metrics.DatasetOutcomesTotal.WithLabelValues("reused").Inc()
		return existing, nil
	}

	value := Compress(canonical, st.CompressionThreshold)

	d := &types.Dataset{
		Type:      dtype,
		Name:      name,
		Units:     units,
		Dimension: dimension,
		Value:     value,
		Hash:      hash,
		Hidden:    types.No,
		CreatedBy: userID,
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}
	if dtype == types.DatasetTimeseries {
		start, freq := inferTimeseriesSummary(canonical)
		d.StartTime, d.Frequency = start, freq
	}

	if err := sess.CreateDataset(d); err != nil {
		return nil, err
	}
	if err := sess.SetOwner(&types.Owner{
		Entity: types.OwnerEntityDataset, EntityID: d.DatasetID, UserID: userID,
		View: types.Yes, Edit: types.Yes, Share: types.Yes,
	}); err != nil {
		return nil, err
	}

	metrics.DatasetOutcomesTotal.WithLabelValues("created").Inc()
	metrics.DatasetBytesStored.Add(float64(len(value)))
	log.WithDatasetID(d.DatasetID).Debug().Msg("dataset created")

	return d, nil
}

// Update mutates an existing Dataset in place. Per spec.md §4.4's
// dataset mutation policy this is only valid when the dataset is
// provably private to the caller's reference; if the recomputed hash
// collides with a *different* dataset, callers must catch the Conflict
// and fall back to AddOrReuse.
func (st *Store) Update(
	sess *store.Session,
	datasetID int64,
	dtype types.DatasetType,
	raw any,
	units, dimension, name string,
	metadata map[string]string,
) (*types.Dataset, error) {
	existing, err := sess.GetDataset(datasetID)
	if err != nil {
		return nil, err
	}

	canonical, err := Encode(dtype, raw)
	if err != nil {
		return nil, err
	}
	newHash := Hash(name, units, dimension, dtype, canonical, metadata)

	if newHash != existing.Hash {
		collision, err := sess.GetDatasetByHash(newHash)
		if err != nil {
			return nil, err
		}
		if collision != nil && collision.DatasetID != datasetID {
			return nil, errs.New(errs.Conflict, "dataset %d's new hash collides with dataset %d", datasetID, collision.DatasetID)
		}
	}

	oldHash := existing.Hash
	existing.Type = dtype
	existing.Name = name
	existing.Units = units
	existing.Dimension = dimension
	existing.Value = Compress(canonical, st.CompressionThreshold)
	existing.Hash = newHash
	existing.Metadata = metadata
	if dtype == types.DatasetTimeseries {
		existing.StartTime, existing.Frequency = inferTimeseriesSummary(canonical)
	}

	if err := sess.UpdateDataset(existing, oldHash); err != nil {
		return nil, err
	}
	log.WithDatasetID(existing.DatasetID).Debug().Msg("dataset updated in place")
	return existing, nil
}

// Item is one input to BulkInsert.
type Item struct {
	Type      types.DatasetType
	Raw       any
	Units     string
	Dimension string
	Name      string
	Metadata  map[string]string
}

// BulkInsert runs AddOrReuse for each item, preserving positions.
func (st *Store) BulkInsert(sess *store.Session, guard PermissionChecker, items []Item, userID int64) ([]*types.Dataset, error) {
	out := make([]*types.Dataset, len(items))
	for i, it := range items {
		d, err := st.AddOrReuse(sess, guard, it.Type, it.Raw, it.Units, it.Dimension, it.Name, it.Metadata, userID)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// SetOwner creates or updates the owner row for (dataset, user). The
// creator always retains full permission regardless of owner rows
// (spec.md §3 invariant 5), so SetOwner is a no-op against the creator.
func (st *Store) SetOwner(sess *store.Session, datasetID, userID int64, view, edit, share bool) error {
	d, err := sess.GetDataset(datasetID)
	if err != nil {
		return err
	}
	if d.CreatedBy == userID {
		return nil
	}
	return sess.SetOwner(&types.Owner{
		Entity: types.OwnerEntityDataset, EntityID: datasetID, UserID: userID,
		View: types.BoolFlag(view), Edit: types.BoolFlag(edit), Share: types.BoolFlag(share),
	})
}

// UnsetOwner removes the owner row for (dataset, user). The creator can
// never be unset (spec.md §4.1).
func (st *Store) UnsetOwner(sess *store.Session, datasetID, userID int64) error {
	d, err := sess.GetDataset(datasetID)
	if err != nil {
		return err
	}
	if d.CreatedBy == userID {
		return errs.New(errs.Permission, "cannot remove the creator's ownership of dataset %d", datasetID)
	}
	return sess.UnsetOwner(types.OwnerEntityDataset, datasetID, userID)
}

// Decompress returns d's logical (uncompressed) value bytes. Per
// spec.md §4.1/§7, decompression is opportunistic: if inflate fails the
// bytes are assumed to have been stored uncompressed, and are returned
// as-is rather than raising an error.
func Decompress(value []byte) []byte {
	out, ok := tryInflate(value)
	if !ok {
		return value
	}
	return out
}

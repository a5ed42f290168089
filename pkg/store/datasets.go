package store

import (
	"encoding/json"

	"github.com/hydroframe/scenario-engine/pkg/types"
)

// --- Dataset ---

// CreateDataset inserts a new Dataset and indexes it by hash. Callers
// (pkg/dataset) are responsible for having already checked the hash
// index is clear; within a single writable Session this is race-free
// because bbolt allows only one open write transaction at a time (see
// SPEC_FULL.md §5).
func (s *Session) CreateDataset(d *types.Dataset) error {
	if d.DatasetID == 0 {
		id, err := s.NextID("dataset")
		if err != nil {
			return err
		}
		d.DatasetID = id
	}
	if err := s.putJSON(bDatasets, idKey(d.DatasetID), d); err != nil {
		return err
	}
	return s.bucket(bDatasetHashIdx).Put(u64Key(d.Hash), idKey(d.DatasetID))
}

func (s *Session) GetDataset(id int64) (*types.Dataset, error) {
	var d types.Dataset
	if err := s.getJSON(bDatasets, idKey(id), &d, "dataset", id); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDatasetByHash returns the Dataset already stored under hash, or
// (nil, nil) if none exists — the aliasing lookup of spec.md §4.1
// addOrReuse.
func (s *Session) GetDatasetByHash(hash uint64) (*types.Dataset, error) {
	idBytes := s.bucket(bDatasetHashIdx).Get(u64Key(hash))
	if idBytes == nil {
		return nil, nil
	}
	return s.GetDataset(idFromKey(idBytes))
}

// UpdateDataset overwrites a Dataset in place, re-indexing it under its
// (possibly changed) hash and dropping the stale hash index entry.
// Used only by the in-place mutation path of the dataset mutation
// policy (spec.md §4.4), never when other ResourceScenarios reference
// the dataset.
func (s *Session) UpdateDataset(d *types.Dataset, oldHash uint64) error {
	if oldHash != d.Hash {
		if err := s.bucket(bDatasetHashIdx).Delete(u64Key(oldHash)); err != nil {
			return err
		}
	}
	if err := s.putJSON(bDatasets, idKey(d.DatasetID), d); err != nil {
		return err
	}
	return s.bucket(bDatasetHashIdx).Put(u64Key(d.Hash), idKey(d.DatasetID))
}

// --- Metadata ---

// metadata is stored inline on types.Dataset.Metadata rather than as
// separate tMetadata rows — the spec models it as an unordered mapping
// attached to a Dataset (spec.md §3), and nothing queries metadata
// independent of its dataset, so a denormalized map avoids a join for
// every dataset read. (bMetadata bucket is reserved for a future
// metadata-only query path; unused for now.)
var _ = bMetadata

// --- Owner ---

// SetOwner creates or updates the owner row for (entity, entityID, userID).
// Matches by userID first per the Open Question decision in DESIGN.md
// (the "safer reading" of the source's ambiguous set_owner).
func (s *Session) SetOwner(o *types.Owner) error {
	return s.putJSON(bOwners, ownerKey(string(o.Entity), o.EntityID, o.UserID), o)
}

func (s *Session) UnsetOwner(entity types.OwnerEntity, entityID, userID int64) error {
	return s.bucket(bOwners).Delete(ownerKey(string(entity), entityID, userID))
}

func (s *Session) GetOwner(entity types.OwnerEntity, entityID, userID int64) (*types.Owner, error) {
	data := s.bucket(bOwners).Get(ownerKey(string(entity), entityID, userID))
	if data == nil {
		return nil, nil
	}
	var o types.Owner
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOwners returns every owner row for (entity, entityID), in
// ascending user-id order.
func (s *Session) ListOwners(entity types.OwnerEntity, entityID int64) ([]*types.Owner, error) {
	prefix := ownerPrefix(string(entity), entityID)
	c := s.bucket(bOwners).Cursor()
	var out []*types.Owner
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		var o types.Owner
		if err := json.Unmarshal(v, &o); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

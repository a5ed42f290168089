// Package query implements the read-side composition over pkg/store:
// resolving a resource's data in one or more scenarios, masking hidden
// datasets, and opportunistically decompressing values for callers.
//
// Grounded on get_scenario_data, get_resource_data, get_scenarios_data,
// get_resource_attribute_data, get_attribute_datasets in
// original_source/HydraServer/python/HydraServer/lib/scenario.py.
package query

import (
	"github.com/hydroframe/scenario-engine/pkg/dataset"
	"github.com/hydroframe/scenario-engine/pkg/permission"
	"github.com/hydroframe/scenario-engine/pkg/store"
	"github.com/hydroframe/scenario-engine/pkg/types"
)

// Query composes reads over pkg/store. It is stateless.
type Query struct {
	Guard *permission.Guard
}

// New builds a Query.
func New(guard *permission.Guard) *Query { return &Query{Guard: guard} }

// Datum pairs a ResourceScenario with its ResourceAttr and Dataset, the
// shape every read operation below returns.
type Datum struct {
	ResourceAttr     *types.ResourceAttr
	ResourceScenario *types.ResourceScenario
	Dataset          *types.Dataset
}

// mask decompresses d.Value and, if d is hidden and userID cannot view
// it, blanks the value, timing and metadata fields while leaving the
// rest of the Dataset (name, type, units) visible — matching
// Dataset.check_read_permission's mutate-in-place masking.
func (q *Query) mask(sess *store.Session, userID int64, d *types.Dataset) (*types.Dataset, error) {
	visible, err := q.Guard.CanViewDataset(sess, userID, d)
	if err != nil {
		return nil, err
	}
	out := *d
	if !visible {
		out.Value = nil
		out.StartTime = ""
		out.Frequency = ""
		out.Metadata = nil
		return &out, nil
	}
	out.Value = dataset.Decompress(d.Value)
	return &out, nil
}

func attrMatchesResource(ra *types.ResourceAttr, refKey types.RefKey, resourceID int64) bool {
	if ra.RefKey != refKey {
		return false
	}
	ownerID, ok := ra.OwningResourceID()
	return ok && ownerID == resourceID
}

func containsInt64(set []int64, v int64) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// GetResourceData returns every ResourceScenario for the resource named
// by (refKey, resourceID), across scenarioIDs, optionally filtered to
// attrIDs (an empty attrIDs means no filter; get_resource_data's
// type_id filter is expressed by the caller resolving a type to its
// attr ids first).
func (q *Query) GetResourceData(sess *store.Session, refKey types.RefKey, resourceID int64, scenarioIDs []int64, attrIDs []int64, userID int64) ([]*Datum, error) {
	var out []*Datum
	for _, scenarioID := range scenarioIDs {
		rss, err := sess.ListResourceScenarios(scenarioID)
		if err != nil {
			return nil, err
		}
		for _, rs := range rss {
			ra, err := sess.GetResourceAttr(rs.ResourceAttrID)
			if err != nil {
				return nil, err
			}
			if !attrMatchesResource(ra, refKey, resourceID) {
				continue
			}
			if !containsInt64(attrIDs, ra.AttrID) {
				continue
			}
			d, err := sess.GetDataset(rs.DatasetID)
			if err != nil {
				return nil, err
			}
			masked, err := q.mask(sess, userID, d)
			if err != nil {
				return nil, err
			}
			out = append(out, &Datum{ResourceAttr: ra, ResourceScenario: rs, Dataset: masked})
		}
	}
	return out, nil
}

// GetResourceAttributeData is GetResourceData narrowed by the caller to
// a single attribute up front (get_resource_attribute_data).
func (q *Query) GetResourceAttributeData(sess *store.Session, refKey types.RefKey, resourceID int64, scenarioIDs []int64, attrID int64, userID int64) ([]*Datum, error) {
	return q.GetResourceData(sess, refKey, resourceID, scenarioIDs, []int64{attrID}, userID)
}

// GetScenarioData returns the distinct Datasets referenced by any
// ResourceScenario in scenarioID, masked per hidden-dataset visibility
// (get_scenario_data).
func (q *Query) GetScenarioData(sess *store.Session, scenarioID int64, userID int64) ([]*types.Dataset, error) {
	rss, err := sess.ListResourceScenarios(scenarioID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(rss))
	var out []*types.Dataset
	for _, rs := range rss {
		if seen[rs.DatasetID] {
			continue
		}
		seen[rs.DatasetID] = true
		d, err := sess.GetDataset(rs.DatasetID)
		if err != nil {
			return nil, err
		}
		masked, err := q.mask(sess, userID, d)
		if err != nil {
			return nil, err
		}
		out = append(out, masked)
	}
	return out, nil
}

// ScenariosDataFilter narrows GetScenariosData, mirroring
// get_scenarios_data's optional network/node/link/attr filters. A
// non-empty AttrIDs must match; the network/node/link filters are
// alternatives, so a resource attr passes if it matches any one of the
// non-empty ones. A nil/empty field is not applied.
type ScenariosDataFilter struct {
	NetworkIDs []int64
	NodeIDs    []int64
	LinkIDs    []int64
	AttrIDs    []int64
}

func (f ScenariosDataFilter) matches(ra *types.ResourceAttr) bool {
	if len(f.AttrIDs) > 0 && !containsInt64(f.AttrIDs, ra.AttrID) {
		return false
	}
	anyResourceFilter := len(f.NetworkIDs) > 0 || len(f.NodeIDs) > 0 || len(f.LinkIDs) > 0
	if !anyResourceFilter {
		return true
	}
	switch ra.RefKey {
	case types.RefNetwork:
		return ra.NetworkID != nil && containsInt64(f.NetworkIDs, *ra.NetworkID)
	case types.RefNode:
		return ra.NodeID != nil && containsInt64(f.NodeIDs, *ra.NodeID)
	case types.RefLink:
		return ra.LinkID != nil && containsInt64(f.LinkIDs, *ra.LinkID)
	default:
		return false
	}
}

// GetScenariosData returns every matching ResourceScenario across
// scenarioIDs, per scenario, filtered by filter (get_scenarios_data).
func (q *Query) GetScenariosData(sess *store.Session, scenarioIDs []int64, filter ScenariosDataFilter, userID int64) (map[int64][]*Datum, error) {
	out := make(map[int64][]*Datum, len(scenarioIDs))
	for _, scenarioID := range scenarioIDs {
		rss, err := sess.ListResourceScenarios(scenarioID)
		if err != nil {
			return nil, err
		}
		var data []*Datum
		for _, rs := range rss {
			ra, err := sess.GetResourceAttr(rs.ResourceAttrID)
			if err != nil {
				return nil, err
			}
			if !filter.matches(ra) {
				continue
			}
			d, err := sess.GetDataset(rs.DatasetID)
			if err != nil {
				return nil, err
			}
			masked, err := q.mask(sess, userID, d)
			if err != nil {
				return nil, err
			}
			data = append(data, &Datum{ResourceAttr: ra, ResourceScenario: rs, Dataset: masked})
		}
		out[scenarioID] = data
	}
	return out, nil
}

// GetAttributeDatasets returns the ResourceAttrs bound to attrID that
// have a ResourceScenario in scenarioID (get_attribute_datasets).
func (q *Query) GetAttributeDatasets(sess *store.Session, attrID, scenarioID int64) ([]*types.ResourceAttr, error) {
	rss, err := sess.ListResourceScenarios(scenarioID)
	if err != nil {
		return nil, err
	}
	var out []*types.ResourceAttr
	for _, rs := range rss {
		ra, err := sess.GetResourceAttr(rs.ResourceAttrID)
		if err != nil {
			return nil, err
		}
		if ra.AttrID == attrID {
			out = append(out, ra)
		}
	}
	return out, nil
}

// Package differ implements ScenarioDiffer: a symmetric diff between two
// scenarios' resource scenarios and group memberships, both of which
// must belong to the same network.
//
// Grounded on compare_scenarios in
// original_source/HydraServer/python/HydraServer/lib/scenario.py, fixing
// the original's bug where the scenario-2-only branch dereferenced
// s1_rs (nil there) instead of s2_rs for resource_attr_id.
package differ

import (
	"github.com/hydroframe/scenario-engine/pkg/errs"
	"github.com/hydroframe/scenario-engine/pkg/permission"
	"github.com/hydroframe/scenario-engine/pkg/store"
	"github.com/hydroframe/scenario-engine/pkg/types"
)

// Differ computes ScenarioDiffer comparisons. It is stateless.
type Differ struct {
	Guard *permission.Guard
}

// New builds a Differ.
func New(guard *permission.Guard) *Differ { return &Differ{Guard: guard} }

// ResourceScenarioDiff describes one resource attr's value across the
// two compared scenarios; a nil Dataset1XorDataset2 side means the
// resource attr has no ResourceScenario in that scenario.
type ResourceScenarioDiff struct {
	ResourceAttrID int64
	Dataset1       *types.Dataset
	Dataset2       *types.Dataset
}

// GroupDiff is the symmetric difference between the two scenarios'
// group membership tuples.
type GroupDiff struct {
	Scenario1Only []*types.ResourceGroupItem
	Scenario2Only []*types.ResourceGroupItem
}

// Diff is the full ScenarioDiffer result.
type Diff struct {
	ResourceScenarios []ResourceScenarioDiff
	Groups            GroupDiff
}

func memberTuple(item *types.ResourceGroupItem) [5]int64 {
	deref := func(p *int64) int64 {
		if p == nil {
			return 0
		}
		return *p
	}
	var refKeyCode int64
	switch item.RefKey {
	case types.RefNode:
		refKeyCode = 1
	case types.RefLink:
		refKeyCode = 2
	case types.RefGroup:
		refKeyCode = 3
	}
	return [5]int64{item.GroupID, refKeyCode, deref(item.NodeID), deref(item.LinkID), deref(item.SubgroupID)}
}

// maskedDataset returns d unless it's hidden and userID cannot view it,
// in which case it returns d.Masked() — the caller sees that a value
// exists without seeing its contents.
func (df *Differ) maskedDataset(sess *store.Session, userID int64, d *types.Dataset) (*types.Dataset, error) {
	if d == nil {
		return nil, nil
	}
	visible, err := df.Guard.CanViewDataset(sess, userID, d)
	if err != nil {
		return nil, err
	}
	if !visible {
		masked := d.Masked()
		masked.Hidden = types.Yes
		return &masked, nil
	}
	return d, nil
}

// Compare computes the ScenarioDiffer between two scenarios in the same
// network.
func (df *Differ) Compare(sess *store.Session, scenarioID1, scenarioID2 int64, userID int64) (*Diff, error) {
	s1, err := sess.GetScenario(scenarioID1)
	if err != nil {
		return nil, err
	}
	s2, err := sess.GetScenario(scenarioID2)
	if err != nil {
		return nil, err
	}
	if s1.NetworkID != s2.NetworkID {
		return nil, errs.New(errs.CrossNetwork, "scenarios %d and %d are not in the same network", scenarioID1, scenarioID2)
	}

	rs1, err := sess.ListResourceScenarios(scenarioID1)
	if err != nil {
		return nil, err
	}
	rs2, err := sess.ListResourceScenarios(scenarioID2)
	if err != nil {
		return nil, err
	}

	byAttr1 := make(map[int64]*types.ResourceScenario, len(rs1))
	for _, rs := range rs1 {
		byAttr1[rs.ResourceAttrID] = rs
	}
	byAttr2 := make(map[int64]*types.ResourceScenario, len(rs2))
	for _, rs := range rs2 {
		byAttr2[rs.ResourceAttrID] = rs
	}

	getDataset := func(rs *types.ResourceScenario) (*types.Dataset, error) {
		if rs == nil {
			return nil, nil
		}
		return sess.GetDataset(rs.DatasetID)
	}

	var out []ResourceScenarioDiff
	for raID, r1 := range byAttr1 {
		r2 := byAttr2[raID]
		if r2 != nil {
			if r1.DatasetID == r2.DatasetID {
				continue
			}
			d1, err := getDataset(r1)
			if err != nil {
				return nil, err
			}
			d2, err := getDataset(r2)
			if err != nil {
				return nil, err
			}
			d1, err = df.maskedDataset(sess, userID, d1)
			if err != nil {
				return nil, err
			}
			d2, err = df.maskedDataset(sess, userID, d2)
			if err != nil {
				return nil, err
			}
			out = append(out, ResourceScenarioDiff{ResourceAttrID: raID, Dataset1: d1, Dataset2: d2})
			continue
		}
		d1, err := getDataset(r1)
		if err != nil {
			return nil, err
		}
		d1, err = df.maskedDataset(sess, userID, d1)
		if err != nil {
			return nil, err
		}
		out = append(out, ResourceScenarioDiff{ResourceAttrID: raID, Dataset1: d1, Dataset2: nil})
	}

	// Fixed: indexed by the scenario-2 resource attr id, not scenario-1's
	// (which has no entry here by construction).
	for raID, r2 := range byAttr2 {
		if _, ok := byAttr1[raID]; ok {
			continue
		}
		d2, err := getDataset(r2)
		if err != nil {
			return nil, err
		}
		d2, err = df.maskedDataset(sess, userID, d2)
		if err != nil {
			return nil, err
		}
		out = append(out, ResourceScenarioDiff{ResourceAttrID: raID, Dataset1: nil, Dataset2: d2})
	}

	items1, err := sess.ListResourceGroupItems(scenarioID1)
	if err != nil {
		return nil, err
	}
	items2, err := sess.ListResourceGroupItems(scenarioID2)
	if err != nil {
		return nil, err
	}

	tuples2 := make(map[[5]int64]bool, len(items2))
	for _, item := range items2 {
		tuples2[memberTuple(item)] = true
	}
	tuples1 := make(map[[5]int64]bool, len(items1))
	for _, item := range items1 {
		tuples1[memberTuple(item)] = true
	}

	var groupDiff GroupDiff
	for _, item := range items1 {
		if !tuples2[memberTuple(item)] {
			groupDiff.Scenario1Only = append(groupDiff.Scenario1Only, item)
		}
	}
	for _, item := range items2 {
		if !tuples1[memberTuple(item)] {
			groupDiff.Scenario2Only = append(groupDiff.Scenario2Only, item)
		}
	}

	return &Diff{ResourceScenarios: out, Groups: groupDiff}, nil
}

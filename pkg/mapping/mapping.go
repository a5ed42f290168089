// Package mapping implements MappingApplier: propagating a value from
// one resource attr's ResourceScenario to another's via a declared
// ResourceAttrMap link.
//
// Grounded on update_value_from_mapping in
// original_source/HydraServer/python/HydraServer/lib/scenario.py.
package mapping

import (
	"github.com/hydroframe/scenario-engine/pkg/errs"
	"github.com/hydroframe/scenario-engine/pkg/store"
	"github.com/hydroframe/scenario-engine/pkg/types"
)

// Applier propagates values across ResourceAttrMap links. It is
// stateless.
type Applier struct{}

// New builds an Applier.
func New() *Applier { return &Applier{} }

// UpdateValueFromMapping looks up the (order-insensitive) mapping
// between sourceRA and targetRA and applies one of its four cases:
//
//  1. both ResourceScenarios exist: rebind the target's dataset_id to
//     the source's and return the updated target.
//  2. only the source exists: create the target ResourceScenario
//     pointing at the source's dataset_id and return it.
//  3. only the target exists: delete it and return nil.
//  4. neither exists: no-op, return nil.
//
// All four cases are idempotent: re-applying after case 1 or 2 is a
// no-op rebind to the same dataset_id; re-applying after case 3 finds
// no target to delete.
func (a *Applier) UpdateValueFromMapping(sess *store.Session, sourceRA, targetRA, sourceScenarioID, targetScenarioID int64) (*types.ResourceScenario, error) {
	mapping, err := sess.FindResourceAttrMap(sourceRA, targetRA)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		return nil, errs.New(errs.NotFound, "mapping between resource attrs %d and %d not found", sourceRA, targetRA)
	}

	if _, err := sess.GetScenario(sourceScenarioID); err != nil {
		return nil, err
	}
	if _, err := sess.GetScenario(targetScenarioID); err != nil {
		return nil, err
	}

	rs1, err := sess.GetResourceScenario(sourceScenarioID, sourceRA)
	if err != nil {
		return nil, err
	}
	rs2, err := sess.GetResourceScenario(targetScenarioID, targetRA)
	if err != nil {
		return nil, err
	}

	if rs1 == nil {
		if rs2 != nil {
			if err := sess.DeleteResourceScenario(targetScenarioID, targetRA); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	if rs2 == nil {
		rs2 = &types.ResourceScenario{ScenarioID: targetScenarioID, ResourceAttrID: targetRA}
	}
	rs2.DatasetID = rs1.DatasetID
	if err := sess.PutResourceScenario(rs2); err != nil {
		return nil, err
	}
	return rs2, nil
}

package store

import (
	"encoding/json"

	"github.com/hydroframe/scenario-engine/pkg/types"
)

// --- Scenario ---

func (s *Session) CreateScenario(sc *types.Scenario) error {
	if sc.ScenarioID == 0 {
		id, err := s.NextID("scenario")
		if err != nil {
			return err
		}
		sc.ScenarioID = id
	}
	return s.putJSON(bScenarios, idKey(sc.ScenarioID), sc)
}

func (s *Session) GetScenario(id int64) (*types.Scenario, error) {
	var sc types.Scenario
	if err := s.getJSON(bScenarios, idKey(id), &sc, "scenario", id); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Session) UpdateScenario(sc *types.Scenario) error {
	return s.putJSON(bScenarios, idKey(sc.ScenarioID), sc)
}

func (s *Session) DeleteScenario(id int64) error {
	return s.bucket(bScenarios).Delete(idKey(id))
}

func (s *Session) ListScenariosByNetwork(networkID int64) ([]*types.Scenario, error) {
	var out []*types.Scenario
	err := s.bucket(bScenarios).ForEach(func(_, v []byte) error {
		var sc types.Scenario
		if err := json.Unmarshal(v, &sc); err != nil {
			return err
		}
		if sc.NetworkID == networkID {
			out = append(out, &sc)
		}
		return nil
	})
	return out, err
}

// --- ResourceScenario ---
//
// Keyed by (scenario_id, resource_attr_id) so that every resource
// scenario belonging to one scenario sits under a single key prefix,
// matching the primary key spec.md §3 assigns the table.

func (s *Session) PutResourceScenario(rs *types.ResourceScenario) error {
	return s.putJSON(bResourceScenarios, compositeKey(rs.ScenarioID, rs.ResourceAttrID), rs)
}

func (s *Session) GetResourceScenario(scenarioID, resourceAttrID int64) (*types.ResourceScenario, error) {
	key := compositeKey(scenarioID, resourceAttrID)
	data := s.bucket(bResourceScenarios).Get(key)
	if data == nil {
		return nil, nil
	}
	var rs types.ResourceScenario
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (s *Session) DeleteResourceScenario(scenarioID, resourceAttrID int64) error {
	return s.bucket(bResourceScenarios).Delete(compositeKey(scenarioID, resourceAttrID))
}

// ListResourceScenarios returns every ResourceScenario for a scenario,
// via a prefix scan on the composite key's leading scenario_id bytes.
func (s *Session) ListResourceScenarios(scenarioID int64) ([]*types.ResourceScenario, error) {
	prefix := idKey(scenarioID)
	c := s.bucket(bResourceScenarios).Cursor()
	var out []*types.ResourceScenario
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		var rs types.ResourceScenario
		if err := json.Unmarshal(v, &rs); err != nil {
			return nil, err
		}
		out = append(out, &rs)
	}
	return out, nil
}

// CountResourceScenariosByDataset counts how many ResourceScenario rows
// reference datasetID, across all scenarios. Used by the dataset
// mutation policy (spec.md §4.4) to decide in-place update vs.
// addOrReuse-and-rebind. Acceptable as a full scan at this scale per
// spec.md §5; see SPEC_FULL.md §4.7.
func (s *Session) CountResourceScenariosByDataset(datasetID int64) (int, error) {
	count := 0
	err := s.bucket(bResourceScenarios).ForEach(func(_, v []byte) error {
		var rs types.ResourceScenario
		if err := json.Unmarshal(v, &rs); err != nil {
			return err
		}
		if rs.DatasetID == datasetID {
			count++
		}
		return nil
	})
	return count, err
}

// ListResourceScenariosByDataset returns every ResourceScenario
// referencing datasetID (pkg/scenario's get_dataset_scenarios).
func (s *Session) ListResourceScenariosByDataset(datasetID int64) ([]*types.ResourceScenario, error) {
	var out []*types.ResourceScenario
	err := s.bucket(bResourceScenarios).ForEach(func(_, v []byte) error {
		var rs types.ResourceScenario
		if err := json.Unmarshal(v, &rs); err != nil {
			return err
		}
		if rs.DatasetID == datasetID {
			out = append(out, &rs)
		}
		return nil
	})
	return out, err
}

// --- ResourceGroupItem ---

func (s *Session) CreateResourceGroupItem(item *types.ResourceGroupItem) error {
	if item.ItemID == 0 {
		id, err := s.NextID("resourcegroupitem")
		if err != nil {
			return err
		}
		item.ItemID = id
	}
	if err := s.putJSON(bResourceGroupItems, idKey(item.ItemID), item); err != nil {
		return err
	}
	idxKey := compositeKey(item.ScenarioID, item.ItemID)
	return s.bucket(bRGIByScenario).Put(idxKey, idKey(item.ItemID))
}

func (s *Session) DeleteResourceGroupItem(item *types.ResourceGroupItem) error {
	if err := s.bucket(bResourceGroupItems).Delete(idKey(item.ItemID)); err != nil {
		return err
	}
	return s.bucket(bRGIByScenario).Delete(compositeKey(item.ScenarioID, item.ItemID))
}

func (s *Session) ListResourceGroupItems(scenarioID int64) ([]*types.ResourceGroupItem, error) {
	prefix := idKey(scenarioID)
	c := s.bucket(bRGIByScenario).Cursor()
	var out []*types.ResourceGroupItem
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		item, err := s.getResourceGroupItemByIDBytes(v)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Session) getResourceGroupItemByIDBytes(idBytes []byte) (*types.ResourceGroupItem, error) {
	data := s.bucket(bResourceGroupItems).Get(idBytes)
	if data == nil {
		return nil, notFound("resourcegroupitem", idFromKey(idBytes))
	}
	var item types.ResourceGroupItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Session) ListResourceGroupItemsInGroup(scenarioID, groupID int64) ([]*types.ResourceGroupItem, error) {
	items, err := s.ListResourceGroupItems(scenarioID)
	if err != nil {
		return nil, err
	}
	var out []*types.ResourceGroupItem
	for _, it := range items {
		if it.GroupID == groupID {
			out = append(out, it)
		}
	}
	return out, nil
}

// --- ResourceAttrMap ---

func (s *Session) FindResourceAttrMap(raA, raB int64) (*types.ResourceAttrMap, error) {
	var found *types.ResourceAttrMap
	err := s.bucket(bResourceAttrMaps).ForEach(func(_, v []byte) error {
		var m types.ResourceAttrMap
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		if (m.SourceResourceAttrID == raA && m.TargetResourceAttrID == raB) ||
			(m.SourceResourceAttrID == raB && m.TargetResourceAttrID == raA) {
			found = &m
		}
		return nil
	})
	return found, err
}

func (s *Session) CreateResourceAttrMap(m *types.ResourceAttrMap) error {
	key := compositeKey(m.SourceResourceAttrID, m.TargetResourceAttrID)
	return s.putJSON(bResourceAttrMaps, key, m)
}

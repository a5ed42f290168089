package store

import (
	"encoding/json"

	"github.com/hydroframe/scenario-engine/pkg/types"
)

// --- Project ---

func (s *Session) CreateProject(p *types.Project) error {
	if p.ProjectID == 0 {
		id, err := s.NextID("project")
		if err != nil {
			return err
		}
		p.ProjectID = id
	}
	return s.putJSON(bProjects, idKey(p.ProjectID), p)
}

func (s *Session) GetProject(id int64) (*types.Project, error) {
	var p types.Project
	if err := s.getJSON(bProjects, idKey(id), &p, "project", id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Session) UpdateProject(p *types.Project) error {
	return s.putJSON(bProjects, idKey(p.ProjectID), p)
}

func (s *Session) ListProjects() ([]*types.Project, error) {
	var out []*types.Project
	err := s.bucket(bProjects).ForEach(func(_, v []byte) error {
		var p types.Project
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		out = append(out, &p)
		return nil
	})
	return out, err
}

func (s *Session) DeleteProject(id int64) error {
	return s.bucket(bProjects).Delete(idKey(id))
}

// --- Network ---

func (s *Session) CreateNetwork(n *types.Network) error {
	if n.NetworkID == 0 {
		id, err := s.NextID("network")
		if err != nil {
			return err
		}
		n.NetworkID = id
	}
	return s.putJSON(bNetworks, idKey(n.NetworkID), n)
}

func (s *Session) GetNetwork(id int64) (*types.Network, error) {
	var n types.Network
	if err := s.getJSON(bNetworks, idKey(id), &n, "network", id); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Session) UpdateNetwork(n *types.Network) error {
	return s.putJSON(bNetworks, idKey(n.NetworkID), n)
}

func (s *Session) ListNetworksByProject(projectID int64) ([]*types.Network, error) {
	var out []*types.Network
	err := s.bucket(bNetworks).ForEach(func(_, v []byte) error {
		var n types.Network
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		if n.ProjectID == projectID {
			out = append(out, &n)
		}
		return nil
	})
	return out, err
}

func (s *Session) DeleteNetwork(id int64) error {
	return s.bucket(bNetworks).Delete(idKey(id))
}

// --- Node ---

func (s *Session) CreateNode(n *types.Node) error {
	if n.NodeID == 0 {
		id, err := s.NextID("node")
		if err != nil {
			return err
		}
		n.NodeID = id
	}
	return s.putJSON(bNodes, idKey(n.NodeID), n)
}

func (s *Session) GetNode(id int64) (*types.Node, error) {
	var n types.Node
	if err := s.getJSON(bNodes, idKey(id), &n, "node", id); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Session) ListNodesByNetwork(networkID int64) ([]*types.Node, error) {
	var out []*types.Node
	err := s.bucket(bNodes).ForEach(func(_, v []byte) error {
		var n types.Node
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		if n.NetworkID == networkID {
			out = append(out, &n)
		}
		return nil
	})
	return out, err
}

func (s *Session) DeleteNode(id int64) error {
	return s.bucket(bNodes).Delete(idKey(id))
}

// --- Link ---

func (s *Session) CreateLink(l *types.Link) error {
	if l.LinkID == 0 {
		id, err := s.NextID("link")
		if err != nil {
			return err
		}
		l.LinkID = id
	}
	return s.putJSON(bLinks, idKey(l.LinkID), l)
}

func (s *Session) GetLink(id int64) (*types.Link, error) {
	var l types.Link
	if err := s.getJSON(bLinks, idKey(id), &l, "link", id); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Session) ListLinksByNetwork(networkID int64) ([]*types.Link, error) {
	var out []*types.Link
	err := s.bucket(bLinks).ForEach(func(_, v []byte) error {
		var l types.Link
		if err := json.Unmarshal(v, &l); err != nil {
			return err
		}
		if l.NetworkID == networkID {
			out = append(out, &l)
		}
		return nil
	})
	return out, err
}

func (s *Session) DeleteLink(id int64) error {
	return s.bucket(bLinks).Delete(idKey(id))
}

// --- ResourceGroup ---

func (s *Session) CreateResourceGroup(g *types.ResourceGroup) error {
	if g.GroupID == 0 {
		id, err := s.NextID("resourcegroup")
		if err != nil {
			return err
		}
		g.GroupID = id
	}
	return s.putJSON(bResourceGroups, idKey(g.GroupID), g)
}

func (s *Session) GetResourceGroup(id int64) (*types.ResourceGroup, error) {
	var g types.ResourceGroup
	if err := s.getJSON(bResourceGroups, idKey(id), &g, "resourcegroup", id); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Session) ListResourceGroupsByNetwork(networkID int64) ([]*types.ResourceGroup, error) {
	var out []*types.ResourceGroup
	err := s.bucket(bResourceGroups).ForEach(func(_, v []byte) error {
		var g types.ResourceGroup
		if err := json.Unmarshal(v, &g); err != nil {
			return err
		}
		if g.NetworkID == networkID {
			out = append(out, &g)
		}
		return nil
	})
	return out, err
}

func (s *Session) DeleteResourceGroup(id int64) error {
	return s.bucket(bResourceGroups).Delete(idKey(id))
}

// --- Attr ---

func (s *Session) CreateAttr(a *types.Attr) error {
	if a.AttrID == 0 {
		id, err := s.NextID("attr")
		if err != nil {
			return err
		}
		a.AttrID = id
	}
	return s.putJSON(bAttrs, idKey(a.AttrID), a)
}

func (s *Session) GetAttr(id int64) (*types.Attr, error) {
	var a types.Attr
	if err := s.getJSON(bAttrs, idKey(id), &a, "attr", id); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Session) FindAttr(name, dimension string) (*types.Attr, error) {
	var found *types.Attr
	err := s.bucket(bAttrs).ForEach(func(_, v []byte) error {
		var a types.Attr
		if err := json.Unmarshal(v, &a); err != nil {
			return err
		}
		if a.Name == name && a.Dimension == dimension {
			found = &a
		}
		return nil
	})
	return found, err
}

// --- ResourceAttr ---

func (s *Session) CreateResourceAttr(ra *types.ResourceAttr) error {
	if ra.ResourceAttrID == 0 {
		id, err := s.NextID("resourceattr")
		if err != nil {
			return err
		}
		ra.ResourceAttrID = id
	}
	return s.putJSON(bResourceAttrs, idKey(ra.ResourceAttrID), ra)
}

func (s *Session) GetResourceAttr(id int64) (*types.ResourceAttr, error) {
	var ra types.ResourceAttr
	if err := s.getJSON(bResourceAttrs, idKey(id), &ra, "resourceattr", id); err != nil {
		return nil, err
	}
	return &ra, nil
}

// ListResourceAttrsByResource returns every ResourceAttr owned by the
// given resource, identified by the (RefKey, ownerID) pair that
// pkg/graph resolves.
func (s *Session) ListResourceAttrsByResource(refKey types.RefKey, ownerID int64) ([]*types.ResourceAttr, error) {
	var out []*types.ResourceAttr
	err := s.bucket(bResourceAttrs).ForEach(func(_, v []byte) error {
		var ra types.ResourceAttr
		if err := json.Unmarshal(v, &ra); err != nil {
			return err
		}
		if ra.RefKey != refKey {
			return nil
		}
		if id, ok := ra.OwningResourceID(); ok && id == ownerID {
			out = append(out, &ra)
		}
		return nil
	})
	return out, err
}

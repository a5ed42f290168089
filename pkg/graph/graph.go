// Package graph implements ResourceGraph: pure routing over the
// polymorphic (ref_key, resource) reference scheme — resolving a
// reference to its entity, attaching attributes to a resource, and
// resolving a ResourceAttr up to its owning Network. It never touches
// datasets or scenarios (spec.md §4.3).
package graph

import (
	"github.com/hydroframe/scenario-engine/pkg/errs"
	"github.com/hydroframe/scenario-engine/pkg/store"
	"github.com/hydroframe/scenario-engine/pkg/types"
)

// Graph is stateless; every method takes the Session explicitly.
type Graph struct{}

// New builds a Graph.
func New() *Graph { return &Graph{} }

// Resolve returns the entity a (ref_key, resourceID) pair names.
// The concrete type is one of *types.Project, *types.Network,
// *types.Node, *types.Link, *types.ResourceGroup.
func (g *Graph) Resolve(sess *store.Session, refKey types.RefKey, resourceID int64) (any, error) {
	switch refKey {
	case types.RefProject:
		return sess.GetProject(resourceID)
	case types.RefNetwork:
		return sess.GetNetwork(resourceID)
	case types.RefNode:
		return sess.GetNode(resourceID)
	case types.RefLink:
		return sess.GetLink(resourceID)
	case types.RefGroup:
		return sess.GetResourceGroup(resourceID)
	default:
		return nil, errs.New(errs.InvalidInput, "unknown ref_key %q", refKey)
	}
}

// AddAttribute creates a ResourceAttr binding attrID to the resource
// named by (refKey, resourceID), routing to the correct foreign-key
// slot and leaving the others nil (spec.md §3 invariant 3).
func (g *Graph) AddAttribute(sess *store.Session, refKey types.RefKey, resourceID, attrID int64, isVar bool) (*types.ResourceAttr, error) {
	ra := &types.ResourceAttr{AttrID: attrID, RefKey: refKey, IsVar: isVar}
	id := resourceID
	switch refKey {
	case types.RefProject:
		ra.ProjectID = &id
	case types.RefNetwork:
		ra.NetworkID = &id
	case types.RefNode:
		ra.NodeID = &id
	case types.RefLink:
		ra.LinkID = &id
	case types.RefGroup:
		ra.GroupID = &id
	default:
		return nil, errs.New(errs.InvalidInput, "unknown ref_key %q", refKey)
	}
	if err := sess.CreateResourceAttr(ra); err != nil {
		return nil, err
	}
	return ra, nil
}

// ResolveNetwork resolves ra up to its owning Network, per spec.md
// §4.3: for a PROJECT-scoped attribute it returns (nil, nil), since a
// project has no single parent network.
func (g *Graph) ResolveNetwork(sess *store.Session, ra *types.ResourceAttr) (*types.Network, error) {
	ownerID, ok := ra.OwningResourceID()
	if !ok {
		return nil, errs.New(errs.InvalidInput, "resource attr %d has no owning resource for ref_key %s", ra.ResourceAttrID, ra.RefKey)
	}
	switch ra.RefKey {
	case types.RefProject:
		return nil, nil
	case types.RefNetwork:
		return sess.GetNetwork(ownerID)
	case types.RefNode:
		n, err := sess.GetNode(ownerID)
		if err != nil {
			return nil, err
		}
		return sess.GetNetwork(n.NetworkID)
	case types.RefLink:
		l, err := sess.GetLink(ownerID)
		if err != nil {
			return nil, err
		}
		return sess.GetNetwork(l.NetworkID)
	case types.RefGroup:
		rg, err := sess.GetResourceGroup(ownerID)
		if err != nil {
			return nil, err
		}
		return sess.GetNetwork(rg.NetworkID)
	default:
		return nil, errs.New(errs.InvalidInput, "unknown ref_key %q", ra.RefKey)
	}
}

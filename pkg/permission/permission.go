// Package permission implements PermissionGuard: view/edit/share checks
// for a user against Project, Network, Scenario, Template, and Dataset
// entities, plus the delegation rules that route Node/Link/ResourceGroup
// and ResourceAttr checks up to their owning entity.
//
// Grounded on original_source/HydraServer/python/HydraServer/lib/scenario.py's
// _check_network_ownership / _check_network_owner (creator-always-passes,
// first-matching-owner-row-wins, edit-bit-gated lock/unlock).
package permission

import (
	"github.com/hydroframe/scenario-engine/pkg/errs"
	"github.com/hydroframe/scenario-engine/pkg/metrics"
	"github.com/hydroframe/scenario-engine/pkg/store"
	"github.com/hydroframe/scenario-engine/pkg/types"
)

// Action is the right being checked.
type Action string

const (
	View  Action = "view"
	Edit  Action = "edit"
	Share Action = "share"
)

// Guard evaluates permission checks over a Session. It holds no state
// of its own — every method takes the Session and user explicitly, per
// spec.md §9's "no global session state" redesign note.
type Guard struct{}

// New builds a Guard.
func New() *Guard { return &Guard{} }

// Check evaluates action for userID against (entity, entityID), applying
// the creator-always-passes / first-matching-owner-row-wins algorithm of
// spec.md §4.2. createdBy is the entity's creator (0 if the entity kind
// carries no creator, e.g. Template).
func (g *Guard) Check(sess *store.Session, entity types.OwnerEntity, entityID, createdBy, userID int64, action Action) error {
	ok, err := g.can(sess, entity, entityID, createdBy, userID, action)
	if err != nil {
		return err
	}
	if !ok {
		metrics.PermissionDenialsTotal.WithLabelValues(string(entity), string(action)).Inc()
		return errs.New(errs.Permission, "user %d lacks %s permission on %s %d", userID, action, entity, entityID)
	}
	return nil
}

// can is the boolean form of Check, used internally and by callers (the
// hidden-dataset mask decision) that want to branch on the result
// instead of treating failure as an error.
func (g *Guard) can(sess *store.Session, entity types.OwnerEntity, entityID, createdBy, userID int64, action Action) (bool, error) {
	if createdBy != 0 && createdBy == userID {
		return true, nil
	}

	owners, err := sess.ListOwners(entity, entityID)
	if err != nil {
		return false, err
	}
	for _, o := range owners {
		if o.UserID != userID {
			continue
		}
		return bitFor(o, action), nil
	}

	if entity == types.OwnerEntityTemplate && action == View {
		for _, o := range owners {
			if o.UserID == types.AnonymousUserID {
				return o.View.Bool(), nil
			}
		}
	}

	return false, nil
}

func bitFor(o *types.Owner, action Action) bool {
	switch action {
	case View:
		return o.View.Bool()
	case Edit:
		return o.Edit.Bool()
	case Share:
		return o.Share.Bool()
	default:
		return false
	}
}

// CheckNetwork checks action against a Network directly.
func (g *Guard) CheckNetwork(sess *store.Session, userID int64, n *types.Network, action Action) error {
	return g.Check(sess, types.OwnerEntityNetwork, n.NetworkID, n.CreatedBy, userID, action)
}

// CheckProject checks action against a Project directly.
func (g *Guard) CheckProject(sess *store.Session, userID int64, p *types.Project, action Action) error {
	return g.Check(sess, types.OwnerEntityProject, p.ProjectID, p.CreatedBy, userID, action)
}

// CheckScenario checks action against a Scenario's owning Network —
// scenarios have no owner rows of their own (spec.md §3 lists owner
// records only for Project/Network/Template/Dataset); permission is the
// parent network's.
func (g *Guard) CheckScenario(sess *store.Session, userID int64, sc *types.Scenario, action Action) error {
	net, err := sess.GetNetwork(sc.NetworkID)
	if err != nil {
		return err
	}
	return g.CheckNetwork(sess, userID, net, action)
}

// CheckNode delegates to the Node's Network (spec.md §4.2).
func (g *Guard) CheckNode(sess *store.Session, userID int64, n *types.Node, action Action) error {
	net, err := sess.GetNetwork(n.NetworkID)
	if err != nil {
		return err
	}
	return g.CheckNetwork(sess, userID, net, action)
}

// CheckLink delegates to the Link's Network.
func (g *Guard) CheckLink(sess *store.Session, userID int64, l *types.Link, action Action) error {
	net, err := sess.GetNetwork(l.NetworkID)
	if err != nil {
		return err
	}
	return g.CheckNetwork(sess, userID, net, action)
}

// CheckResourceGroup delegates to the ResourceGroup's Network.
func (g *Guard) CheckResourceGroup(sess *store.Session, userID int64, rg *types.ResourceGroup, action Action) error {
	net, err := sess.GetNetwork(rg.NetworkID)
	if err != nil {
		return err
	}
	return g.CheckNetwork(sess, userID, net, action)
}

// CheckResourceAttr delegates to whichever resource ra's RefKey selects
// (spec.md §4.2 "ResourceAttr delegates to its owning resource").
func (g *Guard) CheckResourceAttr(sess *store.Session, userID int64, ra *types.ResourceAttr, action Action) error {
	ownerID, ok := ra.OwningResourceID()
	if !ok {
		return errs.New(errs.InvalidInput, "resource attr %d has no owning resource for ref_key %s", ra.ResourceAttrID, ra.RefKey)
	}
	switch ra.RefKey {
	case types.RefProject:
		p, err := sess.GetProject(ownerID)
		if err != nil {
			return err
		}
		return g.CheckProject(sess, userID, p, action)
	case types.RefNetwork:
		n, err := sess.GetNetwork(ownerID)
		if err != nil {
			return err
		}
		return g.CheckNetwork(sess, userID, n, action)
	case types.RefNode:
		n, err := sess.GetNode(ownerID)
		if err != nil {
			return err
		}
		return g.CheckNode(sess, userID, n, action)
	case types.RefLink:
		l, err := sess.GetLink(ownerID)
		if err != nil {
			return err
		}
		return g.CheckLink(sess, userID, l, action)
	case types.RefGroup:
		rg, err := sess.GetResourceGroup(ownerID)
		if err != nil {
			return err
		}
		return g.CheckResourceGroup(sess, userID, rg, action)
	default:
		return errs.New(errs.InvalidInput, "unknown ref_key %s", ra.RefKey)
	}
}

// CanViewDataset reports whether userID may view d, applying the hidden-
// dataset masking rule: a non-hidden dataset is always viewable; a
// hidden one requires creator-or-owner-row-view exactly like Check, but
// returns a bool instead of an error so callers (pkg/query) can silently
// mask rather than fail the whole read (spec.md §4.2, §3 invariant 6).
// It also satisfies pkg/dataset.PermissionChecker.
func (g *Guard) CanViewDataset(sess *store.Session, userID int64, d *types.Dataset) (bool, error) {
	if !d.Hidden.Bool() {
		return true, nil
	}
	return g.can(sess, types.OwnerEntityDataset, d.DatasetID, d.CreatedBy, userID, View)
}

// CheckDataset is the raising form of CanViewDataset for write/share
// (spec.md §4.2 "write/share always raise on failure").
func (g *Guard) CheckDataset(sess *store.Session, userID int64, d *types.Dataset, action Action) error {
	return g.Check(sess, types.OwnerEntityDataset, d.DatasetID, d.CreatedBy, userID, action)
}

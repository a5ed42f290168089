package graph

import (
	"testing"

	"github.com/hydroframe/scenario-engine/pkg/store"
	"github.com/hydroframe/scenario-engine/pkg/types"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAddAttributeRoutesByRefKey(t *testing.T) {
	db := openTestDB(t)
	g := New()

	err := db.Update(func(sess *store.Session) error {
		net := &types.Network{ProjectID: 1, Name: "n"}
		if err := sess.CreateNetwork(net); err != nil {
			return err
		}
		node := &types.Node{NetworkID: net.NetworkID, Name: "n1"}
		if err := sess.CreateNode(node); err != nil {
			return err
		}

		ra, err := g.AddAttribute(sess, types.RefNode, node.NodeID, 7, false)
		if err != nil {
			return err
		}
		if ra.NodeID == nil || *ra.NodeID != node.NodeID {
			t.Errorf("AddAttribute() NodeID = %v, want %d", ra.NodeID, node.NodeID)
		}
		if ra.NetworkID != nil || ra.LinkID != nil || ra.ProjectID != nil || ra.GroupID != nil {
			t.Error("AddAttribute() set more than one foreign key slot")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestResolveNetworkForNodeAndLink(t *testing.T) {
	db := openTestDB(t)
	g := New()

	err := db.Update(func(sess *store.Session) error {
		net := &types.Network{ProjectID: 1, Name: "n"}
		if err := sess.CreateNetwork(net); err != nil {
			return err
		}
		node := &types.Node{NetworkID: net.NetworkID, Name: "n1"}
		if err := sess.CreateNode(node); err != nil {
			return err
		}
		ra, err := g.AddAttribute(sess, types.RefNode, node.NodeID, 1, false)
		if err != nil {
			return err
		}

		resolved, err := g.ResolveNetwork(sess, ra)
		if err != nil {
			return err
		}
		if resolved == nil || resolved.NetworkID != net.NetworkID {
			t.Errorf("ResolveNetwork() = %v, want network %d", resolved, net.NetworkID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestResolveNetworkForProjectScopeIsNil(t *testing.T) {
	db := openTestDB(t)
	g := New()

	err := db.Update(func(sess *store.Session) error {
		p := &types.Project{Name: "p"}
		if err := sess.CreateProject(p); err != nil {
			return err
		}
		ra, err := g.AddAttribute(sess, types.RefProject, p.ProjectID, 1, false)
		if err != nil {
			return err
		}

		resolved, err := g.ResolveNetwork(sess, ra)
		if err != nil {
			return err
		}
		if resolved != nil {
			t.Errorf("ResolveNetwork() for project-scoped attr = %v, want nil", resolved)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestResolveReturnsMatchingEntity(t *testing.T) {
	db := openTestDB(t)
	g := New()

	err := db.Update(func(sess *store.Session) error {
		net := &types.Network{ProjectID: 1, Name: "n"}
		if err := sess.CreateNetwork(net); err != nil {
			return err
		}
		resolved, err := g.Resolve(sess, types.RefNetwork, net.NetworkID)
		if err != nil {
			return err
		}
		got, ok := resolved.(*types.Network)
		if !ok || got.NetworkID != net.NetworkID {
			t.Errorf("Resolve() = %#v, want network %d", resolved, net.NetworkID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

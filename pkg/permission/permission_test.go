package permission

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

func TestCreatorAlwaysPasses(t *testing.T) {
	db := openTestDB(t)
	g := New()

	err := db.Update(func(sess *store.Session) error {
		n := &types.Network{ProjectID: 1, Name: "n", CreatedBy: 7}
		if err := sess.CreateNetwork(n); err != nil {
			return err
		}
		// No owner rows at all; creator must still pass every action.
		for _, a := range []Action{View, Edit, Share} {
			if err := g.CheckNetwork(sess, 7, n, a); err != nil {
				t.Errorf("creator check for %s failed: %v", a, err)
			}
		}
		if err := g.CheckNetwork(sess, 8, n, View); err == nil {
			t.Error("non-creator, non-owner user should be denied")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestFirstMatchingOwnerRowWins(t *testing.T) {
	db := openTestDB(t)
	g := New()

	err := db.Update(func(sess *store.Session) error {
		n := &types.Network{ProjectID: 1, Name: "n", CreatedBy: 1}
		if err := sess.CreateNetwork(n); err != nil {
			return err
		}
		if err := sess.SetOwner(&types.Owner{
			Entity: types.OwnerEntityNetwork, EntityID: n.NetworkID, UserID: 9,
			View: types.Yes, Edit: types.No, Share: types.No,
		}); err != nil {
			return err
		}

		if err := g.CheckNetwork(sess, 9, n, View); err != nil {
			t.Errorf("owner with view=Y should pass view check: %v", err)
		}
		if err := g.CheckNetwork(sess, 9, n, Edit); err == nil {
			t.Error("owner with edit=N should fail edit check")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestNodeDelegatesToNetwork(t *testing.T) {
	db := openTestDB(t)
	g := New()

	err := db.Update(func(sess *store.Session) error {
		n := &types.Network{ProjectID: 1, Name: "n", CreatedBy: 1}
		if err := sess.CreateNetwork(n); err != nil {
			return err
		}
		node := &types.Node{NetworkID: n.NetworkID, Name: "node-a"}
		if err := sess.CreateNode(node); err != nil {
			return err
		}

		if err := g.CheckNode(sess, 1, node, Edit); err != nil {
			t.Errorf("network creator should be able to edit its node: %v", err)
		}
		if err := g.CheckNode(sess, 99, node, Edit); err == nil {
			t.Error("non-owner should be denied on node via network delegation")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestResourceAttrDelegatesByRefKey(t *testing.T) {
	db := openTestDB(t)
	g := New()

	err := db.Update(func(sess *store.Session) error {
		n := &types.Network{ProjectID: 1, Name: "n", CreatedBy: 5}
		if err := sess.CreateNetwork(n); err != nil {
			return err
		}
		link := &types.Link{NetworkID: n.NetworkID, Name: "l"}
		if err := sess.CreateLink(link); err != nil {
			return err
		}
		ra := &types.ResourceAttr{AttrID: 1, RefKey: types.RefLink, LinkID: &link.LinkID}
		if err := sess.CreateResourceAttr(ra); err != nil {
			return err
		}

		if err := g.CheckResourceAttr(sess, 5, ra, View); err != nil {
			t.Errorf("network creator should view resource attr via link->network delegation: %v", err)
		}
		if err := g.CheckResourceAttr(sess, 42, ra, View); err == nil {
			t.Error("unrelated user should be denied")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestHiddenDatasetMasksForNonOwner(t *testing.T) {
	db := openTestDB(t)
	g := New()

	err := db.Update(func(sess *store.Session) error {
		d := &types.Dataset{Name: "secret", Type: types.DatasetScalar, Hidden: types.Yes, CreatedBy: 1}
		if err := sess.CreateDataset(d); err != nil {
			return err
		}

		visible, err := g.CanViewDataset(sess, 1, d)
		if err != nil {
			return err
		}
		if !visible {
			t.Error("creator should always view their own hidden dataset")
		}

		visible, err = g.CanViewDataset(sess, 2, d)
		if err != nil {
			return err
		}
		if visible {
			t.Error("non-owner should not view a hidden dataset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestNonHiddenDatasetAlwaysVisible(t *testing.T) {
	db := openTestDB(t)
	g := New()

	err := db.Update(func(sess *store.Session) error {
		d := &types.Dataset{Name: "public", Type: types.DatasetScalar, Hidden: types.No, CreatedBy: 1}
		if err := sess.CreateDataset(d); err != nil {
			return err
		}
		visible, err := g.CanViewDataset(sess, 999, d)
		if err != nil {
			return err
		}
		if !visible {
			t.Error("non-hidden dataset should be visible to anyone")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestTemplateAnonymousUserGrantsView(t *testing.T) {
	db := openTestDB(t)
	g := New()

	err := db.Update(func(sess *store.Session) error {
		const templateID = 42
		if err := sess.SetOwner(&types.Owner{
			Entity: types.OwnerEntityTemplate, EntityID: templateID, UserID: types.AnonymousUserID,
			View: types.Yes, Edit: types.No, Share: types.No,
		}); err != nil {
			return err
		}

		if err := g.Check(sess, types.OwnerEntityTemplate, templateID, 0, 555, View); err != nil {
			t.Errorf("any user should get template view via the anonymous-user row: %v", err)
		}
		if err := g.Check(sess, types.OwnerEntityTemplate, templateID, 0, 555, Edit); err == nil {
			t.Error("the anonymous rule only grants view, not edit")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

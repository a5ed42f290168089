package scenario

import (
	"testing"

	"github.com/hydroframe/scenario-engine/pkg/dataset"
	"github.com/hydroframe/scenario-engine/pkg/errs"
	"github.com/hydroframe/scenario-engine/pkg/graph"
	"github.com/hydroframe/scenario-engine/pkg/permission"
	"github.com/hydroframe/scenario-engine/pkg/store"
	"github.com/hydroframe/scenario-engine/pkg/types"
)

func newTestEngine(t *testing.T) (*store.DB, *Engine) {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, New(permission.New(), graph.New(), dataset.New(5000))
}

func setupNetwork(t *testing.T, sess *store.Session, creator int64) *types.Network {
	t.Helper()
	n := &types.Network{ProjectID: 1, Name: "net", CreatedBy: creator}
	if err := sess.CreateNetwork(n); err != nil {
		t.Fatalf("CreateNetwork() error = %v", err)
	}
	return n
}

func scalarItem(raw, name string) dataset.Item {
	return dataset.Item{Type: types.DatasetScalar, Raw: raw, Units: "m3/s", Dimension: "flow", Name: name}
}

// S1 Dedup: two scenarios in the same network with identical scalar
// values for different resource attrs should resolve to the same
// dataset_id.
func TestAddScenarioDedupsAcrossScenarios(t *testing.T) {
	db, eng := newTestEngine(t)

	var rsA, rsB *types.ResourceScenario
	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)

		a, err := eng.AddScenario(sess, net.NetworkID, Spec{
			Name:              "A",
			ResourceScenarios: []ResourceScenarioInput{{ResourceAttrID: 1, Dataset: scalarItem("3.14", "q")}},
		}, 1)
		if err != nil {
			return err
		}
		b, err := eng.AddScenario(sess, net.NetworkID, Spec{
			Name:              "B",
			ResourceScenarios: []ResourceScenarioInput{{ResourceAttrID: 2, Dataset: scalarItem("3.14", "q")}},
		}, 1)
		if err != nil {
			return err
		}

		rsA, err = sess.GetResourceScenario(a.ScenarioID, 1)
		if err != nil {
			return err
		}
		rsB, err = sess.GetResourceScenario(b.ScenarioID, 2)
		return err
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
	if rsA.DatasetID != rsB.DatasetID {
		t.Errorf("AddScenario() did not dedup: %d != %d", rsA.DatasetID, rsB.DatasetID)
	}
}

func TestAddScenarioRejectsDuplicateName(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)
		if _, err := eng.AddScenario(sess, net.NetworkID, Spec{Name: "dup"}, 1); err != nil {
			return err
		}
		_, err := eng.AddScenario(sess, net.NetworkID, Spec{Name: "dup"}, 1)
		if !errs.Is(err, errs.Conflict) {
			t.Errorf("AddScenario() duplicate name error = %v, want Conflict", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestAddScenarioRequiresEdit(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)
		_, err := eng.AddScenario(sess, net.NetworkID, Spec{Name: "x"}, 999)
		if !errs.Is(err, errs.Permission) {
			t.Errorf("AddScenario() by non-owner error = %v, want Permission", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

// S2 Lock blocks: update on a locked scenario fails Locked; after
// unlock it succeeds.
func TestLockBlocksUpdate(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)
		sc, err := eng.AddScenario(sess, net.NetworkID, Spec{Name: "s"}, 1)
		if err != nil {
			return err
		}

		if err := eng.Lock(sess, sc.ScenarioID, 1); err != nil {
			return err
		}

		_, err = eng.UpdateScenario(sess, sc.ScenarioID, Spec{
			Name:              "s",
			ResourceScenarios: []ResourceScenarioInput{{ResourceAttrID: 1, Dataset: scalarItem("1.0", "q")}},
		}, true, false, 1, "")
		if !errs.Is(err, errs.Locked) {
			t.Errorf("UpdateScenario() on locked scenario error = %v, want Locked", err)
		}

		if err := eng.Unlock(sess, sc.ScenarioID, 1); err != nil {
			return err
		}

		_, err = eng.UpdateScenario(sess, sc.ScenarioID, Spec{
			Name:              "s",
			ResourceScenarios: []ResourceScenarioInput{{ResourceAttrID: 1, Dataset: scalarItem("1.0", "q")}},
		}, true, false, 1, "")
		if err != nil {
			t.Errorf("UpdateScenario() after unlock failed: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

// S3 Clone naming: given "exp", "exp (clone)" in a network, cloning
// "exp" produces "exp (clone) 1"; a second clone produces "exp (clone) 2".
func TestCloneScenarioNaming(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)
		exp, err := eng.AddScenario(sess, net.NetworkID, Spec{Name: "exp"}, 1)
		if err != nil {
			return err
		}
		if _, err := eng.AddScenario(sess, net.NetworkID, Spec{Name: "exp (clone)"}, 1); err != nil {
			return err
		}

		clone1, err := eng.CloneScenario(sess, exp.ScenarioID, 1, "")
		if err != nil {
			return err
		}
		if clone1.Name != "exp (clone) 1" {
			t.Errorf("CloneScenario() first clone name = %q, want %q", clone1.Name, "exp (clone) 1")
		}

		clone2, err := eng.CloneScenario(sess, exp.ScenarioID, 1, "")
		if err != nil {
			return err
		}
		if clone2.Name != "exp (clone) 2" {
			t.Errorf("CloneScenario() second clone name = %q, want %q", clone2.Name, "exp (clone) 2")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestCloneScenarioIsUnlocked(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)
		sc, err := eng.AddScenario(sess, net.NetworkID, Spec{Name: "s"}, 1)
		if err != nil {
			return err
		}
		if err := eng.Lock(sess, sc.ScenarioID, 1); err != nil {
			return err
		}
		clone, err := eng.CloneScenario(sess, sc.ScenarioID, 1, "")
		if err != nil {
			return err
		}
		if clone.Locked.Bool() {
			t.Error("CloneScenario() locked state should not propagate")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestCloneScenarioCopiesResourceScenariosByReference(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)
		sc, err := eng.AddScenario(sess, net.NetworkID, Spec{
			Name:              "s",
			ResourceScenarios: []ResourceScenarioInput{{ResourceAttrID: 1, Dataset: scalarItem("2.0", "q")}},
		}, 1)
		if err != nil {
			return err
		}
		origRS, err := sess.GetResourceScenario(sc.ScenarioID, 1)
		if err != nil {
			return err
		}

		clone, err := eng.CloneScenario(sess, sc.ScenarioID, 1, "")
		if err != nil {
			return err
		}
		cloneRS, err := sess.GetResourceScenario(clone.ScenarioID, 1)
		if err != nil {
			return err
		}
		if cloneRS == nil || cloneRS.DatasetID != origRS.DatasetID {
			t.Errorf("CloneScenario() did not preserve dataset reference: %+v vs %+v", cloneRS, origRS)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

// S6 Copy-on-write: updating RS_1's value when a second RS_2 shares the
// same dataset must create a brand new dataset and rebind RS_1, leaving
// RS_2 (and the original dataset) untouched.
func TestUpdateResourcedataCopyOnWriteWhenSharedDataset(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)
		sc, err := eng.AddScenario(sess, net.NetworkID, Spec{
			Name: "s",
			ResourceScenarios: []ResourceScenarioInput{
				{ResourceAttrID: 1, Dataset: scalarItem("5.0", "q")},
				{ResourceAttrID: 2, Dataset: scalarItem("5.0", "q")},
			},
		}, 1)
		if err != nil {
			return err
		}

		before1, err := sess.GetResourceScenario(sc.ScenarioID, 1)
		if err != nil {
			return err
		}
		before2, err := sess.GetResourceScenario(sc.ScenarioID, 2)
		if err != nil {
			return err
		}
		if before1.DatasetID != before2.DatasetID {
			t.Fatalf("setup: expected both RS to share a dataset")
		}

		_, err = eng.UpdateScenario(sess, sc.ScenarioID, Spec{
			Name:              "s",
			ResourceScenarios: []ResourceScenarioInput{{ResourceAttrID: 1, Dataset: scalarItem("6.0", "q")}},
		}, true, false, 1, "")
		if err != nil {
			return err
		}

		after1, err := sess.GetResourceScenario(sc.ScenarioID, 1)
		if err != nil {
			return err
		}
		after2, err := sess.GetResourceScenario(sc.ScenarioID, 2)
		if err != nil {
			return err
		}
		if after1.DatasetID == before1.DatasetID {
			t.Error("updating a shared dataset should rebind to a new dataset id")
		}
		if after2.DatasetID != before2.DatasetID {
			t.Error("the other resource scenario sharing the original dataset must be untouched")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestUpdateResourcedataInPlaceWhenSoleReferrer(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)
		sc, err := eng.AddScenario(sess, net.NetworkID, Spec{
			Name:              "s",
			ResourceScenarios: []ResourceScenarioInput{{ResourceAttrID: 1, Dataset: scalarItem("5.0", "q")}},
		}, 1)
		if err != nil {
			return err
		}
		before, err := sess.GetResourceScenario(sc.ScenarioID, 1)
		if err != nil {
			return err
		}

		_, err = eng.UpdateScenario(sess, sc.ScenarioID, Spec{
			Name:              "s",
			ResourceScenarios: []ResourceScenarioInput{{ResourceAttrID: 1, Dataset: scalarItem("6.0", "q")}},
		}, true, false, 1, "")
		if err != nil {
			return err
		}

		after, err := sess.GetResourceScenario(sc.ScenarioID, 1)
		if err != nil {
			return err
		}
		if after.DatasetID != before.DatasetID {
			t.Error("updating the sole referrer of a dataset should mutate it in place, not create a new one")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestUpdateResourcedataNoopWhenUnchanged(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)
		sc, err := eng.AddScenario(sess, net.NetworkID, Spec{
			Name:              "s",
			ResourceScenarios: []ResourceScenarioInput{{ResourceAttrID: 1, Dataset: scalarItem("5.0", "q")}},
		}, 1)
		if err != nil {
			return err
		}
		before, err := sess.GetResourceScenario(sc.ScenarioID, 1)
		if err != nil {
			return err
		}

		_, err = eng.UpdateScenario(sess, sc.ScenarioID, Spec{
			Name:              "s",
			ResourceScenarios: []ResourceScenarioInput{{ResourceAttrID: 1, Dataset: scalarItem("5.0", "q")}},
		}, true, false, 1, "")
		if err != nil {
			return err
		}

		after, err := sess.GetResourceScenario(sc.ScenarioID, 1)
		if err != nil {
			return err
		}
		if after.DatasetID != before.DatasetID {
			t.Error("re-submitting an unchanged value should be a no-op")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestBulkUpdateResourcedataCrossNetwork(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net1 := setupNetwork(t, sess, 1)
		net2 := &types.Network{ProjectID: 1, Name: "net2", CreatedBy: 1}
		if err := sess.CreateNetwork(net2); err != nil {
			return err
		}

		scA, err := eng.AddScenario(sess, net1.NetworkID, Spec{Name: "a"}, 1)
		if err != nil {
			return err
		}
		scB, err := eng.AddScenario(sess, net2.NetworkID, Spec{Name: "b"}, 1)
		if err != nil {
			return err
		}

		err = eng.BulkUpdateResourcedata(sess, []int64{scA.ScenarioID, scB.ScenarioID}, nil, 1, "")
		if !errs.Is(err, errs.CrossNetwork) {
			t.Errorf("BulkUpdateResourcedata() across networks error = %v, want CrossNetwork", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestPurgeScenarioCascadesButKeepsDataset(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)
		sc, err := eng.AddScenario(sess, net.NetworkID, Spec{
			Name:              "s",
			ResourceScenarios: []ResourceScenarioInput{{ResourceAttrID: 1, Dataset: scalarItem("1.0", "q")}},
		}, 1)
		if err != nil {
			return err
		}
		rs, err := sess.GetResourceScenario(sc.ScenarioID, 1)
		if err != nil {
			return err
		}

		if err := eng.PurgeScenario(sess, sc.ScenarioID, 1); err != nil {
			return err
		}

		if _, err := sess.GetScenario(sc.ScenarioID); !errs.Is(err, errs.NotFound) {
			t.Errorf("GetScenario() after purge error = %v, want NotFound", err)
		}
		if _, err := sess.GetDataset(rs.DatasetID); err != nil {
			t.Errorf("GetDataset() after scenario purge should still succeed: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func TestEmptyGroupDeletesAllMatchingItems(t *testing.T) {
	db, eng := newTestEngine(t)

	err := db.Update(func(sess *store.Session) error {
		net := setupNetwork(t, sess, 1)
		sc, err := eng.AddScenario(sess, net.NetworkID, Spec{
			Name: "s",
			GroupItems: []GroupItemInput{
				{GroupID: 1, RefKey: types.RefNode, NodeID: ptr(int64(1))},
				{GroupID: 1, RefKey: types.RefNode, NodeID: ptr(int64(2))},
				{GroupID: 2, RefKey: types.RefNode, NodeID: ptr(int64(3))},
			},
		}, 1)
		if err != nil {
			return err
		}

		if err := eng.EmptyGroup(sess, 1, sc.ScenarioID, 1); err != nil {
			return err
		}

		remaining, err := sess.ListResourceGroupItems(sc.ScenarioID)
		if err != nil {
			return err
		}
		if len(remaining) != 1 || remaining[0].GroupID != 2 {
			t.Errorf("EmptyGroup() left %+v, want only group 2's item", remaining)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("db.Update() error = %v", err)
	}
}

func ptr(v int64) *int64 { return &v }

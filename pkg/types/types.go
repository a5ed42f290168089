// Package types holds the entity model shared by every scenario-engine
// package: projects, networks, topology elements, attributes, datasets,
// scenarios, and the owner records that gate them.
package types

import "time"

// Status is the soft-delete status carried by Project, Network, and
// Scenario rows.
type Status string

const (
	StatusActive  Status = "A"
	StatusDeleted Status = "X"
)

// YesNo mirrors the single-character Y/N flags of the underlying schema
// (locked, hidden, view/edit/share) rather than a bare bool, so that a
// zero value round-trips through storage the same way the schema's does.
type YesNo string

const (
	Yes YesNo = "Y"
	No  YesNo = "N"
)

func (f YesNo) Bool() bool { return f == Yes }

func BoolFlag(b bool) YesNo {
	if b {
		return Yes
	}
	return No
}

// RefKey tags which kind of resource a polymorphic reference points at.
// Replaces the source's cascading ref_key string comparisons with a
// single sum type; routing to the matching foreign-key slot becomes one
// switch instead of a chain of "if ref_key == ...".
type RefKey string

const (
	RefProject RefKey = "PROJECT"
	RefNetwork RefKey = "NETWORK"
	RefNode    RefKey = "NODE"
	RefLink    RefKey = "LINK"
	RefGroup   RefKey = "GROUP"
)

// DatasetType enumerates the value shapes a Dataset can hold.
type DatasetType string

const (
	DatasetScalar      DatasetType = "scalar"
	DatasetDescriptor  DatasetType = "descriptor"
	DatasetArray       DatasetType = "array"
	DatasetTimeseries  DatasetType = "timeseries"
)

// AnonymousUserID is the reserved id used for Template read permission
// checks that additionally grant against a system/anonymous row.
const AnonymousUserID int64 = 1

// Project is the root of a subtree of networks.
type Project struct {
	ProjectID int64
	Name      string
	Status    Status
	CreatedBy int64
	CreatedAt time.Time
}

// Network owns nodes, links, resource groups, and scenarios. Its name is
// unique within its parent project.
type Network struct {
	NetworkID  int64
	ProjectID  int64
	Name       string
	Status     Status
	Projection string
	CreatedBy  int64
	CreatedAt  time.Time
}

// Node is a topology element bound to a Network.
type Node struct {
	NodeID    int64
	NetworkID int64
	Name      string
	Status    Status
	X, Y      float64
}

// Link references two Nodes of the same Network.
type Link struct {
	LinkID    int64
	NetworkID int64
	Name      string
	Status    Status
	NodeAID   int64
	NodeBID   int64
}

// ResourceGroup is a named grouping of other resources within a Network.
type ResourceGroup struct {
	GroupID   int64
	NetworkID int64
	Name      string
	Status    Status
}

// Attr is a named, dimensioned property that resources may carry.
// Unique on (Name, Dimension).
type Attr struct {
	AttrID    int64
	Name      string
	Dimension string
}

// ResourceAttr binds one Attr to exactly one resource, addressed by
// RefKey plus whichever of the owning-id fields matches it. Unique on
// (owning resource id, AttrID).
type ResourceAttr struct {
	ResourceAttrID int64
	AttrID         int64
	RefKey         RefKey
	ProjectID      *int64
	NetworkID      *int64
	NodeID         *int64
	LinkID         *int64
	GroupID        *int64
	IsVar          bool
}

// OwningResourceID returns whichever foreign key RefKey selects, and
// true if it is populated. Invariant 3 of spec.md §3 guarantees exactly
// one of the id fields is non-nil for a well-formed ResourceAttr.
func (ra *ResourceAttr) OwningResourceID() (int64, bool) {
	switch ra.RefKey {
	case RefProject:
		return derefOr(ra.ProjectID, 0), ra.ProjectID != nil
	case RefNetwork:
		return derefOr(ra.NetworkID, 0), ra.NetworkID != nil
	case RefNode:
		return derefOr(ra.NodeID, 0), ra.NodeID != nil
	case RefLink:
		return derefOr(ra.LinkID, 0), ra.LinkID != nil
	case RefGroup:
		return derefOr(ra.GroupID, 0), ra.GroupID != nil
	default:
		return 0, false
	}
}

func derefOr(p *int64, fallback int64) int64 {
	if p == nil {
		return fallback
	}
	return *p
}

// Dataset is a content-addressed, typed, possibly deflate-compressed
// value payload plus metadata. Hash is the dedup key and must be unique.
type Dataset struct {
	DatasetID int64
	Type      DatasetType
	Name      string
	Units     string
	Dimension string
	Value     []byte // possibly deflate-compressed; see pkg/dataset
	Hash      uint64
	Hidden    YesNo
	CreatedBy int64
	CreatedAt time.Time

	// StartTime/Frequency are timeseries-only convenience fields mirrored
	// out of Value for callers that don't want to decode the full table;
	// masked alongside Value/Metadata when Hidden and the caller lacks view.
	StartTime string
	Frequency string

	Metadata map[string]string
}

// Masked returns a copy of d with hidden fields zeroed, per spec.md §3
// invariant 6 / §4.2 / §4.7.
func (d Dataset) Masked() Dataset {
	d.Value = nil
	d.StartTime = ""
	d.Frequency = ""
	d.Metadata = map[string]string{}
	return d
}

// Scenario is a versioned snapshot of every ResourceAttr's dataset
// binding and group membership within a Network. Name unique within
// Network.
type Scenario struct {
	ScenarioID  int64
	NetworkID   int64
	Name        string
	Description string
	StartTime   string
	EndTime     string
	TimeStep    string
	Locked      YesNo
	Status      Status
	CreatedBy   int64
	CreatedAt   time.Time
}

// ResourceScenario binds one attribute value to one dataset within one
// scenario. Primary key is (ScenarioID, ResourceAttrID).
type ResourceScenario struct {
	ScenarioID     int64
	ResourceAttrID int64
	DatasetID      int64
	Source         string
}

// ResourceGroupItem records one member of a ResourceGroup as it stood in
// a particular scenario.
type ResourceGroupItem struct {
	ItemID     int64
	ScenarioID int64
	GroupID    int64
	RefKey     RefKey
	NodeID     *int64
	LinkID     *int64
	SubgroupID *int64
}

// MemberTuple is the comparable identity of a group item. pkg/differ
// builds its own [5]int64 key for its symmetric-difference comparison
// and does not use this type.
type MemberTuple struct {
	GroupID    int64
	RefKey     RefKey
	NodeID     int64
	LinkID     int64
	SubgroupID int64
}

func (i ResourceGroupItem) Tuple() MemberTuple {
	return MemberTuple{
		GroupID:    i.GroupID,
		RefKey:     i.RefKey,
		NodeID:     derefOr(i.NodeID, 0),
		LinkID:     derefOr(i.LinkID, 0),
		SubgroupID: derefOr(i.SubgroupID, 0),
	}
}

// OwnerEntity enumerates the entity kinds that carry owner rows.
type OwnerEntity string

const (
	OwnerEntityProject  OwnerEntity = "project"
	OwnerEntityNetwork  OwnerEntity = "network"
	OwnerEntityTemplate OwnerEntity = "template"
	OwnerEntityDataset  OwnerEntity = "dataset"
)

// Owner is one (user, entity) permission row carrying view/edit/share
// bits. One row exists per user per entity per entity-kind.
type Owner struct {
	Entity   OwnerEntity
	EntityID int64
	UserID   int64
	View     YesNo
	Edit     YesNo
	Share    YesNo
}

// ResourceAttrMap links two ResourceAttrs across networks/templates for
// value propagation (order-insensitive).
type ResourceAttrMap struct {
	SourceResourceAttrID int64
	TargetResourceAttrID int64
}

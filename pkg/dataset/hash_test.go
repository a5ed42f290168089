package dataset

import (
	"testing"

	"github.com/hydroframe/scenario-engine/pkg/types"
)

func TestHashStableForEquivalentMetadataOrder(t *testing.T) {
	a := Hash("flow", "m3/s", "time", types.DatasetScalar, []byte("1.0"), map[string]string{"a": "1", "b": "2"})
	b := Hash("flow", "m3/s", "time", types.DatasetScalar, []byte("1.0"), map[string]string{"b": "2", "a": "1"})
	if a != b {
		t.Errorf("Hash() not metadata-order independent: %d != %d", a, b)
	}
}

func TestHashDiffersOnValue(t *testing.T) {
	a := Hash("flow", "m3/s", "time", types.DatasetScalar, []byte("1.0"), nil)
	b := Hash("flow", "m3/s", "time", types.DatasetScalar, []byte("2.0"), nil)
	if a == b {
		t.Error("Hash() collided for different values")
	}
}

func TestHashDiffersOnFieldBoundary(t *testing.T) {
	// "ab","c" must not collide with "a","bc" — guards against a naive
	// unprefixed concatenation of fields.
	a := Hash("ab", "c", "", types.DatasetScalar, nil, nil)
	b := Hash("a", "bc", "", types.DatasetScalar, nil, nil)
	if a == b {
		t.Error("Hash() collided across a field boundary")
	}
}

func TestHashDiffersOnType(t *testing.T) {
	a := Hash("x", "", "", types.DatasetScalar, []byte("1"), nil)
	b := Hash("x", "", "", types.DatasetDescriptor, []byte("1"), nil)
	if a == b {
		t.Error("Hash() collided across different dataset types")
	}
}

func TestHashDeterministic(t *testing.T) {
	meta := map[string]string{"source": "sensor-12"}
	a := Hash("stage", "m", "length", types.DatasetTimeseries, []byte(`{"x":1}`), meta)
	b := Hash("stage", "m", "length", types.DatasetTimeseries, []byte(`{"x":1}`), meta)
	if a != b {
		t.Errorf("Hash() not deterministic across calls: %d != %d", a, b)
	}
}

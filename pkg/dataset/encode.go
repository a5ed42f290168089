package dataset

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/hydroframe/scenario-engine/pkg/errs"
	"github.com/hydroframe/scenario-engine/pkg/types"
)

// Encode normalizes raw into the canonical byte representation that is
// both stored (after optional compression) and hashed. The shape of raw
// depends on dtype:
//
//   - scalar, descriptor: a string.
//   - array: a string holding JSON (rejected with InvalidInput if it is
//     not valid JSON) or any JSON-marshalable value.
//   - timeseries: a []TimePoint, or a string holding an already-serialized
//     JSON time-indexed table.
func Encode(dtype types.DatasetType, raw any) ([]byte, error) {
	switch dtype {
	case types.DatasetScalar, types.DatasetDescriptor:
		s, ok := raw.(string)
		if !ok {
			return nil, errs.New(errs.InvalidInput, "%s dataset requires a string value", dtype)
		}
		return []byte(s), nil

	case types.DatasetArray:
		if s, ok := raw.(string); ok {
			if !json.Valid([]byte(s)) {
				return nil, errs.New(errs.InvalidInput, "array dataset value is not valid JSON")
			}
			return canonicalizeJSON([]byte(s))
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidInput, err, "encoding array dataset value")
		}
		return b, nil

	case types.DatasetTimeseries:
		switch v := raw.(type) {
		case string:
			if !json.Valid([]byte(v)) {
				return nil, errs.New(errs.InvalidInput, "timeseries dataset value is not valid JSON")
			}
			return canonicalizeJSON([]byte(v))
		case []TimePoint:
			return encodeTimeseries(v)
		default:
			return nil, errs.New(errs.InvalidInput, "timeseries dataset requires []TimePoint or a JSON string")
		}

	default:
		return nil, errs.New(errs.InvalidDataType, "unknown dataset type %q", dtype)
	}
}

// canonicalizeJSON re-marshals JSON so object keys come out in Go's
// deterministic (sorted) order regardless of the source's formatting,
// so that hashing is stable across equivalent but differently-ordered
// input documents.
func canonicalizeJSON(raw []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errs.Wrap(errs.InvalidInput, err, "decoding JSON dataset value")
	}
	return json.Marshal(v)
}

// isoNano formats t as an ISO-8601 timestamp at nanosecond precision.
func isoNano(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// encodeTimeseries normalizes a list of (timestamp, value) pairs into a
// JSON object keyed by ISO-8601 nanosecond timestamp, coercing each
// value token to its literal JSON form (number, array, object) when it
// parses as one, and to a JSON string otherwise. encoding/json sorts
// object keys when marshaling a map, which for same-length ISO-8601 UTC
// timestamps is also chronological order, so the output is deterministic.
func encodeTimeseries(points []TimePoint) ([]byte, error) {
	sorted := make([]TimePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	table := make(map[string]json.RawMessage, len(sorted))
	for _, p := range sorted {
		key := isoNano(p.Timestamp)
		var probe any
		if err := json.Unmarshal([]byte(p.Value), &probe); err == nil {
			table[key] = json.RawMessage(p.Value)
			continue
		}
		b, err := json.Marshal(p.Value)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidInput, err, "encoding timeseries value at %s", key)
		}
		table[key] = b
	}
	return json.Marshal(table)
}

// DecodeTimeseries parses a canonical timeseries payload back into
// ordered TimePoints, for callers (pkg/query) that need the table shape
// rather than raw bytes.
func DecodeTimeseries(canonical []byte) ([]TimePoint, error) {
	var table map[string]json.RawMessage
	if err := json.Unmarshal(canonical, &table); err != nil {
		return nil, errs.Wrap(errs.InvalidInput, err, "decoding timeseries payload")
	}
	out := make([]TimePoint, 0, len(table))
	for k, v := range table {
		ts, err := time.Parse("2006-01-02T15:04:05.000000000Z", k)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidInput, err, "parsing timeseries timestamp %q", k)
		}
		out = append(out, TimePoint{Timestamp: ts, Value: string(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// inferTimeseriesSummary extracts the earliest timestamp and an
// approximate frequency label from a canonical timeseries payload, for
// Dataset.StartTime/Frequency. Frequency is left blank when fewer than
// two points are present or spacing is irregular enough that no single
// label applies; callers treat an empty Frequency as "irregular".
func inferTimeseriesSummary(canonical []byte) (start, frequency string) {
	points, err := DecodeTimeseries(canonical)
	if err != nil || len(points) == 0 {
		return "", ""
	}
	start = isoNano(points[0].Timestamp)
	if len(points) < 2 {
		return start, ""
	}
	step := points[1].Timestamp.Sub(points[0].Timestamp)
	for i := 2; i < len(points); i++ {
		if points[i].Timestamp.Sub(points[i-1].Timestamp) != step {
			return start, ""
		}
	}
	return start, step.String()
}

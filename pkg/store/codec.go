package store

import "encoding/json"

func (s *Session) putJSON(bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.bucket(bucket).Put(key, data)
}

func (s *Session) getJSON(bucket, key []byte, v any, kind string, id any) error {
	data := s.bucket(bucket).Get(key)
	if data == nil {
		return notFound(kind, id)
	}
	// bbolt only guarantees the byte slice is valid for the lifetime of
	// the transaction; json.Unmarshal copies it into v immediately so no
	// further copy is needed here.
	return json.Unmarshal(data, v)
}

package crmsync

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
)

func isNull(msg json.RawMessage) bool {
	return len(msg) == 0 || string(msg) == "null"
}

func decodeString(msg json.RawMessage) (interface{}, error) {
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return nil, errors.New("must be a string")
	}
	return s, nil
}

// The nullable decoders return typed nil pointers; gorm writes them as NULL.
func decodeNullableString(msg json.RawMessage) (interface{}, error) {
	if isNull(msg) {
		return (*string)(nil), nil
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return nil, errors.New("must be a string or null")
	}
	return &s, nil
}

func decodeNullableInt(msg json.RawMessage) (interface{}, error) {
	if isNull(msg) {
		return (*int)(nil), nil
	}
	var n int
	if err := json.Unmarshal(msg, &n); err != nil {
		return nil, errors.New("must be an integer or null")
	}
	return &n, nil
}

// decodeNullableTime accepts RFC 3339 timestamps and stores them in UTC.
func decodeNullableTime(msg json.RawMessage) (interface{}, error) {
	if isNull(msg) {
		return (*time.Time)(nil), nil
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return nil, errors.New("must be an ISO-8601 string or null")
	}
	if s == "" {
		return (*time.Time)(nil), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errors.New("must be an ISO-8601 timestamp")
	}
	t = t.UTC()
	return &t, nil
}

// decodeImages keeps the URL list as a JSON text blob.
func decodeImages(msg json.RawMessage) (interface{}, error) {
	if isNull(msg) {
		return nil, nil
	}
	var urls []string
	if err := json.Unmarshal(msg, &urls); err != nil {
		return nil, errors.New("must be an array of strings or null")
	}
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

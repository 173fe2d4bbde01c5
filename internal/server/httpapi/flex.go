package httpapi

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexID accepts a JSON number or a numeric string. Clients send parentId
// both ways; anything else decodes as the root.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexID(n)
	return nil
}

// flexBool accepts true/false as JSON booleans or strings.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexBool(v)
		return nil
	}
	v, _ = strconv.ParseBool(string(bytes.Trim(b, `"`)))
	*f = flexBool(v)
	return nil
}

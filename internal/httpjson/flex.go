package httpjson

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexString decodes from either a JSON string or a JSON number. Broker
// platforms disagree on whether account and instrument ids are quoted.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flex string: %s is neither string nor number", b)
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string { return string(s) }

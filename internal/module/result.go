package module

import (
	"encoding/json"
	"fmt"
)

// Result applies the common reply rule: a non-zero code goes to onFail with
// the server message, a success without data is ignored, and a success with
// data is decoded into T and passed to onOK. A decode error is returned and
// neither callback runs.
func Result[T any](code int, msg, data string, onOK func(T), onFail func(string)) error {
	if code != 0 {
		if onFail != nil {
			onFail(msg)
		}
		return nil
	}
	if data == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if onOK != nil {
		onOK(v)
	}
	return nil
}

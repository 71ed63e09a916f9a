package fetcher

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// DecodeJSON decodes a single JSON document into T. Unknown fields are ignored.
func DecodeJSON[T any](data []byte) (*T, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, eris.New("json: empty body")
	}
	var obj T
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}

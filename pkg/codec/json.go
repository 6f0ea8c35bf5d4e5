// Package codec provides a Connect codec for plain Go message structs.
package codec

import (
	"github.com/goccy/go-json"
)

// JSON replaces Connect's protojson codec so handlers can exchange ordinary
// structs with json tags.
type JSON struct{}

// Name matches the built-in codec so clients sending application/json are served.
func (JSON) Name() string { return "json" }

func (JSON) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// Unmarshal treats an empty body as an empty message.
func (JSON) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

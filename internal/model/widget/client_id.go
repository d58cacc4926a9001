package widget

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ClientID identifies the widget to the remote reply service. Deployments use
// either a string or a number; the original JSON type is kept on the wire.
type ClientID struct {
	value   string
	numeric bool
}

// NewClientID returns a string-typed identifier.
func NewClientID(value string) ClientID {
	return ClientID{value: value}
}

// NewNumericClientID returns an identifier that encodes as a JSON number.
func NewNumericClientID(value int64) ClientID {
	return ClientID{value: strconv.FormatInt(value, 10), numeric: true}
}

func (c ClientID) String() string { return c.value }

func (c ClientID) MarshalJSON() ([]byte, error) {
	if c.numeric {
		return []byte(c.value), nil
	}
	return json.Marshal(c.value)
}

func (c *ClientID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ClientID{value: s}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ID_chatbot_client must be a string or number: %w", err)
	}
	*c = ClientID{value: n.String(), numeric: true}
	return nil
}

func (c *ClientID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("ID_chatbot_client must be a scalar, got kind %d", node.Kind)
	}
	switch node.Tag {
	case "!!int", "!!float":
		*c = ClientID{value: node.Value, numeric: true}
	default:
		*c = ClientID{value: node.Value}
	}
	return nil
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Value is a single metric reading or rule threshold. Most readings are
// numeric; operational status metrics (ifOperStatus and friends) carry text.
type Value struct {
	Number float64
	Text   string
	IsText bool
}

// Num returns a numeric Value.
func Num(n float64) Value {
	return Value{Number: n}
}

// Str returns a text Value.
func Str(s string) Value {
	return Value{Text: s, IsText: true}
}

// Float returns the numeric form of v. Text values are parsed; ok is false
// when the text is not a number.
func (v Value) Float() (float64, bool) {
	if !v.IsText {
		return v.Number, true
	}
	f, err := strconv.ParseFloat(v.Text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Equal is exact equality: numbers equal numbers, text equals text. No
// coercion between the two.
func (v Value) Equal(o Value) bool {
	if v.IsText != o.IsText {
		return false
	}
	if v.IsText {
		return v.Text == o.Text
	}
	return v.Number == o.Number
}

func (v Value) String() string {
	if v.IsText {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsText {
		return json.Marshal(v.Text)
	}
	return json.Marshal(v.Number)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Str(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value must be a number or a string: %w", err)
	}
	*v = Num(n)
	return nil
}

func (v Value) MarshalYAML() (interface{}, error) {
	if v.IsText {
		return v.Text, nil
	}
	return v.Number, nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: value must be a scalar", node.Line)
	}
	if node.Tag == "!!int" || node.Tag == "!!float" {
		var n float64
		if err := node.Decode(&n); err != nil {
			return err
		}
		*v = Num(n)
		return nil
	}
	*v = Str(node.Value)
	return nil
}

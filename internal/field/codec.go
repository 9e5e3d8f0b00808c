package field

import (
	"encoding/json"
	"fmt"
)

const (
	kindSine   = "sine"
	kindScaled = "scaled"
	kindSum    = "sum"
)

// node is the serialized form of a Field.
type node struct {
	Kind   string   `json:"kind"`
	Alpha  *float64 `json:"alpha,omitempty"`
	Offset *float64 `json:"offset,omitempty"`
	Factor *float64 `json:"factor,omitempty"`
	Inner  *node    `json:"inner,omitempty"`
	Terms  []*node  `json:"terms,omitempty"`
}

// Marshal encodes f as a tagged JSON tree.
func Marshal(f Field) ([]byte, error) {
	n, err := toNode(f)
	if err != nil {
		return nil, err
	}
	return json.Marshal(n)
}

// Unmarshal decodes a tree produced by Marshal.
func Unmarshal(data []byte) (Field, error) {
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to decode field: %w", err)
	}
	return fromNode(&n)
}

func toNode(f Field) (*node, error) {
	switch v := f.(type) {
	case Sine:
		alpha, offset := v.Alpha, v.Offset
		return &node{Kind: kindSine, Alpha: &alpha, Offset: &offset}, nil
	case Scaled:
		inner, err := toNode(v.Inner)
		if err != nil {
			return nil, err
		}
		factor := v.Factor
		return &node{Kind: kindScaled, Factor: &factor, Inner: inner}, nil
	case Sum:
		n := &node{Kind: kindSum, Terms: make([]*node, 0, len(v.Terms))}
		for i, t := range v.Terms {
			tn, err := toNode(t)
			if err != nil {
				return nil, fmt.Errorf("term %d: %w", i, err)
			}
			n.Terms = append(n.Terms, tn)
		}
		return n, nil
	case nil:
		return nil, fmt.Errorf("cannot encode nil field")
	default:
		return nil, fmt.Errorf("unsupported field type %T", f)
	}
}

func fromNode(n *node) (Field, error) {
	switch n.Kind {
	case kindSine:
		if n.Alpha == nil || n.Offset == nil {
			return nil, fmt.Errorf("sine field requires alpha and offset")
		}
		return Sine{Alpha: *n.Alpha, Offset: *n.Offset}, nil
	case kindScaled:
		if n.Factor == nil || n.Inner == nil {
			return nil, fmt.Errorf("scaled field requires factor and inner")
		}
		inner, err := fromNode(n.Inner)
		if err != nil {
			return nil, err
		}
		return Scaled{Inner: inner, Factor: *n.Factor}, nil
	case kindSum:
		terms := make([]Field, 0, len(n.Terms))
		for i, tn := range n.Terms {
			if tn == nil {
				return nil, fmt.Errorf("term %d: missing", i)
			}
			t, err := fromNode(tn)
			if err != nil {
				return nil, fmt.Errorf("term %d: %w", i, err)
			}
			terms = append(terms, t)
		}
		return Sum{Terms: terms}, nil
	default:
		return nil, fmt.Errorf("unknown field kind %q", n.Kind)
	}
}

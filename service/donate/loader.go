// Package donate loads donation pairs and dispatches them to the campaign
// donate endpoint, one request at a time, in input order.
package donate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/itchyny/gojq"
)

// ErrLoad indicates the donation input could not be loaded: missing or
// unreadable file, invalid JSON, or a shape other than an array of
// [original_address, signature] string pairs. It halts the run before any
// request is issued.
var ErrLoad = errors.New("failed to load donation pairs")

// Pair is one (original address, signature) record from the input file.
type Pair struct {
	Original  string
	Signature string
}

// LoadPairs reads a UTF-8 JSON file whose top level is an array of 2-element
// arrays of strings. No validation of address or signature format is
// performed. All failures wrap ErrLoad.
func LoadPairs(path string) ([]Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrLoad, path, err)
	}

	var raw [][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrLoad, path, err)
	}

	pairs := make([]Pair, len(raw))
	for i, elem := range raw {
		if len(elem) != 2 {
			return nil, fmt.Errorf("%w: element %d has %d values, want 2", ErrLoad, i, len(elem))
		}
		pairs[i] = Pair{Original: elem[0], Signature: elem[1]}
	}
	return pairs, nil
}

// ExtractPairs applies a compiled jq expression to an already-decoded JSON
// document and interprets each emitted value as one pair: a 2-element array
// of strings. Shape violations after filtering wrap ErrLoad exactly like
// LoadPairs.
func ExtractPairs(doc any, query *gojq.Code) ([]Pair, error) {
	var pairs []Pair
	iter := query.Run(doc)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("%w: jq evaluation: %v", ErrLoad, err)
		}
		pair, err := pairFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrLoad, len(pairs), err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func pairFromValue(v any) (Pair, error) {
	elem, ok := v.([]any)
	if !ok {
		return Pair{}, fmt.Errorf("emitted value is %T, want a 2-element array", v)
	}
	if len(elem) != 2 {
		return Pair{}, fmt.Errorf("emitted array has %d values, want 2", len(elem))
	}
	original, ok := elem[0].(string)
	if !ok {
		return Pair{}, fmt.Errorf("first value is %T, want string", elem[0])
	}
	signature, ok := elem[1].(string)
	if !ok {
		return Pair{}, fmt.Errorf("second value is %T, want string", elem[1])
	}
	return Pair{Original: original, Signature: signature}, nil
}

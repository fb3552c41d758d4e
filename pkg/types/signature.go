package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	CanonicalSignatureLength = 65
	SignatureComponentLength = 32
)

// CanonicalSignature is r || s || v with v in {27, 28}.
type CanonicalSignature [CanonicalSignatureLength]byte

func (s CanonicalSignature) Bytes() []byte {
	out := make([]byte, CanonicalSignatureLength)
	copy(out, s[:])
	return out
}

func (s CanonicalSignature) R() []byte {
	return s.Bytes()[:SignatureComponentLength]
}

func (s CanonicalSignature) S() []byte {
	return s.Bytes()[SignatureComponentLength : 2*SignatureComponentLength]
}

func (s CanonicalSignature) V() byte {
	return s[CanonicalSignatureLength-1]
}

// Hex returns 0x followed by 130 hex characters.
func (s CanonicalSignature) Hex() string {
	return hexutil.Encode(s[:])
}

func (s CanonicalSignature) String() string {
	return s.Hex()
}

func (s CanonicalSignature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Hex())
}

func (s *CanonicalSignature) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(hexStr)
	if err != nil {
		return err
	}
	if len(decoded) != CanonicalSignatureLength {
		return &SignatureFormatError{Expected: CanonicalSignatureLength, Actual: len(decoded)}
	}
	copy(s[:], decoded)
	return nil
}

// RawSignature is a signature as returned by the custody service. Exactly one of
// three shapes is populated: Hex; FullSig with optional V; or R and S with
// optional V. V holds whatever the custody sent (decimal or 0x-prefixed hex),
// and Fields lists the keys present in the decoded object.
type RawSignature struct {
	Hex     string   `json:"-"`
	FullSig string   `json:"fullSig,omitempty"`
	R       string   `json:"r,omitempty"`
	S       string   `json:"s,omitempty"`
	V       string   `json:"v,omitempty"`
	Fields  []string `json:"-"`
}

// RawHexSignature wraps a bare hex string signature.
func RawHexSignature(hexStr string) RawSignature {
	return RawSignature{Hex: hexStr}
}

// HasComponents reports whether explicit r and s values are present.
func (r RawSignature) HasComponents() bool {
	return r.R != "" || r.S != ""
}

// FieldNames lists the populated fields, for diagnostics.
func (r RawSignature) FieldNames() []string {
	if len(r.Fields) > 0 {
		return r.Fields
	}
	var names []string
	if r.Hex != "" {
		names = append(names, "hex")
	}
	if r.FullSig != "" {
		names = append(names, "fullSig")
	}
	if r.R != "" {
		names = append(names, "r")
	}
	if r.S != "" {
		names = append(names, "s")
	}
	if r.V != "" {
		names = append(names, "v")
	}
	return names
}

// UnmarshalJSON accepts either a JSON string or an object. Object values for v
// may be numbers or strings; any other v token is kept as its raw text and
// later treated as unparseable.
func (r *RawSignature) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RawSignature{Hex: s}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("signature must be a hex string or an object: %w", err)
	}

	out := RawSignature{}
	for k := range obj {
		out.Fields = append(out.Fields, k)
	}
	sort.Strings(out.Fields)

	var err error
	if out.FullSig, err = scalarString(obj, "fullSig"); err != nil {
		return err
	}
	if out.R, err = scalarString(obj, "r"); err != nil {
		return err
	}
	if out.S, err = scalarString(obj, "s"); err != nil {
		return err
	}
	out.V = recoveryString(obj["v"])
	*r = out
	return nil
}

// scalarString reads a string or number field as its textual value.
func scalarString(obj map[string]json.RawMessage, key string) (string, error) {
	raw, ok := obj[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("signature field %q must be a string or number", key)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return "", fmt.Errorf("signature field %q must be an integer, got %s", key, n.String())
	}
	return n.String(), nil
}

// recoveryString never fails: booleans, fractions and nested values come back
// as their JSON text so the recovery id falls back to its default.
func recoveryString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

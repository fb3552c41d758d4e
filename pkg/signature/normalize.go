// Package signature converts the signature shapes returned by custody services
// into a single 65 byte r || s || v layout with v in {27, 28}.
package signature

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// DefaultRecoveryId is used when the custody omits v or sends something unparseable.
	DefaultRecoveryId byte = 27

	compactLength = 2 * types.SignatureComponentLength
)

// Normalize converts raw into its canonical form. It never returns a partially
// formed signature: anything that cannot become exactly 65 bytes is a
// *types.SignatureFormatError.
func Normalize(raw types.RawSignature) (types.CanonicalSignature, error) {
	switch {
	case raw.HasComponents():
		return fromComponents(raw)
	case raw.FullSig != "":
		return fromFullSig(raw)
	case raw.Hex != "":
		return fromHex(raw)
	default:
		return types.CanonicalSignature{}, formatError(raw, 0, "no signature fields present")
	}
}

// NormalizeJSON decodes a custody signature payload (string or object) and normalizes it.
func NormalizeJSON(data []byte) (types.CanonicalSignature, error) {
	var raw types.RawSignature
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.CanonicalSignature{}, &types.SignatureFormatError{
			Expected: types.CanonicalSignatureLength,
			Reason:   err.Error(),
		}
	}
	return Normalize(raw)
}

// Parse decodes a 0x-prefixed hex string that is already canonical.
func Parse(hexStr string) (types.CanonicalSignature, error) {
	return fromHex(types.RawHexSignature(hexStr))
}

func fromHex(raw types.RawSignature) (types.CanonicalSignature, error) {
	b, err := decodeHex(raw.Hex, false)
	if err != nil {
		return types.CanonicalSignature{}, formatError(raw, 0, err.Error())
	}
	switch len(b) {
	case types.CanonicalSignatureLength:
		v, ok := recoveryFromUint(uint64(b[compactLength]))
		if !ok {
			return types.CanonicalSignature{}, formatError(raw, len(b), fmt.Sprintf("recovery byte %d is not a valid recovery id", b[compactLength]))
		}
		return assemble(b[:types.SignatureComponentLength], b[types.SignatureComponentLength:compactLength], v, raw)
	case compactLength:
		return assemble(b[:types.SignatureComponentLength], b[types.SignatureComponentLength:], DefaultRecoveryId, raw)
	default:
		return types.CanonicalSignature{}, formatError(raw, len(b), "")
	}
}

func fromComponents(raw types.RawSignature) (types.CanonicalSignature, error) {
	r, err := decodeHex(raw.R, true)
	if err != nil {
		return types.CanonicalSignature{}, formatError(raw, 0, fmt.Sprintf("r: %v", err))
	}
	s, err := decodeHex(raw.S, true)
	if err != nil {
		return types.CanonicalSignature{}, formatError(raw, 0, fmt.Sprintf("s: %v", err))
	}
	if len(r) == 0 || len(s) == 0 {
		return types.CanonicalSignature{}, formatError(raw, len(r)+len(s), "both r and s are required")
	}
	r, s = trimLeadingZeros(r), trimLeadingZeros(s)
	if len(r) > types.SignatureComponentLength || len(s) > types.SignatureComponentLength {
		return types.CanonicalSignature{}, formatError(raw, len(r)+len(s)+1, "r and s must each fit in 32 bytes")
	}
	return assemble(leftPad(r), leftPad(s), recoveryIdOrDefault(raw.V), raw)
}

func fromFullSig(raw types.RawSignature) (types.CanonicalSignature, error) {
	b, err := decodeHex(raw.FullSig, false)
	if err != nil {
		return types.CanonicalSignature{}, formatError(raw, 0, fmt.Sprintf("fullSig: %v", err))
	}
	switch len(b) {
	case compactLength:
		return assemble(b[:types.SignatureComponentLength], b[types.SignatureComponentLength:], recoveryIdOrDefault(raw.V), raw)
	case types.CanonicalSignatureLength:
		// An explicit v wins only when it parses; otherwise the embedded byte is used.
		v, ok := parseRecoveryId(raw.V)
		if !ok {
			if v, ok = recoveryFromUint(uint64(b[compactLength])); !ok {
				return types.CanonicalSignature{}, formatError(raw, len(b), fmt.Sprintf("recovery byte %d is not a valid recovery id", b[compactLength]))
			}
		}
		return assemble(b[:types.SignatureComponentLength], b[types.SignatureComponentLength:compactLength], v, raw)
	default:
		return types.CanonicalSignature{}, formatError(raw, len(b)+1, "fullSig must hold 64 bytes")
	}
}

func assemble(r, s []byte, v byte, raw types.RawSignature) (types.CanonicalSignature, error) {
	var out types.CanonicalSignature
	if len(r) != types.SignatureComponentLength || len(s) != types.SignatureComponentLength {
		return out, formatError(raw, len(r)+len(s)+1, "")
	}
	if v != 27 && v != 28 {
		return out, formatError(raw, types.CanonicalSignatureLength, fmt.Sprintf("recovery id %d is not 27 or 28", v))
	}
	copy(out[:types.SignatureComponentLength], r)
	copy(out[types.SignatureComponentLength:compactLength], s)
	out[compactLength] = v
	return out, nil
}

func recoveryIdOrDefault(v string) byte {
	if id, ok := parseRecoveryId(v); ok {
		return id
	}
	return DefaultRecoveryId
}

// parseRecoveryId accepts decimal or 0x-prefixed hex. 0/1 map to 27/28 and
// EIP-155 encoded values are reduced to their parity. ok is false for absent,
// unparseable or out of range input.
func parseRecoveryId(v string) (byte, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}

	n, ok := new(big.Int), false
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		n, ok = n.SetString(v[2:], 16)
	} else {
		n, ok = n.SetString(v, 10)
	}
	if !ok || n.Sign() < 0 || !n.IsUint64() {
		return 0, false
	}
	return recoveryFromUint(n.Uint64())
}

func recoveryFromUint(v uint64) (byte, bool) {
	switch {
	case v == 0 || v == 1:
		return byte(v) + 27, true
	case v == 27 || v == 28:
		return byte(v), true
	case v >= 35:
		// chainId * 2 + 35 + parity
		return byte((v-35)%2) + 27, true
	default:
		return 0, false
	}
}

// decodeHex accepts values with or without 0x. Odd-length input is only allowed
// for integer components, where a leading zero nibble is implied.
func decodeHex(s string, integer bool) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		if !integer {
			return nil, fmt.Errorf("hex string has odd length %d", len(s))
		}
		s = "0" + s
	}
	return hexutil.Decode("0x" + s)
}

func trimLeadingZeros(b []byte) []byte {
	for len(b) > types.SignatureComponentLength && b[0] == 0 {
		b = b[1:]
	}
	return b
}

func leftPad(b []byte) []byte {
	if len(b) >= types.SignatureComponentLength {
		return b
	}
	out := make([]byte, types.SignatureComponentLength)
	copy(out[types.SignatureComponentLength-len(b):], b)
	return out
}

func formatError(raw types.RawSignature, actual int, reason string) *types.SignatureFormatError {
	return &types.SignatureFormatError{
		Expected: types.CanonicalSignatureLength,
		Actual:   actual,
		Fields:   raw.FieldNames(),
		Reason:   reason,
	}
}

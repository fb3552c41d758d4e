package signer

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/Layr-Labs/eigenx-custody-signer/pkg/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// arraySuffix strips "[]" and "[N]" so "Person[]" refers to "Person".
var arraySuffix = regexp.MustCompile(`(\[\d*\])+$`)

// SynthesizeDomainType builds the EIP712Domain descriptor from the populated
// fields of domain, in the fixed order name, version, chainId, verifyingContract,
// salt. Absent fields are omitted, never defaulted.
func SynthesizeDomainType(domain apitypes.TypedDataDomain) []apitypes.Type {
	fields := make([]apitypes.Type, 0, 5)
	if domain.Name != "" {
		fields = append(fields, apitypes.Type{Name: "name", Type: "string"})
	}
	if domain.Version != "" {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	if domain.ChainId != nil {
		fields = append(fields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if domain.VerifyingContract != "" {
		fields = append(fields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	if domain.Salt != "" {
		fields = append(fields, apitypes.Type{Name: "salt", Type: "bytes32"})
	}
	return fields
}

// SelectPrimaryType picks the primary type of a schema:
//
//  1. explicit, when non-empty (it must be declared and must not be the domain type)
//  2. the only non-domain type
//  3. the single non-domain type no other type references
//  4. otherwise the lexicographically first unreferenced type, or the first
//     type overall when every type is referenced
func SelectPrimaryType(schema apitypes.Types, explicit string) (string, error) {
	if explicit != "" {
		if explicit == types.DomainTypeName {
			return "", fmt.Errorf("%w: primary type cannot be %s", types.ErrInvalidRequest, types.DomainTypeName)
		}
		if _, ok := schema[explicit]; !ok {
			return "", fmt.Errorf("%w: primary type %s is not declared", types.ErrInvalidRequest, explicit)
		}
		return explicit, nil
	}

	candidates := make([]string, 0, len(schema))
	for name := range schema {
		if name != types.DomainTypeName {
			candidates = append(candidates, name)
		}
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: schema declares no message type", types.ErrInvalidRequest)
	case 1:
		return candidates[0], nil
	}

	referenced := make(map[string]bool)
	for owner, fields := range schema {
		for _, f := range fields {
			ref := arraySuffix.ReplaceAllString(f.Type, "")
			if ref != owner {
				referenced[ref] = true
			}
		}
	}

	for _, name := range candidates {
		if !referenced[name] {
			return name, nil
		}
	}
	return candidates[0], nil
}

// BuildTypedData turns req into a complete envelope: domain type present,
// primary type resolved and the message hashable under the schema.
func BuildTypedData(req *types.SigningRequest) (apitypes.TypedData, error) {
	if req == nil {
		return apitypes.TypedData{}, fmt.Errorf("%w: request is nil", types.ErrInvalidRequest)
	}
	if req.Message == nil {
		return apitypes.TypedData{}, fmt.Errorf("%w: message is required", types.ErrInvalidRequest)
	}

	schema := make(apitypes.Types, len(req.Types)+1)
	for name, fields := range req.Types {
		schema[name] = append([]apitypes.Type(nil), fields...)
	}
	if _, ok := schema[types.DomainTypeName]; !ok {
		schema[types.DomainTypeName] = SynthesizeDomainType(req.Domain)
	}

	primaryType, err := SelectPrimaryType(schema, req.PrimaryType)
	if err != nil {
		return apitypes.TypedData{}, err
	}

	td := apitypes.TypedData{
		Types:       schema,
		PrimaryType: primaryType,
		Domain:      req.Domain,
		Message:     req.Message,
	}
	if _, _, err := apitypes.TypedDataAndHash(td); err != nil {
		return apitypes.TypedData{}, fmt.Errorf("%w: %v", types.ErrInvalidRequest, err)
	}
	return td, nil
}

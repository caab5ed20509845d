package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Claim limits.
const (
	MaxClaimKeyLength    = 100
	MaxClaimStringLength = 1000
	MaxClaimListLength   = 50
	MaxClaimMapEntries   = 20
)

// reservedClaims are registered JWT claim names a custom claim must not shadow.
var reservedClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {},
}

// ErrInvalidClaim is returned by Claims.Validate.
var ErrInvalidClaim = errors.New("invalid claim")

// ClaimKind tags the variant held by a ClaimValue.
type ClaimKind int

const (
	ClaimString ClaimKind = iota + 1
	ClaimNumber
	ClaimBool
	ClaimList
	ClaimMap
)

// ClaimValue is one of string, number, bool, list or map. The zero value
// holds nothing and fails validation.
type ClaimValue struct {
	kind ClaimKind
	str  string
	num  float64
	b    bool
	list []ClaimValue
	m    map[string]ClaimValue
}

func StringClaim(s string) ClaimValue          { return ClaimValue{kind: ClaimString, str: s} }
func NumberClaim(n float64) ClaimValue         { return ClaimValue{kind: ClaimNumber, num: n} }
func BoolClaim(b bool) ClaimValue              { return ClaimValue{kind: ClaimBool, b: b} }
func ListClaim(items ...ClaimValue) ClaimValue { return ClaimValue{kind: ClaimList, list: items} }

func MapClaim(m map[string]ClaimValue) ClaimValue {
	return ClaimValue{kind: ClaimMap, m: m}
}

func (v ClaimValue) Kind() ClaimKind { return v.kind }

func (v ClaimValue) AsString() (string, bool) { return v.str, v.kind == ClaimString }

func (v ClaimValue) AsNumber() (float64, bool) { return v.num, v.kind == ClaimNumber }

func (v ClaimValue) AsBool() (bool, bool) { return v.b, v.kind == ClaimBool }

func (v ClaimValue) AsList() ([]ClaimValue, bool) { return v.list, v.kind == ClaimList }

func (v ClaimValue) AsMap() (map[string]ClaimValue, bool) { return v.m, v.kind == ClaimMap }

func (v ClaimValue) validate(path string) error {
	switch v.kind {
	case ClaimString:
		if utf8.RuneCountInString(v.str) > MaxClaimStringLength {
			return fmt.Errorf("%w: %s: string longer than %d", ErrInvalidClaim, path, MaxClaimStringLength)
		}
	case ClaimNumber, ClaimBool:
	case ClaimList:
		if len(v.list) > MaxClaimListLength {
			return fmt.Errorf("%w: %s: list longer than %d", ErrInvalidClaim, path, MaxClaimListLength)
		}
		for i, item := range v.list {
			if err := item.validate(fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case ClaimMap:
		if len(v.m) > MaxClaimMapEntries {
			return fmt.Errorf("%w: %s: map has more than %d entries", ErrInvalidClaim, path, MaxClaimMapEntries)
		}
		return Claims(v.m).validate(path + ".")
	default:
		return fmt.Errorf("%w: %s: empty value", ErrInvalidClaim, path)
	}
	return nil
}

func (v ClaimValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ClaimString:
		return json.Marshal(v.str)
	case ClaimNumber:
		return json.Marshal(v.num)
	case ClaimBool:
		return json.Marshal(v.b)
	case ClaimList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case ClaimMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	}
	return []byte("null"), nil
}

func (v *ClaimValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := claimFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func claimFromAny(raw any) (ClaimValue, error) {
	switch t := raw.(type) {
	case string:
		return StringClaim(t), nil
	case float64:
		return NumberClaim(t), nil
	case bool:
		return BoolClaim(t), nil
	case []any:
		items := make([]ClaimValue, 0, len(t))
		for _, item := range t {
			v, err := claimFromAny(item)
			if err != nil {
				return ClaimValue{}, err
			}
			items = append(items, v)
		}
		return ListClaim(items...), nil
	case map[string]any:
		m := make(map[string]ClaimValue, len(t))
		for k, item := range t {
			v, err := claimFromAny(item)
			if err != nil {
				return ClaimValue{}, err
			}
			m[k] = v
		}
		return MapClaim(m), nil
	}
	return ClaimValue{}, fmt.Errorf("%w: unsupported JSON value %T", ErrInvalidClaim, raw)
}

// Claims is a set of custom claims attached to a session.
type Claims map[string]ClaimValue

// ClaimsFromStrings lifts the server's flat string map into Claims.
func ClaimsFromStrings(in map[string]string) Claims {
	if len(in) == 0 {
		return Claims{}
	}
	out := make(Claims, len(in))
	for k, v := range in {
		out[k] = StringClaim(v)
	}
	return out
}

// Validate checks key names and value sizes recursively.
func (c Claims) Validate() error {
	return c.validate("")
}

func (c Claims) validate(prefix string) error {
	for key, value := range c {
		if err := validateClaimKey(key); err != nil {
			return fmt.Errorf("%w: %s%s", err, prefix, key)
		}
		if err := value.validate(prefix + key); err != nil {
			return err
		}
	}
	return nil
}

func validateClaimKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidClaim)
	}
	if utf8.RuneCountInString(key) > MaxClaimKeyLength {
		return fmt.Errorf("%w: key longer than %d", ErrInvalidClaim, MaxClaimKeyLength)
	}
	if _, reserved := reservedClaims[key]; reserved {
		return fmt.Errorf("%w: reserved key", ErrInvalidClaim)
	}
	return nil
}

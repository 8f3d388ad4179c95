package abi

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/treb-upgrades/internal/domain"
	"github.com/trebuchet-org/treb-upgrades/internal/usecase"
)

// CallEncoder coerces literal values (CLI strings, JSON or YAML scalars)
// into the Go types go-ethereum expects and packs them.
type CallEncoder struct{}

// NewCallEncoder creates a new call encoder
func NewCallEncoder() *CallEncoder {
	return &CallEncoder{}
}

// EncodeCall packs the selector and arguments of method.
// method may be a bare name or a full signature like "initialize(uint256,string)".
func (e *CallEncoder) EncodeCall(contractABI *abi.ABI, method string, args []any) ([]byte, error) {
	m, err := findMethod(contractABI, method)
	if err != nil {
		return nil, err
	}

	values, err := coerceArguments(m.Name, m.Inputs, args)
	if err != nil {
		return nil, err
	}

	packed, err := m.Inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArguments, m.Sig, err)
	}

	return append(append([]byte{}, m.ID...), packed...), nil
}

// EncodeConstructor packs constructor arguments
func (e *CallEncoder) EncodeConstructor(contractABI *abi.ABI, args []any) ([]byte, error) {
	values, err := coerceArguments("constructor", contractABI.Constructor.Inputs, args)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	packed, err := contractABI.Constructor.Inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("%w: constructor: %v", domain.ErrInvalidArguments, err)
	}
	return packed, nil
}

// findMethod resolves a method by name or signature
func findMethod(contractABI *abi.ABI, method string) (*abi.Method, error) {
	if m, ok := contractABI.Methods[method]; ok {
		return &m, nil
	}
	if strings.Contains(method, "(") {
		for _, m := range contractABI.Methods {
			if m.Sig == method {
				return &m, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: method %q not found in ABI", domain.ErrInvalidArguments, method)
}

func coerceArguments(method string, inputs abi.Arguments, args []any) ([]any, error) {
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d",
			domain.ErrInvalidArguments, method, len(inputs), len(args))
	}

	values := make([]any, len(args))
	for i, input := range inputs {
		v, err := coerce(input.Type, args[i])
		if err != nil {
			return nil, domain.ArgumentErr{
				Method: method,
				Index:  i,
				Name:   input.Name,
				Type:   input.Type.String(),
				Err:    err,
			}
		}
		values[i] = v
	}
	return values, nil
}

// ParseArgsJSON decodes a JSON array of literal arguments, keeping numbers exact
func ParseArgsJSON(s string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var args []any
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: arguments must be a JSON array: %v", domain.ErrInvalidArguments, err)
	}
	return args, nil
}

// coerce converts v into the Go representation of t
func coerce(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(v)
		if err != nil {
			return nil, err
		}
		return fitInteger(t, n)

	case abi.BoolTy:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("expected bool, got %q", b)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("expected bool, got %T", v)

	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil

	case abi.AddressTy:
		switch a := v.(type) {
		case common.Address:
			return a, nil
		case string:
			if !common.IsHexAddress(a) {
				return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, a)
			}
			return common.HexToAddress(a), nil
		}
		return nil, fmt.Errorf("expected address, got %T", v)

	case abi.BytesTy:
		return toBytes(v)

	case abi.FixedBytesTy:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		out := reflect.New(t.GetType()).Elem()
		reflect.Copy(out, reflect.ValueOf(b))
		return out.Interface(), nil

	case abi.SliceTy, abi.ArrayTy:
		items, err := toList(v)
		if err != nil {
			return nil, err
		}
		if t.T == abi.ArrayTy && len(items) != t.Size {
			return nil, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
		}
		var out reflect.Value
		if t.T == abi.SliceTy {
			out = reflect.MakeSlice(t.GetType(), len(items), len(items))
		} else {
			out = reflect.New(t.GetType()).Elem()
		}
		for i, item := range items {
			elem, err := coerce(*t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(reflect.ValueOf(elem))
		}
		return out.Interface(), nil

	case abi.TupleTy:
		return coerceTuple(t, v)
	}

	return nil, fmt.Errorf("unsupported type %s", t.String())
}

// coerceTuple accepts a positional list or an object keyed by component name
func coerceTuple(t abi.Type, v any) (any, error) {
	if s, ok := v.(string); ok {
		parsed, err := decodeJSONValue(s)
		if err != nil {
			return nil, err
		}
		v = parsed
	}

	out := reflect.New(t.GetType()).Elem()
	switch fields := v.(type) {
	case []any:
		if len(fields) != len(t.TupleElems) {
			return nil, fmt.Errorf("expected %d tuple components, got %d", len(t.TupleElems), len(fields))
		}
		for i, elemType := range t.TupleElems {
			elem, err := coerce(*elemType, fields[i])
			if err != nil {
				return nil, fmt.Errorf("component %d: %w", i, err)
			}
			out.Field(i).Set(reflect.ValueOf(elem))
		}
	case map[string]any:
		for i, elemType := range t.TupleElems {
			name := t.TupleRawNames[i]
			raw, ok := fields[name]
			if !ok {
				return nil, fmt.Errorf("missing tuple component %q", name)
			}
			elem, err := coerce(*elemType, raw)
			if err != nil {
				return nil, fmt.Errorf("component %s: %w", name, err)
			}
			out.FieldByName(abi.ToCamelCase(name)).Set(reflect.ValueOf(elem))
		}
	default:
		return nil, fmt.Errorf("expected tuple, got %T", v)
	}
	return out.Interface(), nil
}

const maxExactFloat = 1 << 53

func toBigInt(v any) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return new(big.Int).Set(n), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("expected integer, got %v", n)
		}
		// Beyond 2^53 the value was already rounded when decoded
		if math.Abs(n) > maxExactFloat {
			return nil, fmt.Errorf("integer %v is too large to be exact, pass it as a string", n)
		}
		f, _ := big.NewFloat(n).Int(nil)
		return f, nil
	case json.Number:
		return parseIntString(n.String())
	case string:
		return parseIntString(n)
	}
	return nil, fmt.Errorf("expected integer, got %T", v)
}

func parseIntString(s string) (*big.Int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	base := 10
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	switch {
	case strings.HasPrefix(digits, "0x"), strings.HasPrefix(digits, "0X"):
		base = 16
		digits = digits[2:]
	case strings.HasPrefix(digits, "0o"):
		base = 8
		digits = digits[2:]
	case strings.HasPrefix(digits, "0b"):
		base = 2
		digits = digits[2:]
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("expected integer, got %q", s)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

// fitInteger range-checks n and converts it to the Go type go-ethereum packs for t
func fitInteger(t abi.Type, n *big.Int) (any, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s out of range for %s", n, t.String())
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		minimum := new(big.Int).Neg(limit)
		if n.Cmp(minimum) < 0 || n.Cmp(limit) >= 0 {
			return nil, fmt.Errorf("%s out of range for %s", n, t.String())
		}
	}

	switch t.GetType().Kind() {
	case reflect.Uint8:
		return uint8(n.Uint64()), nil
	case reflect.Uint16:
		return uint16(n.Uint64()), nil
	case reflect.Uint32:
		return uint32(n.Uint64()), nil
	case reflect.Uint64:
		return n.Uint64(), nil
	case reflect.Int8:
		return int8(n.Int64()), nil
	case reflect.Int16:
		return int16(n.Int64()), nil
	case reflect.Int32:
		return int32(n.Int64()), nil
	case reflect.Int64:
		return n.Int64(), nil
	default:
		return n, nil
	}
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		decoded, err := hexutil.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("expected 0x-prefixed hex, got %q", b)
		}
		return decoded, nil
	}
	return nil, fmt.Errorf("expected hex bytes, got %T", v)
}

func toList(v any) ([]any, error) {
	switch l := v.(type) {
	case []any:
		return l, nil
	case string:
		parsed, err := decodeJSONValue(l)
		if err != nil {
			return nil, err
		}
		if list, ok := parsed.([]any); ok {
			return list, nil
		}
	}
	return nil, fmt.Errorf("expected list, got %T", v)
}

func decodeJSONValue(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid JSON literal %q", s)
	}
	return out, nil
}

// Ensure the encoder implements the interface
var _ usecase.CallEncoder = (*CallEncoder)(nil)

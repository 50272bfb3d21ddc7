package schema

import (
	"fmt"
	"reflect"

	"github.com/spf13/cast"
)

// ValidationError reports why a value failed validation, with the path of
// the offending field inside the candidate value.
type ValidationError struct {
	Path    string
	Message string
}

// Error 接口实现
func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "schema: " + e.Message
	}
	return fmt.Sprintf("schema: %s: %s", e.Path, e.Message)
}

func invalid(path, format string, args ...interface{}) error {
	return &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// ContainerHandle is implemented by the document runtime's container types.
// Container-kind nodes validate values through it without the schema
// package depending on the runtime.
type ContainerHandle interface {
	ContainerKind() string
}

// Validate checks a candidate value against the node and returns the
// parsed form: numerics coerce to float64, record values are rebuilt with
// unknown fields dropped, union values carry their discriminator. The
// candidate is not mutated.
func (n *Node) Validate(value interface{}) (interface{}, error) {
	return n.validate(value, "")
}

func (n *Node) validate(value interface{}, path string) (interface{}, error) {
	switch n.kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, invalid(path, "expected string, got %T", value)
		}
		return s, nil

	case KindNumber:
		switch value.(type) {
		case int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			f, err := cast.ToFloat64E(value)
			if err != nil {
				return nil, invalid(path, "bad numeric value: %v", err)
			}
			return f, nil
		default:
			return nil, invalid(path, "expected number, got %T", value)
		}

	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, invalid(path, "expected bool, got %T", value)
		}
		return b, nil

	case KindAny:
		return value, nil

	case KindContainer:
		return n.validateContainer(value, path)

	case KindRecord:
		return n.validateRecord(value, path)

	case KindUnion:
		return n.validateUnion(value, path)

	default:
		return nil, invalid(path, "unknown schema kind %d", int(n.kind))
	}
}

// validateContainer accepts nil (the container auto-allocates on read) or a
// handle of the declared kind.
func (n *Node) validateContainer(value interface{}, path string) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	handle, ok := value.(ContainerHandle)
	if !ok {
		return nil, invalid(path, "expected %s container, got %T", n.StorageContainerKind(), value)
	}
	if handle.ContainerKind() != n.StorageContainerKind() {
		return nil, invalid(path, "expected %s container, got %s", n.StorageContainerKind(), handle.ContainerKind())
	}
	return handle, nil
}

// AsRecord coerces a candidate record value to a plain map. Named map
// types with string keys and interface values (row aliases) are accepted.
func AsRecord(value interface{}) (map[string]interface{}, bool) {
	if m, ok := value.(map[string]interface{}); ok {
		return m, true
	}
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Kind() != reflect.Map ||
		rv.Type().Key().Kind() != reflect.String ||
		rv.Type().Elem().Kind() != reflect.Interface {
		return nil, false
	}
	out := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func (n *Node) validateRecord(value interface{}, path string) (interface{}, error) {
	m, ok := AsRecord(value)
	if !ok {
		return nil, invalid(path, "expected record, got %T", value)
	}
	out := make(map[string]interface{}, len(n.fields))
	for _, field := range n.fields {
		fieldPath := joinFieldPath(path, field.Name)
		v, present := m[field.Name]
		if !present || v == nil {
			if field.Node.optional || field.Node.kind == KindContainer {
				continue
			}
			if present {
				return nil, invalid(fieldPath, "must not be null")
			}
			return nil, invalid(fieldPath, "missing required field")
		}
		parsed, err := field.Node.validate(v, fieldPath)
		if err != nil {
			return nil, err
		}
		if parsed == nil {
			continue
		}
		out[field.Name] = parsed
	}
	return out, nil
}

func (n *Node) validateUnion(value interface{}, path string) (interface{}, error) {
	m, ok := AsRecord(value)
	if !ok {
		return nil, invalid(path, "expected union value, got %T", value)
	}
	discValue, ok := m[n.discriminator]
	if !ok {
		return nil, invalid(joinFieldPath(path, n.discriminator), "missing discriminator")
	}
	disc, ok := discValue.(string)
	if !ok {
		return nil, invalid(joinFieldPath(path, n.discriminator), "discriminator must be a string, got %T", discValue)
	}
	variant, ok := n.variants[disc]
	if !ok {
		return nil, invalid(joinFieldPath(path, n.discriminator), "unknown variant %q", disc)
	}
	parsed, err := variant.validate(stripKey(m, n.discriminator), path)
	if err != nil {
		return nil, err
	}
	out := parsed.(map[string]interface{})
	out[n.discriminator] = disc
	return out, nil
}

func joinFieldPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func stripKey(m map[string]interface{}, key string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if k == key {
			continue
		}
		out[k] = v
	}
	return out
}

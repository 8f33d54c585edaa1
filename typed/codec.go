package typed

import (
	"fmt"

	"github.com/google/orderedcode"
	"github.com/vmihailenco/msgpack/v5"
)

// Key lists the key types whose encoding preserves their natural order.
type Key interface {
	string | int64 | uint64 | float64
}

func appendKey[K Key](buf []byte, key K) ([]byte, error) {
	switch k := any(key).(type) {
	case string:
		return orderedcode.Append(buf, k)
	case int64:
		return orderedcode.Append(buf, k)
	case uint64:
		return orderedcode.Append(buf, k)
	case float64:
		return orderedcode.Append(buf, k)
	}
	return nil, fmt.Errorf("typed: unsupported key type %T", key)
}

func parseKey[K Key](encoded []byte) (K, error) {
	var key K

	var (
		rest string
		err  error
	)

	switch k := any(&key).(type) {
	case *string:
		rest, err = orderedcode.Parse(string(encoded), k)
	case *int64:
		rest, err = orderedcode.Parse(string(encoded), k)
	case *uint64:
		rest, err = orderedcode.Parse(string(encoded), k)
	case *float64:
		rest, err = orderedcode.Parse(string(encoded), k)
	default:
		return key, fmt.Errorf("typed: unsupported key type %T", key)
	}

	if err != nil {
		return key, err
	}
	if rest != "" {
		return key, fmt.Errorf("typed: %d trailing bytes after key", len(rest))
	}
	return key, nil
}

func encodeValue(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func decodeValue(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

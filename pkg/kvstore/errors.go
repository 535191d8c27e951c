package kvstore

import "errors"

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyEmpty    = errors.New("key is empty")
	ErrPrefixEmpty = errors.New("prefix is empty")
	ErrNilValue    = errors.New("the passed value is nil, which is not allowed")
	ErrStoreClosed = errors.New("kvstore is closed")
)

func checkKeyAndValue(k string, v any) error {
	if k == "" {
		return ErrKeyEmpty
	}
	if v == nil {
		return ErrNilValue
	}
	return nil
}

func joinKey(prefix, k string) (string, error) {
	if k == "" {
		return "", ErrKeyEmpty
	}
	if prefix != "" {
		return prefix + "/" + k, nil
	}
	return k, nil
}

func stripKey(prefix, k string) string {
	if prefix == "" {
		return k
	}
	if len(k) > len(prefix) && k[:len(prefix)+1] == prefix+"/" {
		return k[len(prefix)+1:]
	}
	return k
}

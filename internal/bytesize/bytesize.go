// Package bytesize carries a byte-count quantity through JSON/YAML config
// documents.
package bytesize

import "strconv"

// Size is a plain count of bytes.
type Size int64

func (s Size) Int64() int64 {
	return int64(s)
}

func (s Size) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(s), 10)), nil
}

func (s *Size) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*s = Size(v)
	return nil
}

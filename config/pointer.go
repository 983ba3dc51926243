package config

import (
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonpointer"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
)

// GetJSON parses section as a JSON Pointer (RFC 6901) and returns the value
// it resolves to within the fully resolved document (overlay applied,
// variables substituted). An empty pointer returns the whole document.
func (d *Document) GetJSON(section string) (interface{}, error) {
	doc, err := d.resolved()
	if err != nil {
		return nil, err
	}

	if section == "" || section == "/" {
		return doc, nil
	}

	ptr, err := gojsonpointer.NewJsonPointer(section)
	if err != nil {
		return nil, liberr.ConfigurationSectionNotFound.Error(err)
	}

	val, _, err := ptr.Get(doc)
	if err != nil {
		return nil, liberr.ConfigurationSectionNotFound.Error(err)
	}
	return val, nil
}

// setAtPointer creates whatever intermediate object levels pointer names
// and assigns value at the leaf. Only object (map) levels are created,
// matching the overlay's own shape: a numeric segment is used as an object
// key, not as an array index. An empty pointer is rejected with
// InvalidParam.
func setAtPointer(target map[string]interface{}, pointer string, value interface{}) error {
	segments := splitPointer(pointer)
	if len(segments) == 0 {
		return liberr.InvalidParam.Error(nil)
	}

	cur := target
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur[seg] = value
			return nil
		}

		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[seg] = next
		}
		cur = next
	}
	return nil
}

func splitPointer(pointer string) []string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return nil
	}
	raw := strings.Split(pointer, "/")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ReplaceAll(s, "~1", "/")
		s = strings.ReplaceAll(s, "~0", "~")
		out = append(out, s)
	}
	return out
}

// parsePointerValue interprets a --override NAME=value or -o /pointer=value
// right-hand side the way the command-line parser needs to: numbers and
// booleans are coerced, everything else stays a string.
func parsePointerValue(raw string) interface{} {
	if raw == "true" {
		return true
	}
	if raw == "false" {
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

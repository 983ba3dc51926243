package config

import (
	"fmt"
	"regexp"
	"strings"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
)

var varPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// substituteTree walks root in place, replacing every ${name} occurrence in
// a string value with the resolved content of /variables/name (spec §4.L).
// A ${...} sequence found in an object key raises VariableUsedInKey instead
// of being substituted.
func substituteTree(root map[string]interface{}) error {
	return substituteNode(root, root, map[string]bool{})
}

func substituteNode(root map[string]interface{}, node interface{}, visiting map[string]bool) error {
	switch v := node.(type) {
	case map[string]interface{}:
		for key, val := range v {
			if strings.Contains(key, "${") {
				return liberr.VariableUsedInKey.Error(fmt.Errorf("key %q contains variable syntax", key))
			}
			resolved, err := substituteAny(root, val, visiting)
			if err != nil {
				return err
			}
			v[key] = resolved
		}
	case []interface{}:
		for i, val := range v {
			resolved, err := substituteAny(root, val, visiting)
			if err != nil {
				return err
			}
			v[i] = resolved
		}
	}
	return nil
}

func substituteAny(root map[string]interface{}, val interface{}, visiting map[string]bool) (interface{}, error) {
	switch vv := val.(type) {
	case string:
		return substituteString(root, vv, visiting)
	case map[string]interface{}, []interface{}:
		if err := substituteNode(root, vv, visiting); err != nil {
			return nil, err
		}
		return vv, nil
	default:
		return val, nil
	}
}

func substituteString(root map[string]interface{}, s string, visiting map[string]bool) (string, error) {
	var outerErr error

	result := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		if outerErr != nil {
			return match
		}

		name := match[2 : len(match)-1]
		if visiting[name] {
			outerErr = liberr.UndefinedVariables.Error(fmt.Errorf("circular reference to variable %q", name))
			return match
		}

		val, ok := lookupVariable(root, name)
		if !ok {
			outerErr = liberr.UndefinedVariables.Error(fmt.Errorf("undefined variable %q", name))
			return match
		}

		strVal, isStr := val.(string)
		if !isStr {
			return fmt.Sprintf("%v", val)
		}
		if !varPattern.MatchString(strVal) {
			return strVal
		}

		visiting[name] = true
		resolved, err := substituteString(root, strVal, visiting)
		delete(visiting, name)
		if err != nil {
			outerErr = err
			return match
		}
		return resolved
	})

	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

func lookupVariable(root map[string]interface{}, name string) (interface{}, bool) {
	vars, ok := root["variables"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	val, ok := vars[name]
	return val, ok
}

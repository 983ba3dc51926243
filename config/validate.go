package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
)

// Validate runs JSON-Schema draft-07 validation (spec §4.L) of the
// sub-document section resolves to against the named resource schema (one
// of the keys registered in schemas.go).
func (d *Document) Validate(section, schema string) error {
	doc, err := d.GetJSON(section)
	if err != nil {
		return err
	}

	schemaJSON, ok := resourceSchemas[schema]
	if !ok {
		return liberr.ConfigurationSectionNotFound.Error(fmt.Errorf("unknown schema %q", schema))
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schemaJSON), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return liberr.ConfigurationValidationFailed.Error(err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return liberr.ConfigurationValidationFailed.Error(fmt.Errorf("%s", strings.Join(msgs, "; ")))
	}
	return nil
}

package config

// Apply merges everything bits selected in parsed into doc: the Files flag
// bit is merged as ordinary document content, while Overrides/Variables
// and every recognized Branch*/Log* field become overlay entries, matching
// the "CLI is an immutable overlay unless MutableCmdLine" rule of spec
// §4.L.
func Apply(doc *Document, bits FlagBit, parsed *ParsedArgs) error {
	if bits&Files != 0 && len(parsed.Files) > 0 {
		if err := doc.MergeFiles(parsed.Files); err != nil {
			return err
		}
	}

	if bits&Logging != 0 {
		if err := applyLoggingOverrides(doc, parsed); err != nil {
			return err
		}
	}

	branchFields := []struct {
		pointer string
		value   interface{}
		set     bool
	}{
		{"/branch/name", parsed.BranchName, bits&BranchName != 0 && parsed.BranchName != ""},
		{"/branch/description", parsed.BranchDescription, bits&BranchDescription != 0 && parsed.BranchDescription != ""},
		{"/branch/network_name", parsed.BranchNetwork, bits&BranchNetwork != 0 && parsed.BranchNetwork != ""},
		{"/branch/password", parsed.BranchPassword, bits&BranchPassword != 0 && parsed.BranchPassword != ""},
		{"/branch/path", parsed.BranchPath, bits&BranchPath != 0 && parsed.BranchPath != ""},
		{"/branch/advertising_interfaces", parsed.BranchAdvIfs, bits&BranchAdvIfs != 0 && len(parsed.BranchAdvIfs) > 0},
		{"/branch/advertising_address", parsed.BranchAdvAddr, bits&BranchAdvAddr != 0 && parsed.BranchAdvAddr != ""},
		{"/branch/advertising_port", parsed.BranchAdvPort, bits&BranchAdvPort != 0 && parsed.BranchAdvPort != 0},
		{"/branch/advertising_interval", parsed.BranchAdvInt, bits&BranchAdvInt != 0 && parsed.BranchAdvInt != ""},
		{"/branch/timeout", parsed.BranchTimeout, bits&BranchTimeout != 0 && parsed.BranchTimeout != ""},
		{"/branch/ghost_mode", parsed.BranchGhostMode, bits&BranchGhostMode != 0 && parsed.BranchGhostMode},
	}
	for _, f := range branchFields {
		if !f.set {
			continue
		}
		if err := doc.SetOverride(f.pointer, f.value); err != nil {
			return err
		}
	}

	if bits&Variables != 0 {
		for name, val := range parsed.Variables {
			doc.SetVariable(name, val)
		}
	}

	if bits&Overrides != 0 {
		for _, ov := range parsed.Overrides {
			if ov.Object != nil {
				if err := doc.MergeOverrideJSON(ov.Object); err != nil {
					return err
				}
				continue
			}
			if err := doc.SetOverride(ov.Pointer, ov.Value); err != nil {
				return err
			}
		}
	}

	return nil
}

func applyLoggingOverrides(doc *Document, parsed *ParsedArgs) error {
	fields := map[string]string{
		"/logging/file":        parsed.LogFile,
		"/logging/console":     parsed.LogConsole,
		"/logging/format":      parsed.LogFmt,
		"/logging/time_format": parsed.LogTimeFmt,
		"/logging/verbosity":   parsed.LogVerbosity,
	}
	for pointer, val := range fields {
		if val == "" {
			continue
		}
		if err := doc.SetOverride(pointer, val); err != nil {
			return err
		}
	}
	if parsed.LogColor {
		if err := doc.SetOverride("/logging/color", true); err != nil {
			return err
		}
	}
	return nil
}

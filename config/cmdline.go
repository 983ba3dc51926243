package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	liberr "github.com/yohummus/yogi-framework-sub001/internal/errs"
)

// FlagBit selects which groups of command-line options the parser
// recognizes (spec §4.L's flag-bit table). Bits combine with bitwise OR.
type FlagBit uint32

const (
	Logging FlagBit = 1 << iota
	BranchName
	BranchDescription
	BranchNetwork
	BranchPassword
	BranchPath
	BranchAdvIfs
	BranchAdvAddr
	BranchAdvPort
	BranchAdvInt
	BranchTimeout
	BranchGhostMode
	Files
	Overrides
	Variables

	BranchAll = BranchName | BranchDescription | BranchNetwork | BranchPassword |
		BranchPath | BranchAdvIfs | BranchAdvAddr | BranchAdvPort | BranchAdvInt |
		BranchTimeout | BranchGhostMode

	All = Logging | BranchAll | Files | Overrides | Variables
)

// Override is one parsed --override/-o occurrence: either a bare JSON
// object (Pointer empty, Object set) or a /pointer=value pair.
type Override struct {
	Pointer string
	Value   interface{}
	Object  map[string]interface{}
}

// ParsedArgs holds everything the flag-bit table in spec §4.L can
// populate. Only the fields whose FlagBit was requested are ever set; a
// slice/map whose group was not requested stays nil. A requested group
// that received no values may be nil or empty (BranchAdvIfs stays nil),
// so a nil value alone does not tell the two cases apart.
type ParsedArgs struct {
	LogFile      string
	LogConsole   string
	LogColor     bool
	LogFmt       string
	LogTimeFmt   string
	LogVerbosity string

	BranchName        string
	BranchDescription string
	BranchNetwork     string
	BranchPassword    string
	BranchPath        string
	BranchAdvIfs      []string
	BranchAdvAddr     string
	BranchAdvPort     uint16
	BranchAdvInt      string
	BranchTimeout     string
	BranchGhostMode   bool

	Files     []string
	Overrides []Override
	Variables map[string]string
}

// Parse recognizes the option groups selected by bits out of args (which
// should not include the program name) and returns the values it found.
// A --help occurrence raises HelpRequested with the generated usage text
// as the error's details, per spec §4.L.
func Parse(bits FlagBit, args []string) (*ParsedArgs, error) {
	fs := pflag.NewFlagSet("yogi", pflag.ContinueOnError)
	out := &ParsedArgs{}

	if bits&Logging != 0 {
		fs.StringVar(&out.LogFile, "log-file", "", "path to a log file")
		fs.StringVar(&out.LogConsole, "log-console", "", "console sink: stdout, stderr, or none")
		fs.BoolVar(&out.LogColor, "log-color", false, "colorize console log output")
		fs.StringVar(&out.LogFmt, "log-fmt", "", "log message format string")
		fs.StringVar(&out.LogTimeFmt, "log-time-fmt", "", "log timestamp format string")
		fs.StringVar(&out.LogVerbosity, "log-verbosity", "", "minimum log level, e.g. INFO")
	}
	if bits&BranchName != 0 {
		fs.StringVar(&out.BranchName, "name", "", "branch name")
	}
	if bits&BranchDescription != 0 {
		fs.StringVar(&out.BranchDescription, "description", "", "branch description")
	}
	if bits&BranchNetwork != 0 {
		fs.StringVar(&out.BranchNetwork, "network", "", "network name")
	}
	if bits&BranchPassword != 0 {
		fs.StringVar(&out.BranchPassword, "password", "", "network password")
	}
	if bits&BranchPath != 0 {
		fs.StringVar(&out.BranchPath, "path", "", "branch path")
	}
	if bits&BranchAdvIfs != 0 {
		fs.StringArrayVar(&out.BranchAdvIfs, "adv-ifs", nil, "advertising interface (repeatable)")
	}
	if bits&BranchAdvAddr != 0 {
		fs.StringVar(&out.BranchAdvAddr, "adv-addr", "", "advertising multicast address")
	}
	if bits&BranchAdvPort != 0 {
		fs.Uint16Var(&out.BranchAdvPort, "adv-port", 0, "advertising multicast port")
	}
	if bits&BranchAdvInt != 0 {
		fs.StringVar(&out.BranchAdvInt, "adv-int", "", "advertising interval, e.g. 1s or -1 for infinite")
	}
	if bits&BranchTimeout != 0 {
		fs.StringVar(&out.BranchTimeout, "timeout", "", "connection timeout, e.g. 3s or -1 for infinite")
	}
	if bits&BranchGhostMode != 0 {
		fs.BoolVar(&out.BranchGhostMode, "ghost", false, "run as a ghost branch")
	}

	var rawOverrides, rawVariables []string
	if bits&Overrides != 0 {
		fs.StringArrayVarP(&rawOverrides, "override", "o", nil, "JSON object or /pointer=value override (repeatable)")
	}
	if bits&Variables != 0 {
		fs.StringArrayVarP(&rawVariables, "var", "v", nil, "NAME=value substitution variable (repeatable)")
	}

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, liberr.HelpRequested.Error(fmt.Errorf("%s", fs.FlagUsages()))
		}
		return nil, liberr.InvalidParam.Error(err)
	}

	if bits&Files != 0 {
		out.Files = fs.Args()
	}

	if bits&Overrides != 0 {
		parsed, err := parseOverrides(rawOverrides)
		if err != nil {
			return nil, err
		}
		out.Overrides = parsed
	}

	if bits&Variables != 0 {
		vars, err := parseVariables(rawVariables)
		if err != nil {
			return nil, err
		}
		out.Variables = vars
	}

	return out, nil
}

func parseOverrides(raw []string) ([]Override, error) {
	out := make([]Override, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if strings.HasPrefix(entry, "{") {
			obj, err := parseJSONObjectString(entry)
			if err != nil {
				return nil, liberr.ParsingJsonFailed.Error(err)
			}
			out = append(out, Override{Object: obj})
			continue
		}

		pointer, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, liberr.InvalidParam.Error(fmt.Errorf("override %q is neither a JSON object nor /pointer=value", entry))
		}
		out = append(out, Override{Pointer: pointer, Value: parsePointerValue(value)})
	}
	return out, nil
}

func parseVariables(raw []string) (map[string]string, error) {
	out := map[string]string{}
	for _, entry := range raw {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, liberr.InvalidParam.Error(fmt.Errorf("variable %q is not NAME=value", entry))
		}
		out[name] = value
	}
	return out, nil
}

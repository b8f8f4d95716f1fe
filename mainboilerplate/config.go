package mainboilerplate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// ConfigDirs returns directories searched, in order, for an INI file:
//   - The current working directory.
//   - ~/.config/graphsync (under the user's $HOME or %UserProfile% directory).
func ConfigDirs() []string {
	return []string{
		".",
		filepath.Join(os.Getenv("HOME"), ".config", "graphsync"),
		filepath.Join(os.Getenv("UserProfile"), ".config", "graphsync"),
	}
}

// ParseConfigFile parses the first INI file named |configName| found within
// |dirs| into |parser|. Unknown INI options are ignored. It returns the path
// of the parsed file, or "" if no file was found.
func ParseConfigFile(parser *flags.Parser, configName string, dirs []string) (string, error) {
	var origOptions = parser.Options
	parser.Options |= flags.IgnoreUnknown
	defer func() { parser.Options = origOptions }()

	var iniParser = flags.NewIniParser(parser)

	for _, dir := range dirs {
		var path = filepath.Join(dir, configName)

		if err := iniParser.ParseFile(path); err == nil {
			return path, nil
		} else if !os.IsNotExist(err) {
			return "", errors.WithMessagef(err, "parsing %s", path)
		}
	}
	return "", nil
}

// MustParseConfig requires that the Parser parse from the combination of an
// optional INI file (see ConfigDirs), configured environment bindings, and
// explicit flags.
func MustParseConfig(parser *flags.Parser, configName string) {
	if _, err := ParseConfigFile(parser, configName, ConfigDirs()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	MustParseArgs(parser)
}

// MustParseArgs requires that Parser be able to ParseArgs without error.
func MustParseArgs(parser *flags.Parser) {
	var _, err = parser.ParseArgs(os.Args[1:])
	if err == nil {
		return
	}
	var flagErr, ok = err.(*flags.Error)
	if !ok {
		Must(err, "fatal error")
	}

	switch flagErr.Type {
	case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
		// A problem of the configuration struct itself, rather than of input.
		panic(err)

	case flags.ErrCommandRequired:
		// Follow go-flag's "Please specify one command of: ... " with full usage.
		os.Stderr.WriteString("\n")
		writeUsage(parser)
		os.Exit(1)

	case flags.ErrHelp:
		if parser.Options&flags.PrintErrors == 0 {
			writeUsage(parser)
		}
		os.Exit(1)

	default:
		// go-flags has already printed a message describing the input error.
		os.Exit(1)
	}
}

func writeUsage(parser *flags.Parser) {
	parser.WriteHelp(os.Stderr)
	fmt.Fprintf(os.Stderr, "\nVersion %s, built at %s.\n", Version, BuildDate)
}

// AddPrintConfigCmd to the Parser. The "print-config" command helps users test
// whether their applications are correctly configured, by exporting all runtime
// configuration in INI format.
func AddPrintConfigCmd(parser *flags.Parser, configName string) {
	_, _ = parser.AddCommand("print-config", "Print combined configuration and exit", `
print-config parses the combined configuration from `+configName+`, flags,
and environment variables, and then writes the configuration to stdout in INI format.
`, &printConfig{parser})
}

type printConfig struct {
	*flags.Parser `no-flag:"t"`
}

func (p printConfig) Execute([]string) error {
	var ini = flags.NewIniParser(p.Parser)
	ini.Write(os.Stdout, flags.IniIncludeComments|flags.IniCommentDefaults|flags.IniIncludeDefaults)
	return nil
}

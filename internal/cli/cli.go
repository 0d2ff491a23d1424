// Package cli parses murmur's command line.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandListen  Command = "listen"
	CommandStop    Command = "stop"
	CommandCancel  Command = "cancel"
	CommandStatus  Command = "status"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandListen:  {},
	CommandStop:    {},
	CommandCancel:  {},
	CommandStatus:  {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Parsed is the result of one command line. MaxDuration and Language are
// zero-valued when the flag was not given.
type Parsed struct {
	Command     Command
	ConfigPath  string
	MaxDuration int
	Language    string
	Progress    bool
	OneShot     bool
	ShowHelp    bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	commandSet := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--progress":
			parsed.Progress = true
		case "--one-shot":
			parsed.OneShot = true
		case "--config":
			value, next, err := flagValue(args, i, arg)
			if err != nil {
				return Parsed{}, err
			}
			parsed.ConfigPath = value
			i = next
		case "--language":
			value, next, err := flagValue(args, i, arg)
			if err != nil {
				return Parsed{}, err
			}
			parsed.Language = value
			i = next
		case "--max-duration":
			value, next, err := flagValue(args, i, arg)
			if err != nil {
				return Parsed{}, err
			}
			seconds, err := strconv.Atoi(value)
			if err != nil || seconds < 1 {
				return Parsed{}, fmt.Errorf("--max-duration requires a positive number of seconds, got %q", value)
			}
			parsed.MaxDuration = seconds
			i = next
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			if commandSet {
				return Parsed{}, fmt.Errorf("unexpected argument: %s", arg)
			}
			commandSet = true
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
		}
	}

	return parsed, nil
}

func flagValue(args []string, i int, flag string) (string, int, error) {
	if i+1 >= len(args) {
		return "", i, errors.New(flag + " requires a value")
	}
	return args[i+1], i + 1, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [flags] <command>

Commands:
  listen    Start a transcription session and print the transcript
  stop      Stop the active session and keep its transcript
  cancel    Cancel the active session and discard its transcript
  status    Print the active session state
  doctor    Run tool, model, and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH         Config file path (default: $XDG_CONFIG_HOME/murmur/config.json)
  --language LANG       Spoken language hint, e.g. en or de
  --max-duration SECS   Hard session deadline in seconds (1-120)
  --progress            Emit JSONL progress events on stdout while listening
  --one-shot            Record first, then transcribe the whole recording
  -h, --help            Show help
  --version             Show version
`, binaryName)
}

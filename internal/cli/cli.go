// Package cli parses the tandem command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandServe    Command = "serve"
	CommandStart    Command = "start"
	CommandTalk     Command = "talk"
	CommandStop     Command = "stop"
	CommandCancel   Command = "cancel"
	CommandEnd      Command = "end"
	CommandHistory  Command = "history"
	CommandSettings Command = "settings"
	CommandBack     Command = "back"
	CommandHome     Command = "home"
	CommandVoice    Command = "voice"
	CommandVolume   Command = "volume"
	CommandDelete   Command = "delete"
	CommandStatus   Command = "status"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

type commandInfo struct {
	args  int
	usage string
	// remote commands are forwarded to the serving process over IPC.
	remote bool
}

var commands = map[Command]commandInfo{
	CommandServe:    {},
	CommandStart:    {args: 2, usage: "start <provider-language> <patient-language>", remote: true},
	CommandTalk:     {args: 1, usage: "talk <provider|patient>", remote: true},
	CommandStop:     {remote: true},
	CommandCancel:   {remote: true},
	CommandEnd:      {remote: true},
	CommandHistory:  {remote: true},
	CommandSettings: {remote: true},
	CommandBack:     {remote: true},
	CommandHome:     {remote: true},
	CommandVoice:    {args: 2, usage: "voice <provider|patient> <voice>", remote: true},
	CommandVolume:   {args: 2, usage: "volume <mic|speaker> <0-100>", remote: true},
	CommandDelete:   {args: 1, usage: "delete <session-id>", remote: true},
	CommandStatus:   {remote: true},
	CommandDevices:  {},
	CommandDoctor:   {},
	CommandVersion:  {},
	CommandHelp:     {},
}

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	ShowHelp   bool
}

// Remote reports whether the command is served by the owner process.
func (p Parsed) Remote() bool {
	return commands[p.Command].remote
}

// Parse reads `[--config PATH] <command> [args]`. Flags must precede the command.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			info, ok := commands[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			rest := args[i+1:]
			if len(rest) != info.args {
				if info.args == 0 {
					return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
				}
				return Parsed{}, fmt.Errorf("usage: %s", info.usage)
			}

			parsed.Command = cmd
			parsed.Args = append([]string(nil), rest...)
			parsed.ShowHelp = cmd == CommandHelp
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Consultation:
  serve                       Run the assistant (owns the microphone and session state)
  start <provider> <patient>  Open a consultation, e.g. "start en yo"
  talk <provider|patient>     Start recording the given participant
  stop                        Stop recording and wait for the translated turn
  cancel                      Discard the current recording or in-flight turn
  end                         End the consultation and archive it in history

Navigation:
  history                     Show finished consultations
  settings                    Show current settings
  back                        Return to the conversation, or welcome when none is open
  home                        Return to welcome (also clears an error)
  status                      Print the current mode and turn progress

Settings:
  voice <provider|patient> <voice>   Choose the synthesis voice
  volume <mic|speaker> <0-100>       Set input gain or playback volume
  delete <session-id>                Remove a consultation from history

Diagnostics:
  devices                     List available input devices
  doctor                      Run configuration and environment checks
  version                     Print version information
  help                        Show this help

Languages: en (English), yo (Yoruba), ha (Hausa), ig (Igbo)

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/tandem/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}

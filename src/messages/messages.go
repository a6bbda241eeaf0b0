// Package messages defines the control commands every input surface (hotkeys,
// tray, loopback clients) sends to the event loop, and their line encoding.
package messages

import (
	"fmt"
	"strings"

	"screen-recorder/src/screenshot"
)

type Kind int

const (
	Start Kind = iota + 1
	TogglePause
	Stop
	Status
	Close
)

var kindNames = map[Kind]string{
	Start:       "START",
	TogglePause: "PAUSE",
	Stop:        "STOP",
	Status:      "STATUS",
	Close:       "CLOSE",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Command is one request to the recorder.
type Command struct {
	Kind Kind
	// Region optionally preselects the area for Start; nil means ask the user.
	Region *screenshot.Region
	// Output optionally names the final file for Start.
	Output string
	// Source names where the command came from, for logs.
	Source string
}

// Reply answers a command.
type Reply struct {
	OK   bool
	Text string
}

func Ok(format string, args ...any) Reply { return Reply{OK: true, Text: fmt.Sprintf(format, args...)} }

func Fail(err error) Reply { return Reply{Text: err.Error()} }

// Line encodes the command as a single protocol line without the newline:
// "START [x,y,w,h] [output]", "PAUSE", "STOP", "STATUS", "CLOSE".
func (c Command) Line() string {
	parts := []string{c.Kind.String()}
	if c.Kind == Start {
		if c.Region != nil {
			parts = append(parts, c.Region.Spec())
		} else if c.Output != "" {
			parts = append(parts, "-")
		}
		if c.Output != "" {
			parts = append(parts, c.Output)
		}
	}
	return strings.Join(parts, " ")
}

// ParseLine decodes a protocol line produced by Line.
func ParseLine(line string) (Command, error) {
	line = strings.TrimSpace(line)
	verb, rest, _ := strings.Cut(line, " ")
	var cmd Command
	for k, n := range kindNames {
		if strings.EqualFold(verb, n) {
			cmd.Kind = k
		}
	}
	if cmd.Kind == 0 {
		return Command{}, fmt.Errorf("unknown command %q", verb)
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return cmd, nil
	}
	if cmd.Kind != Start {
		return Command{}, fmt.Errorf("%s takes no arguments", cmd.Kind)
	}
	spec, output, _ := strings.Cut(rest, " ")
	if spec != "-" {
		r, err := screenshot.ParseRegion(spec)
		if err != nil {
			return Command{}, err
		}
		cmd.Region = &r
	}
	cmd.Output = strings.TrimSpace(output)
	return cmd, nil
}

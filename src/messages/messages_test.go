package messages

import (
	"testing"

	"screen-recorder/src/screenshot"
)

func TestLineRoundTrip(t *testing.T) {
	r := screenshot.Region{X: 5, Y: 6, Width: 320, Height: 200}
	tests := []struct {
		cmd  Command
		line string
	}{
		{Command{Kind: Stop}, "STOP"},
		{Command{Kind: TogglePause}, "PAUSE"},
		{Command{Kind: Status}, "STATUS"},
		{Command{Kind: Start}, "START"},
		{Command{Kind: Start, Region: &r}, "START 5,6,320,200"},
		{Command{Kind: Start, Region: &r, Output: "/tmp/my clip.mp4"}, "START 5,6,320,200 /tmp/my clip.mp4"},
		{Command{Kind: Start, Output: "out.mp4"}, "START - out.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := tt.cmd.Line(); got != tt.line {
				t.Fatalf("Line() = %q, want %q", got, tt.line)
			}
			back, err := ParseLine(tt.line + "\n")
			if err != nil {
				t.Fatalf("ParseLine: %v", err)
			}
			if back.Kind != tt.cmd.Kind || back.Output != tt.cmd.Output {
				t.Fatalf("ParseLine = %+v", back)
			}
			if (back.Region == nil) != (tt.cmd.Region == nil) || (back.Region != nil && *back.Region != *tt.cmd.Region) {
				t.Fatalf("region mismatch: %+v", back.Region)
			}
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	for _, line := range []string{"", "RECORD", "STOP now", "START 1,2,0,4"} {
		if _, err := ParseLine(line); err == nil {
			t.Errorf("ParseLine(%q) expected error", line)
		}
	}
	if cmd, err := ParseLine("stop"); err != nil || cmd.Kind != Stop {
		t.Errorf("lowercase verb: %+v, %v", cmd, err)
	}
}

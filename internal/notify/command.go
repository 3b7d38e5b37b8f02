package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/nhle/priobox/internal/model"
)

// runner executes a helper command.
type runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s: %w (output: %s)", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// CommandSink raises desktop notifications through a helper command:
// osascript on macOS, notify-send elsewhere, or a configured command
// receiving the title and text as its two arguments.
type CommandSink struct {
	appName string
	command string
	goos    string
	run     runner
}

// NewCommandSink creates a CommandSink. An empty command selects the
// platform helper.
func NewCommandSink(appName, command string) *CommandSink {
	return &CommandSink{
		appName: appName,
		command: strings.TrimSpace(command),
		goos:    runtime.GOOS,
		run:     execRunner,
	}
}

// Notify implements Sink.
func (s *CommandSink) Notify(ctx context.Context, msg model.Message) error {
	n := model.NotificationFor(msg)
	title := n.Title
	if title == "" {
		title = n.Sender
	}

	name, args := s.invocation(title, n.Text)
	if err := s.run(ctx, name, args...); err != nil {
		return fmt.Errorf("sending desktop notification: %w", err)
	}
	return nil
}

// invocation returns the command line for one notification.
func (s *CommandSink) invocation(title, text string) (string, []string) {
	if s.command != "" {
		fields := strings.Fields(s.command)
		return fields[0], append(fields[1:], title, text)
	}

	if s.goos == "darwin" {
		script := fmt.Sprintf(`display notification "%s" with title "%s"`,
			escapeAppleScript(text), escapeAppleScript(title))
		if s.appName != "" {
			script += fmt.Sprintf(` subtitle "%s"`, escapeAppleScript(s.appName))
		}
		return "osascript", []string{"-e", script}
	}

	args := []string{}
	if s.appName != "" {
		args = append(args, "--app-name="+s.appName)
	}
	return "notify-send", append(args, title, text)
}

// escapeAppleScript escapes backslashes and quotes for an AppleScript
// string literal.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

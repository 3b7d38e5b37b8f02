package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// accountInput holds the account add values that may be prompted for.
type accountInput struct {
	email      string
	imapServer string
	smtpServer string
	password   string
}

// fields returns form inputs for the values still missing.
func (in *accountInput) fields() []huh.Field {
	var fields []huh.Field
	if in.email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Description("Address mail is sent from").
			Placeholder("jane@example.com").
			Value(&in.email).
			Validate(validateRequired("Email")))
	}
	if in.imapServer == "" {
		fields = append(fields, huh.NewInput().
			Title("IMAP Host").
			Description("IMAP server hostname").
			Placeholder("imap.example.com").
			Value(&in.imapServer).
			Validate(validateRequired("IMAP Host")))
	}
	if in.smtpServer == "" {
		fields = append(fields, huh.NewInput().
			Title("SMTP Host").
			Description("SMTP server hostname").
			Placeholder("smtp.example.com").
			Value(&in.smtpServer).
			Validate(validateRequired("SMTP Host")))
	}
	if in.password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			Description("Email account password or app password").
			EchoMode(huh.EchoModePassword).
			Value(&in.password).
			Validate(validateRequired("Password")))
	}
	return fields
}

// complete fills missing values with an interactive form when stdin is a
// terminal. Otherwise only the password may be missing, and it is read
// as one line from stdin.
func (in *accountInput) complete(stdin io.Reader, interactive bool) error {
	fields := in.fields()
	if len(fields) == 0 {
		return nil
	}

	if interactive {
		if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
			return fmt.Errorf("account form: %w", err)
		}
		return nil
	}

	var missing []string
	for flag, value := range map[string]string{
		"--email":       in.email,
		"--imap-server": in.imapServer,
		"--smtp-server": in.smtpServer,
	} {
		if value == "" {
			missing = append(missing, flag)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading password: %w", err)
	}
	in.password = strings.TrimRight(line, "\r\n")
	return validateRequired("Password")(in.password)
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func validateRequired(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

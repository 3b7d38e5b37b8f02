package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/priobox/internal/model"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send an email",
	Long: `Send an HTML email through the account's SMTP server. The account
signature is appended when enabled.
Attachments are given as a path; a ":inline" suffix embeds the file so
the body can reference it as cid:<file name>.
Example: priobox send -a jane@example.com --to bob@example.com -s Hi -b "<p>Hello</p>" --attach logo.png:inline`,
	RunE: withApp(runSend),
}

func init() {
	rootCmd.AddCommand(sendCmd)

	f := sendCmd.Flags()
	f.StringP("account", "a", "", "account ID or email to send from")
	f.StringSlice("to", nil, "recipient address (repeatable)")
	f.StringP("subject", "s", "", "subject line")
	f.StringP("body", "b", "", "HTML body")
	f.String("body-file", "", "read the HTML body from a file")
	f.StringArray("attach", nil, "attachment path, with optional :inline suffix (repeatable)")

	_ = sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagsMutuallyExclusive("body", "body-file")
}

func runSend(cmd *cobra.Command, _ []string, a *app) error {
	f := cmd.Flags()
	ref, _ := f.GetString("account")
	to, _ := f.GetStringSlice("to")
	subject, _ := f.GetString("subject")
	body, _ := f.GetString("body")
	bodyFile, _ := f.GetString("body-file")
	attach, _ := f.GetStringArray("attach")

	if bodyFile != "" {
		data, err := os.ReadFile(bodyFile)
		if err != nil {
			return fmt.Errorf("reading body file: %w", err)
		}
		body = string(data)
	}

	account, err := a.resolveAccount(cmd.Context(), ref)
	if err != nil {
		return err
	}

	attachments := make([]model.Attachment, 0, len(attach))
	for _, arg := range attach {
		attachments = append(attachments, parseAttachment(arg))
	}

	if err := a.orch.SendEmail(cmd.Context(), account, to, subject, body, attachments); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent to %s\n", strings.Join(to, ", "))
	return nil
}

// parseAttachment turns "path" or "path:inline" into an attachment. Inline
// attachments use the file name as their Content-ID.
func parseAttachment(arg string) model.Attachment {
	path, inline := arg, false
	if p, ok := strings.CutSuffix(arg, ":inline"); ok {
		path, inline = p, true
	}

	att := model.Attachment{
		Path:     path,
		FileName: filepath.Base(path),
		Inline:   inline,
	}
	if inline {
		att.ContentID = att.FileName
	}
	return att
}

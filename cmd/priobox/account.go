package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/priobox/internal/model"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage mail accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a mail account",
	Long: `Add a mail account. The password is stored in the system keyring and
never written to the database. Both servers are tested before saving
unless --skip-test is given. Missing values are asked for in a form when
running in a terminal; otherwise the password is read from stdin.
Example: priobox account add --email jane@example.com --imap-server imap.example.com --smtp-server smtp.example.com`,
	RunE: withApp(runAccountAdd),
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured accounts",
	RunE:  withApp(runAccountList),
}

var accountRemoveCmd = &cobra.Command{
	Use:   "remove <account>",
	Short: "Remove an account with its cached mail and password",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runAccountRemove),
}

var accountTestCmd = &cobra.Command{
	Use:   "test <account>",
	Short: "Test the IMAP and SMTP connections of an account",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runAccountTest),
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountAddCmd, accountListCmd, accountRemoveCmd, accountTestCmd)

	f := accountAddCmd.Flags()
	f.String("id", "", "ID of an existing account to update")
	f.StringP("name", "n", "", "display name used in the From header")
	f.StringP("email", "e", "", "email address (prompted if not provided)")
	f.StringP("username", "u", "", "login name (defaults to the email address)")
	f.StringP("password", "w", "", "password (will prompt if not provided)")
	f.String("imap-server", "", "IMAP server hostname (prompted if not provided)")
	f.Int("imap-port", 993, "IMAP server port")
	f.String("imap-security", "ssl_tls", "IMAP security: ssl_tls, starttls or none")
	f.String("smtp-server", "", "SMTP server hostname (prompted if not provided)")
	f.Int("smtp-port", 465, "SMTP server port")
	f.String("smtp-security", "ssl_tls", "SMTP security: ssl_tls, starttls or none")
	f.String("signature", "", "signature appended to outgoing mail")
	f.Bool("signature-enabled", false, "append the signature to outgoing mail")
	f.Bool("skip-test", false, "save without testing the connections")
}

func runAccountAdd(cmd *cobra.Command, _ []string, a *app) error {
	f := cmd.Flags()
	id, _ := f.GetString("id")
	name, _ := f.GetString("name")
	email, _ := f.GetString("email")
	username, _ := f.GetString("username")
	password, _ := f.GetString("password")
	imapServer, _ := f.GetString("imap-server")
	imapPort, _ := f.GetInt("imap-port")
	imapSecurity, _ := f.GetString("imap-security")
	smtpServer, _ := f.GetString("smtp-server")
	smtpPort, _ := f.GetInt("smtp-port")
	smtpSecurity, _ := f.GetString("smtp-security")
	signature, _ := f.GetString("signature")
	signatureEnabled, _ := f.GetBool("signature-enabled")
	skipTest, _ := f.GetBool("skip-test")

	imapSec, err := model.ParseSecurity(imapSecurity)
	if err != nil {
		return fmt.Errorf("--imap-security: %w", err)
	}
	smtpSec, err := model.ParseSecurity(smtpSecurity)
	if err != nil {
		return fmt.Errorf("--smtp-security: %w", err)
	}

	in := accountInput{email: email, imapServer: imapServer, smtpServer: smtpServer, password: password}
	if err := in.complete(cmd.InOrStdin(), stdinIsTerminal()); err != nil {
		return err
	}
	email, imapServer, smtpServer, password = in.email, in.imapServer, in.smtpServer, in.password

	if username == "" {
		username = email
	}

	account := model.Account{
		ID:               id,
		DisplayName:      name,
		EmailAddress:     email,
		IMAPServer:       imapServer,
		IMAPPort:         imapPort,
		IMAPSecurity:     imapSec,
		SMTPServer:       smtpServer,
		SMTPPort:         smtpPort,
		SMTPSecurity:     smtpSec,
		Username:         username,
		Signature:        signature,
		SignatureEnabled: signatureEnabled,
	}

	ctx := cmd.Context()
	if !skipTest {
		if err := a.orch.TestIMAP(ctx, account, password); err != nil {
			return fmt.Errorf("IMAP test failed: %w", err)
		}
		if err := a.orch.TestSMTP(ctx, account, password); err != nil {
			return fmt.Errorf("SMTP test failed: %w", err)
		}
	}

	saved, err := a.orch.SaveAccount(ctx, account, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account %s saved (id %s)\n", saved.EmailAddress, saved.ID)
	return nil
}

func runAccountList(cmd *cobra.Command, _ []string, a *app) error {
	accounts, err := a.store.ListAccounts(cmd.Context())
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts configured.")
		return nil
	}

	t := newTable("ID", "EMAIL", "IMAP", "SMTP", "PASSWORD")
	for _, account := range accounts {
		stored := "yes"
		if _, err := a.vault.Get(account.ID); err != nil {
			stored = "missing"
		}
		t.Row(
			account.ID, account.EmailAddress,
			fmt.Sprintf("%s (%s)", account.IMAP().Addr(), account.IMAPSecurity),
			fmt.Sprintf("%s (%s)", account.SMTP().Addr(), account.SMTPSecurity),
			stored,
		)
	}
	return printTable(cmd.OutOrStdout(), t)
}

func runAccountRemove(cmd *cobra.Command, args []string, a *app) error {
	account, err := a.resolveAccount(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := a.orch.RemoveAccount(cmd.Context(), account.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Account %s removed\n", account.EmailAddress)
	return nil
}

func runAccountTest(cmd *cobra.Command, args []string, a *app) error {
	ctx := cmd.Context()
	account, err := a.resolveAccount(ctx, args[0])
	if err != nil {
		return err
	}
	password, err := a.vault.Get(account.ID)
	if err != nil {
		return fmt.Errorf("no password stored for %s: %w", account.EmailAddress, err)
	}

	out := cmd.OutOrStdout()
	imapErr := a.orch.TestIMAP(ctx, account, password)
	smtpErr := a.orch.TestSMTP(ctx, account, password)
	fmt.Fprintf(out, "IMAP %s: %s\n", account.IMAP().Addr(), result(imapErr))
	fmt.Fprintf(out, "SMTP %s: %s\n", account.SMTP().Addr(), result(smtpErr))

	if imapErr != nil || smtpErr != nil {
		return fmt.Errorf("connection test failed for %s", account.EmailAddress)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "FAILED (" + err.Error() + ")"
	}
	return "ok"
}

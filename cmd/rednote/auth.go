package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rednote/pkg/auth"
	"rednote/pkg/config"
	"rednote/pkg/logger"
	"rednote/pkg/ui"
)

var (
	loginTimeout time.Duration
	assumeYes    bool
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in by scanning a QR code",
	Long: `Open a browser window on the explore page and wait for a QR code login.

If the stored cookies are still valid the command returns immediately.
Otherwise scan the QR code with the Xiaohongshu app and confirm on your
phone. The QR image is also written to session.qr_code_path so it can be
scanned from a headless machine. Cookies are saved once the login succeeds.`,
	Example: `  # Interactive login
  rednote login

  # Allow more time for each attempt
  rednote login --timeout 30s`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

// cookiesCmd groups cookie jar management
var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Manage the stored session cookies",
	Long: `Inspect, clear or import the cookie jar used to restore sessions.

Cookies are stored in the backend selected by session.cookie_store:
  - file: plain JSON (default)
  - encrypted: AES-GCM with a PBKDF2 derived key
  - keyring: the system keychain, falling back to the file
  - redis: a shared jar for several hosts

Never share your cookie jar!`,
}

var cookiesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored cookies with masked values",
	Args:  cobra.NoArgs,
	RunE:  runCookiesShow,
}

var cookiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored cookies",
	Args:  cobra.NoArgs,
	RunE:  runCookiesClear,
}

var cookiesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import cookies exported from a browser",
	Long: `Import a cookie jar into the configured store.

The file may hold a JSON array of cookies in the browser export format, or
a raw Cookie header ("a=1; b=2") copied from the developer tools. Use "-"
to read from standard input.`,
	Example: `  rednote cookies import cookies.json
  pbpaste | rednote cookies import -`,
	Args: cobra.ExactArgs(1),
	RunE: runCookiesImport,
}

func init() {
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 0, "per-attempt login timeout (default session.login_timeout)")
	cookiesClearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(cookiesCmd)
	cookiesCmd.AddCommand(cookiesShowCmd)
	cookiesCmd.AddCommand(cookiesClearCmd)
	cookiesCmd.AddCommand(cookiesImportCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Session.QRCodePath == "" {
		cfg.Session.QRCodePath = filepath.Join(config.AppDataDir(), "login-qr.png")
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	auth.ShowLoginGuide(cmd.OutOrStdout(), cfg.Session.CookiePath, cfg.Session.QRCodePath)

	if err := a.engine.Login(cmd.Context(), loginTimeout); err != nil {
		return err
	}

	ui.PrintSuccess("Logged in, cookies saved")
	ui.PrintInfo("Cookie store", cfg.Session.CookieStore)
	fmt.Fprintln(cmd.OutOrStdout(), "\nQuick start:")
	fmt.Fprintln(cmd.OutOrStdout(), "  $ rednote search 咖啡 --limit 5")
	fmt.Fprintln(cmd.OutOrStdout(), "  $ rednote crawl --keyword 咖啡 --resume")
	return nil
}

func runCookiesShow(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cookies, err := a.store.Load(cmd.Context())
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		ui.PrintWarning("No stored cookies", "run 'rednote login' first")
		return nil
	}

	out := cmd.OutOrStdout()
	now := time.Now()
	for _, c := range auth.Sanitize(cookies) {
		expiry := "session"
		if !c.IsSession() {
			expiry = time.Unix(int64(c.Expires), 0).Format("2006-01-02 15:04")
			if c.Expired(now) {
				expiry += " (expired)"
			}
		}
		fmt.Fprintf(out, "%-24s %-20s %-18s %s\n", c.Name, c.Value, c.Domain, expiry)
	}
	return nil
}

func runCookiesClear(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if !assumeYes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("refusing to clear cookies without a terminal, pass --yes")
		}
		ok, err := confirm(cmd, "Remove the stored session cookies? (y/N): ")
		if err != nil || !ok {
			return err
		}
	}

	if err := a.store.Clear(cmd.Context()); err != nil {
		return err
	}
	logger.Info("Cookie jar cleared")
	ui.PrintSuccess("Cookies removed")
	return nil
}

func runCookiesImport(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies, err := parseCookies(data)
	if err != nil {
		return err
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Save(cmd.Context(), cookies); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Imported %d cookies", len(cookies)))
	return nil
}

// parseCookies accepts a JSON cookie array or a raw Cookie header.
func parseCookies(data []byte) ([]auth.Cookie, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("no cookies found")
	}

	if strings.HasPrefix(text, "[") {
		var cookies []auth.Cookie
		if err := json.Unmarshal([]byte(text), &cookies); err != nil {
			return nil, fmt.Errorf("failed to parse cookie JSON: %w", err)
		}
		for i := range cookies {
			if cookies[i].Path == "" {
				cookies[i].Path = "/"
			}
			if cookies[i].Domain == "" {
				cookies[i].Domain = auth.CookieDomain
			}
		}
		return auth.Normalize(cookies), nil
	}

	text = strings.TrimPrefix(text, "Cookie:")
	cookies := auth.ParseCookieHeader(text, auth.CookieDomain)
	if len(cookies) == 0 {
		return nil, fmt.Errorf("no cookies found")
	}
	return cookies, nil
}

// confirm asks a yes/no question on the command's input.
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return false, nil
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y"), nil
}

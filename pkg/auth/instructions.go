package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowLoginGuide explains the interactive QR login to the operator.
func ShowLoginGuide(w io.Writer, cookiePath string, qrPath string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "REDNOTE LOGIN")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "A browser window will open on the explore page.")
	fmt.Fprintln(w, "  1. Open the Xiaohongshu app on your phone")
	fmt.Fprintln(w, "  2. Tap the scan icon and scan the QR code shown in the window")
	fmt.Fprintln(w, "  3. Confirm the login on your phone")
	if qrPath != "" {
		fmt.Fprintf(w, "  The QR code is also written to %s\n", qrPath)
	}
	fmt.Fprintln(w)
	if cookiePath != "" {
		fmt.Fprintf(w, "Cookies are saved to %s once the login is confirmed.\n", cookiePath)
	}
	fmt.Fprintln(w, "These cookies give full access to the account. Do not share them.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

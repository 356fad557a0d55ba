// Package login registers myvoice to start when the user logs in.
package login

import (
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupported = errors.New("launch at login not supported on this platform")

const label = "com.myvoice.app"

// envKeys are copied into the login item so it finds the same credentials
// and overrides as the shell that enabled it.
var envKeys = []string{
	"DEEPGRAM_API_KEY",
	"OPENAI_API_KEY",
	"MYVOICE_PROVIDER",
	"MYVOICE_LOCALE",
	"MYVOICE_LOG_PATH",
	"MYVOICE_CONFIG_DIR",
}

// launchArgs start the daemon mode without re-exec; the login item
// manager already detached it from any terminal.
var launchArgs = []string{"-tui=false"}

type envVar struct{ key, value string }

func currentEnv() []envVar {
	vars := []envVar{{"_MYVOICE_BG", "1"}}
	for _, k := range envKeys {
		if v := os.Getenv(k); v != "" {
			vars = append(vars, envVar{k, v})
		}
	}
	return vars
}

// install writes a login item readable only by the user; it carries API
// keys.
func install(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write login item: %w", err)
	}
	return nil
}

func uninstall(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove login item: %w", err)
	}
	return nil
}

// Set enables or disables launch at login.
func Set(on bool) error {
	if on {
		return Enable()
	}
	return Disable()
}

func renderPlist(exe string, env []envVar) string {
	var args strings.Builder
	for _, a := range append([]string{exe}, launchArgs...) {
		fmt.Fprintf(&args, "\t\t<string>%s</string>\n", html.EscapeString(a))
	}
	var vars strings.Builder
	for _, v := range env {
		fmt.Fprintf(&vars, "\t\t<key>%s</key>\n\t\t<string>%s</string>\n", v.key, html.EscapeString(v.value))
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>ProgramArguments</key>
	<array>
%s	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>LimitLoadToSessionType</key>
	<string>Aqua</string>
	<key>EnvironmentVariables</key>
	<dict>
%s	</dict>
</dict>
</plist>
`, label, args.String(), vars.String())
}

// renderDesktop builds an XDG autostart entry.
func renderDesktop(exe string, env []envVar) string {
	var cmd strings.Builder
	cmd.WriteString("env")
	for _, v := range env {
		cmd.WriteString(" " + quoteExec(v.key+"="+v.value))
	}
	cmd.WriteString(" " + quoteExec(exe))
	for _, a := range launchArgs {
		cmd.WriteString(" " + quoteExec(a))
	}

	return "[Desktop Entry]\n" +
		"Type=Application\n" +
		"Name=myvoice\n" +
		"Comment=Push-to-talk dictation\n" +
		"Exec=" + cmd.String() + "\n" +
		"Terminal=false\n" +
		"X-GNOME-Autostart-enabled=true\n"
}

// quoteExec quotes an Exec argument per the desktop entry spec when it
// contains reserved characters.
func quoteExec(arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\n\"'\\><~|&;$*?#()`%") {
		return arg
	}
	r := strings.NewReplacer(`\`, `\\\\`, `"`, `\\"`, "`", "\\\\`", `$`, `\\$`, `%`, `%%`)
	return `"` + r.Replace(arg) + `"`
}

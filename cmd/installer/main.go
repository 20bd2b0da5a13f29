// Command installer is a one-shot CLI, grounded on the teacher's
// internal/config.Manager (cmd/repl/config_helper.go's load/apply shape),
// that writes the daemon's persisted configuration file
// (~/.config/dodo-proxy/config.json) holding the upstream agent's binary
// path, default workspace override, and tool-loop defaults. cmd/daemon and
// cmd/acpbridge both read this file once at startup through
// internal/daemonconfig, before environment variables are applied.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/dodoproxy/dodo-proxy/internal/installerconfig"
	"github.com/dodoproxy/dodo-proxy/internal/oauthhelper"
)

func main() {
	var (
		configPath     = flag.String("config", "", "path to write the config file (defaults to ~/.config/dodo-proxy/config.json)")
		upstreamBin    = flag.String("upstream-bin", "", "path to the upstream agent executable")
		workspace      = flag.String("workspace", "", "default workspace override directory")
		toolLoopMode   = flag.String("tool-loop-mode", "", "tool loop mode: opencode or proxy-exec")
		maxRepeat      = flag.Int("tool-loop-max-repeat", 0, "tool loop guard max-repeat threshold (0 = keep daemon default)")
		nonInteractive = flag.Bool("non-interactive", false, "fail instead of prompting for any missing value")
		authorize      = flag.Bool("authorize", false, "run the upstream agent's OAuth2 authorization flow after saving config")
		clientID       = flag.String("oauth-client-id", "", "OAuth2 client id (only used with -authorize)")
		authURL        = flag.String("oauth-auth-url", "", "OAuth2 authorization endpoint (only used with -authorize)")
		tokenURL       = flag.String("oauth-token-url", "", "OAuth2 token endpoint (only used with -authorize)")
		redirectURI    = flag.String("oauth-redirect-uri", "http://127.0.0.1:8765/callback", "OAuth2 loopback redirect uri (only used with -authorize)")
	)
	flag.Parse()

	mgr := installerconfig.NewManager(*configPath)
	cfg, err := mgr.Load()
	if err != nil {
		log.Fatalf("installer: failed to load existing config: %v", err)
	}

	in := bufio.NewReader(os.Stdin)

	cfg.UpstreamBin = promptOrFlag(in, *nonInteractive, *upstreamBin, cfg.UpstreamBin,
		"Path to the upstream agent executable")
	if cfg.UpstreamBin == "" {
		log.Fatalf("installer: an upstream agent binary path is required")
	}
	if _, err := exec.LookPath(cfg.UpstreamBin); err != nil {
		if _, statErr := os.Stat(cfg.UpstreamBin); statErr != nil {
			log.Printf("installer: warning: %q is not on PATH and does not exist yet; continuing anyway", cfg.UpstreamBin)
		}
	}

	cfg.WorkspaceOverride = promptOrFlag(in, *nonInteractive, *workspace, cfg.WorkspaceOverride,
		"Default workspace override (blank to resolve per-request)")

	loopMode := promptOrFlag(in, *nonInteractive, *toolLoopMode, cfg.ToolLoopMode,
		"Tool loop mode (opencode or proxy-exec)")
	if loopMode != "" && loopMode != "opencode" && loopMode != "proxy-exec" {
		log.Fatalf("installer: tool-loop-mode must be %q or %q, got %q", "opencode", "proxy-exec", loopMode)
	}
	cfg.ToolLoopMode = loopMode

	if *maxRepeat > 0 {
		cfg.ToolLoopMaxRepeat = *maxRepeat
	}

	if err := mgr.Save(cfg); err != nil {
		log.Fatalf("installer: failed to save config: %v", err)
	}
	fmt.Printf("dodo-proxy config written to %s\n", mgr.GetConfigPath())

	if *authorize {
		if *clientID == "" || *authURL == "" || *tokenURL == "" {
			log.Fatalf("installer: -authorize requires -oauth-client-id, -oauth-auth-url, and -oauth-token-url")
		}
		token, err := oauthhelper.Authorize(context.Background(), oauthhelper.Config{
			ClientID:    *clientID,
			AuthURL:     *authURL,
			TokenURL:    *tokenURL,
			RedirectURI: *redirectURI,
		}, func(url string) {
			fmt.Println("Open the following URL in a browser to authorize:")
			fmt.Println(url)
			openBrowser(url)
		})
		if err != nil {
			log.Fatalf("installer: authorization failed: %v", err)
		}
		fmt.Printf("authorization complete, access token expires %s\n", token.Expiry)
	}
}

// promptOrFlag returns flagValue if set, otherwise prompts the operator
// (showing current as the default) unless nonInteractive is true, in which
// case it falls back to current unmodified.
func promptOrFlag(in *bufio.Reader, nonInteractive bool, flagValue, current, label string) string {
	if flagValue != "" {
		return flagValue
	}
	if nonInteractive {
		return current
	}

	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	return line
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/beaconlink/beaconlink/internal/config"
	"github.com/beaconlink/beaconlink/internal/logging"
	"github.com/beaconlink/beaconlink/internal/tunnelclient"
	"github.com/beaconlink/beaconlink/internal/version"
)

var (
	flagPort       int
	flagHost       string
	flagSubdomain  string
	flagConnectURL string
	flagDomainBase string
	flagToken      string
	flagForceHTTP1 bool
)

// rootCmd implements spec.md §6's "CLI surface (client)": --port is the
// primary, documented way to configure the local port, but the positional
// form <port> [connect] [subdomain] is accepted as a fallback "where flag
// parsing is unreliable" (shells/wrappers that mangle long flags) and, when
// present, overrides the flag values.
var rootCmd = &cobra.Command{
	Use:   "beaconlink [port] [connect-url] [subdomain]",
	Short: "beaconlink - expose a local port through a beaconlinkd tunnel",
	Long: `beaconlink connects to a beaconlinkd server and exposes a local HTTP
service under a public subdomain.

Example:
  beaconlink --port 3000                        # use the configured server, random subdomain
  beaconlink 3000 wss://tunnels.example.com/connect myapp`,
	Args: cobra.MaximumNArgs(3),
	Run:  runConnect,
}

func init() {
	rootCmd.Flags().IntVar(&flagPort, "port", 0, "local port to forward requests to (required)")
	rootCmd.Flags().StringVar(&flagHost, "host", "127.0.0.1", "local host to forward requests to")
	rootCmd.Flags().StringVar(&flagSubdomain, "subdomain", "", "requested subdomain (random if empty)")
	rootCmd.Flags().StringVar(&flagConnectURL, "connect", "", "control WebSocket URL, e.g. ws://localhost:3000/connect")
	rootCmd.Flags().StringVar(&flagDomainBase, "domain-base", "", "public domain base used to print the tunnel URL")
	rootCmd.Flags().StringVar(&flagToken, "token", "", "opaque auth token sent in HELLO")
	rootCmd.Flags().BoolVar(&flagForceHTTP1, "force-identity", false, "force Accept-Encoding: identity to the origin")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Info())
	},
}

func runConnect(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	port := flagPort
	if len(args) > 0 {
		p, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Printf("Invalid port %q: %v\n", args[0], err)
			os.Exit(1)
		}
		port = p
	}
	if port == 0 {
		fmt.Println("Error: --port is required")
		os.Exit(1)
	}
	localAddr := fmt.Sprintf("%s:%d", flagHost, port)

	connectURL := flagConnectURL
	if len(args) > 1 {
		connectURL = args[1]
	}
	if connectURL != "" {
		cfg.ConnectURL = connectURL
	}

	subdomain := flagSubdomain
	if len(args) > 2 {
		subdomain = args[2]
	}

	if flagDomainBase != "" {
		cfg.DomainBase = flagDomainBase
	}
	if flagForceHTTP1 {
		cfg.ForceIdentity = true
	}
	if cfg.LogPath != "" {
		cfg.Logging.File = cfg.LogPath
	}
	token := flagToken

	logging.Configure(&cfg.Logging)
	logger := logging.GetLogger()
	defer logger.Close()

	logger.Info("Starting beaconlink, forwarding to %s", localAddr)

	client := tunnelclient.New(cfg, localAddr, subdomain, token, logger)

	s := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
	s.Suffix = " Connecting to " + cfg.ConnectURL + "..."
	s.Start()

	client.OnRegistered(func(publicURL string) {
		s.Stop()
		fmt.Printf("Tunnel established: %s -> http://%s\n", publicURL, localAddr)
	})

	stop := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal %v, shutting down...", sig)
		close(stop)
	}()

	if err := client.Run(stop); err != nil {
		s.Stop()
		logger.Error("beaconlink exited with error: %v", err)
		os.Exit(1)
	}
	logger.Info("beaconlink stopped")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

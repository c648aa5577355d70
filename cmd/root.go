package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"teraleech/bot"
	"teraleech/downloader"
	"teraleech/internal"
	"teraleech/server"
	"teraleech/utils"
)

var (
	outputDir  string
	presetName string
	rateLimit  string
	quiet      bool
	proxyURL   string
	debug      bool
	logLevel   string
	logFile    string
	config     *internal.Config
)

var rootCmd = &cobra.Command{
	Use:     "teraleech",
	Short:   "Telegram bot that fetches Terabox share links and sends the files back",
	Version: "v1.0.0",
	Long: `Teraleech runs a Telegram bot: users send Terabox share links, the bot
resolves them through public resolver APIs, downloads the file with
retries and chunked fallbacks, and uploads it back into the chat.

Run without arguments to start the bot (configured via environment
variables or a .env file). Use the get subcommand for a one-off CLI
download without Telegram.

Environment Variables:
  BOT_TOKEN            Telegram bot token (required for bot mode)
  OWNER_ID             Telegram user ID of the operator
  DOWNLOAD_DIR         Working directory for transfers
  RESOLVER_ENDPOINTS   Comma-separated resolver API base URLs
  FORCE_SUB_CHANNELS   Channels users must join (@name or chat ID)
  MAX_FILE_SIZE        Upload ceiling in bytes (default 50 MiB)
  RATE_LIMIT           Bandwidth cap per transfer (e.g. 5M)
  PROXY_URL            HTTP/SOCKS5 proxy for downloads
  HEALTH_ADDR          Health endpoint bind address (default :8080)`,
	Args: cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfiguration(); err != nil {
			return fmt.Errorf("configuration error: %v", err)
		}

		if err := internal.InitLogger(config); err != nil {
			return fmt.Errorf("failed to initialize logger: %v", err)
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot()
	},
}

var getCmd = &cobra.Command{
	Use:   "get <URL>",
	Short: "Download a Terabox share link to disk without Telegram",
	Long: `Resolve and download a single share link from the command line.

Examples:
  teraleech get https://terabox.com/s/1AbC123
  teraleech get -o /downloads -r 5M https://1024terabox.com/s/1AbC123
  teraleech get --preset careful https://terabox.com/s/1AbC123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeGetWorkflow(args[0])
	},
}

// loadConfiguration loads environment configuration and applies CLI
// flag overrides
func loadConfiguration() error {
	var err error
	config, err = internal.LoadConfig()
	if err != nil {
		return err
	}

	if debug {
		config.EnableDebug = true
		config.LogLevel = "debug"
	}
	if quiet {
		config.QuietMode = true
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if logFile != "" {
		config.LogFile = logFile
	}
	if proxyURL != "" {
		config.ProxyURL = proxyURL
	}
	if rateLimit != "" {
		config.RateLimit = rateLimit
	}

	return config.Validate()
}

// runBot starts the health endpoint and the Telegram update loop
func runBot() error {
	if err := config.ValidateBot(); err != nil {
		return err
	}

	if err := os.MkdirAll(config.DownloadDir, 0755); err != nil {
		return fmt.Errorf("cannot create download dir %s: %w", config.DownloadDir, err)
	}

	b, err := bot.New(config)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	// A supervisor that cannot probe the process will restart-loop it;
	// refuse to start half-observable.
	health := server.New(b.Registry())
	if err := health.Start(ctx, config.HealthAddr); err != nil {
		return fmt.Errorf("cannot bind health endpoint on %s: %w", config.HealthAddr, err)
	}

	internal.LogInfo("Bot starting (download dir: %s)", config.DownloadDir)
	return b.Run(ctx)
}

// executeGetWorkflow resolves and downloads one link to disk
func executeGetWorkflow(shareURL string) error {
	ctx, cancel := signalContext()
	defer cancel()

	httpClient := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
		Timeout:  time.Duration(config.DefaultTimeout) * time.Second,
		ProxyURL: config.ProxyURL,
	})

	resolver := downloader.NewResolverClientWithHTTP(config.ResolverEndpoints, httpClient)

	if !quiet {
		fmt.Printf("🔍 Resolving %s\n", shareURL)
	}

	target, err := resolver.Resolve(ctx, shareURL)
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("📄 File: %s\n", target.Filename)
		fmt.Printf("📏 Size: %s\n", sizeText(target))
		fmt.Println()
	}

	rateLimitBytes, err := config.RateLimitBytes()
	if err != nil {
		return err
	}

	engine := downloader.NewEngineWithHTTP(httpClient)
	tracker := utils.NewProgressTracker(target.Size, quiet)
	engine.SetReporter(tracker)

	path, err := engine.Download(ctx, target, &internal.TransferOptions{
		OutputDir: outputDir,
		RateLimit: rateLimitBytes,
		Quiet:     quiet,
		Preset:    presetName,
	})

	summary := tracker.Finish()
	if summary != nil {
		summary.Filename = path
	}

	if err != nil {
		if le, ok := err.(*internal.LeechError); ok && le.Type == internal.ErrCancelled {
			return fmt.Errorf("download cancelled; rerun the same command to resume from the partial file")
		}
		return err
	}

	if !quiet {
		fmt.Printf("📁 Saved to: %s\n", path)
	}
	return nil
}

func sizeText(target *internal.ResolvedTarget) string {
	if target.SizeText != "" {
		return target.SizeText
	}
	if target.Size > 0 {
		return humanize.IBytes(uint64(target.Size))
	}
	return "unknown"
}

// signalContext returns a context cancelled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		internal.LogInfo("Received signal %v, shutting down...", sig)
		cancel()
	}()

	return ctx, cancel
}

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Output directory")
	getCmd.Flags().StringVar(&presetName, "preset", "", "Force a chunk preset (fast, steady, careful, crawl)")
	getCmd.Flags().StringVarP(&rateLimit, "limit-rate", "r", "", "Bandwidth limit (e.g. 5M) (env: RATE_LIMIT)")
	getCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress bar output")
	getCmd.Flags().StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS5 proxy URL (env: PROXY_URL)")

	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (env: DEBUG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug, info, warn, error) (env: LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (env: LOG_FILE)")
}

func Execute() error {
	return rootCmd.Execute()
}

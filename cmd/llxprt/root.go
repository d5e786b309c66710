package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/llxprt/core/llmerr"
	"github.com/llxprt/core/manager"
	"github.com/llxprt/core/profile"
	"github.com/llxprt/core/providers/anthropic"
	"github.com/llxprt/core/providers/gemini"
	"github.com/llxprt/core/providers/openai"
	"github.com/llxprt/core/providers/responses"
	"github.com/llxprt/core/runtimectx"
)

const appName = "llxprt"

var (
	logger      zerolog.Logger
	settings    *runtimectx.MemorySettingsService
	config      *runtimectx.MemoryConfig
	mgr         *manager.ProviderManager
	profileDir  string
	profileStor *profile.Store

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Smoke-test CLI for the multi-provider LLM client runtime",
	Long:  "A thin CLI over the provider manager: list providers, send one completion, manage profiles.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
		settings = runtimectx.NewMemorySettingsService()
		config = runtimectx.NewMemoryConfig("gpt-4.1-mini", "openai")
		mgr = manager.New(settings, config, logger)
		registerProviders(mgr)
		profileStor = profile.NewStore(profileDir)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&profileDir, "profiles-dir", "", "override the profiles directory (default ~/.llxprt/profiles)")

	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(profileCmd)
}

func setupLogging(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// registerProviders wires every wire-family adapter this runtime carries,
// keyed by the env vars each one's auth.Config already defaults to.
// Adapters whose credentials are absent still register: capability and
// model listing work without a key, only GenerateChatCompletion needs one.
func registerProviders(m *manager.ProviderManager) {
	m.RegisterProvider(anthropic.New(anthropic.Config{}), true)
	m.RegisterProvider(openai.New(openai.Config{PresetName: "openai"}), false)
	m.RegisterProvider(openai.New(openai.Config{PresetName: "deepseek"}), false)
	m.RegisterProvider(openai.New(openai.Config{PresetName: "groq"}), false)
	m.RegisterProvider(openai.New(openai.Config{PresetName: "together"}), false)
	m.RegisterProvider(openai.New(openai.Config{PresetName: "ollama"}), false)
	m.RegisterProvider(gemini.New(gemini.Config{}), false)
	m.RegisterProvider(responses.New(responses.Config{}), false)
}

func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if code := llmerr.ExitCode(err); code != 1 {
		return code
	}
	return 1
}

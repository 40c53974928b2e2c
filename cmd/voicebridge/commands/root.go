package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "voicebridge",
	Short: "Voice/avatar session relay for Azure Voice Live",
	Long: `voicebridge - relay between browser clients and Azure Voice Live.

The daemon terminates a browser-facing WebSocket and HTTP API, keeps one
upstream realtime connection per session, mediates avatar SDP negotiation
and fans translated events out to listeners.

Upstream configuration comes from environment variables:
  AZURE_VOICE_LIVE_ENDPOINT
  AZURE_VOICE_LIVE_API_VERSION
  AZURE_VOICE_LIVE_AGENT_ID
  AZURE_VOICE_LIVE_AGENT_CONNECTION_STRING
  AZURE_TTS_VOICE
  AZURE_VOICE_AVATAR_CHARACTER / _STYLE / _WIDTH / _HEIGHT / _BITRATE
  AZURE_VOICE_AVATAR_ICE_URLS (optional, comma separated)

Examples:
  # Run the relay daemon
  voicebridge serve --listen :8000 --data-dir /var/lib/voicebridge

  # Talk to the agent from the terminal
  voicebridge mic`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

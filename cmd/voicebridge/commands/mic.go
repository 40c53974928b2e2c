package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/voicebridge/voicebridge/pkg/audio/portaudio"
	"github.com/voicebridge/voicebridge/pkg/azureauth"
	"github.com/voicebridge/voicebridge/pkg/voicelive"
)

// Upstream audio is 24 kHz mono 16-bit PCM; 20 ms buffers.
const (
	micSampleRate = 24000
	micFrames     = micSampleRate / 50
)

var micCmd = &cobra.Command{
	Use:   "mic",
	Short: "Talk to the agent from the terminal",
	Long: `Connect directly to the upstream service, stream microphone audio up
and play the agent's replies. Transcripts are printed as they arrive.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if list, _ := cmd.Flags().GetBool("list-devices"); list {
			return listDevices()
		}
		return runMic(cmd.Context())
	},
}

func listDevices() error {
	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		marker := ""
		if d.IsDefaultInput {
			marker += " [default input]"
		}
		if d.IsDefaultOutput {
			marker += " [default output]"
		}
		fmt.Printf("%d: %s (in=%d out=%d, %.0f Hz)%s\n",
			d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, marker)
	}
	return nil
}

func runMic(ctx context.Context) error {
	cfg, err := voicelive.ConfigFromEnv()
	if err != nil {
		return err
	}
	tokens, err := azureauth.NewProvider()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	link := voicelive.NewLink(uuid.NewString(), cfg, tokens)
	if err := link.Connect(ctx); err != nil {
		return err
	}
	defer link.Disconnect()

	input, err := portaudio.NewInputStream(micSampleRate, 1, micFrames)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	defer input.Close()
	output, err := portaudio.NewOutputStream(micSampleRate, 1, micFrames)
	if err != nil {
		return fmt.Errorf("open speaker: %w", err)
	}
	defer output.Close()

	// Player goroutine owns the output device; the event loop only queues.
	playback := make(chan []byte, 256)
	go func() {
		for pcm := range playback {
			if err := output.WriteBytes(pcm); err != nil {
				return
			}
		}
	}()
	defer close(playback)

	// Capture goroutine streams microphone buffers upstream.
	go func() {
		for {
			pcm, err := input.ReadBytes()
			if err != nil {
				return
			}
			chunk := base64.StdEncoding.EncodeToString(pcm)
			if err := link.Send(ctx, voicelive.TypeInputAudioBufferAppend, map[string]any{"audio": chunk}); err != nil {
				return
			}
		}
	}()

	fmt.Println("Connected. Speak into the microphone; Ctrl-C to quit.")
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nBye.")
			return nil
		case inb := <-link.Events():
			if inb.Err != nil {
				return inb.Err
			}
			switch inb.Event.Type {
			case voicelive.TypeResponseAudioDelta:
				pcm, err := base64.StdEncoding.DecodeString(inb.Event.Delta)
				if err != nil {
					continue
				}
				select {
				case playback <- pcm:
				default: // keep up with realtime rather than buffer forever
				}
			case voicelive.TypeInputSpeechStarted:
				// Barge-in: drop whatever the agent was still saying.
				for {
					select {
					case <-playback:
						continue
					default:
					}
					break
				}
				fmt.Println("\n[listening]")
			case voicelive.TypeInputTranscriptionCompleted:
				fmt.Printf("you: %s\n", inb.Event.Transcript)
			case voicelive.TypeResponseAudioTranscriptDelta:
				fmt.Print(inb.Event.Delta)
			case voicelive.TypeResponseAudioTranscriptDone:
				fmt.Println()
			case voicelive.TypeError:
				if inb.Event.Error != nil {
					fmt.Fprintf(os.Stderr, "upstream error: %s\n", inb.Event.Error.Message)
				}
			}
		}
	}
}

func init() {
	micCmd.Flags().Bool("list-devices", false, "list audio devices and exit")
	rootCmd.AddCommand(micCmd)
}

package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/voicebridge/voicebridge/cmd/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/pkg/bridge"
	"github.com/voicebridge/voicebridge/pkg/langid"
	"github.com/voicebridge/voicebridge/pkg/langpair"
	"github.com/voicebridge/voicebridge/pkg/peer"
	"github.com/voicebridge/voicebridge/pkg/recognize"
	"github.com/voicebridge/voicebridge/pkg/transcript"
)

var (
	runContext  string
	runAudioOut string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive translation session",
	Long: `Run a realtime translation session against the configured peer.

Session commands:
  talk            start capturing an utterance (push-to-talk down)
  stop            finish the utterance and request a translation
  say <text>      submit a typed utterance instead of speech
  cancel          interrupt the in-flight translation
  show            print the transcript
  status          show connection state and language pair
  refresh         reset the connection gate and reconnect
  quit            end the session`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVarP(&runContext, "context", "c", "", "config context (default: current)")
	runCmd.Flags().StringVar(&runAudioOut, "audio-out", "", "write received audio to a file (raw payloads)")
	rootCmd.AddCommand(runCmd)
}

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	crumbStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	pendingStyle   = lipgloss.NewStyle().Faint(true)
	statusStyle    = lipgloss.NewStyle().Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func runSession(cmd *cobra.Command, args []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	contextDir, err := s.Resolve(runContext)
	if err != nil {
		return err
	}
	settings, err := config.LoadBridge(contextDir)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	client := peer.NewClient(peer.ClientConfig{
		CredentialURL: settings.CredentialURL,
		SignalURL:     settings.SignalURL,
		WebSocketURL:  settings.WebSocketURL,
		APIKey:        settings.APIKey,
	})

	var transport bridge.Transport
	if settings.Transport == "websocket" {
		transport = bridge.DialFunc(func(ctx context.Context) (peer.Session, error) {
			return client.ConnectWebSocket(ctx)
		})
	} else {
		transport = bridge.DialFunc(func(ctx context.Context) (peer.Session, error) {
			return client.ConnectWebRTC(ctx)
		})
	}

	classifier := langid.New(settings.ClassifierURL)

	// The recognizer callback needs the coordinator, which needs the
	// recognizer; bind through a late pointer.
	var coord *bridge.Coordinator
	var recognizer recognize.Recognizer
	if settings.RecognizerURL != "" {
		recognizer = recognize.NewCloud(settings.RecognizerURL, settings.RecognizerAPIKey,
			func(r recognize.Result) {
				if coord != nil {
					coord.HandleRecognition(r)
				}
			})
	}

	opts := []bridge.CoordinatorOption{}
	if runAudioOut != "" {
		f, err := os.Create(runAudioOut)
		if err != nil {
			return fmt.Errorf("open audio output: %w", err)
		}
		defer f.Close()
		opts = append(opts, bridge.WithAudioOutput(f))
	}

	coord = bridge.NewCoordinator(transport, classifier, recognizer, bridge.Config{
		Pair: langpair.Policy{
			DefaultMain:   langid.Tag(settings.MainLanguage),
			DefaultTarget: langid.Tag(settings.TargetLanguage),
		},
		Sync: bridge.SyncConfig{
			Voice:              settings.Voice,
			InputAudioFormat:   peer.AudioFormatPCM16,
			OutputAudioFormat:  peer.AudioFormatPCM16,
			TranscriptionModel: settings.TranscriptionModel,
		},
	}, opts...)

	fmt.Println(statusStyle.Render("voicebridge — connecting..."))
	if err := coord.Connect(cmd.Context()); err != nil {
		return err
	}
	defer coord.Disconnect()
	fmt.Println(statusStyle.Render("connected. ") + "Type 'talk' or 'say <text>'; 'quit' to exit.")

	return repl(cmd.Context(), coord, recognizer != nil)
}

func repl(ctx context.Context, coord *bridge.Coordinator, hasRecognizer bool) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "":
			continue
		case "talk", "t":
			if !hasRecognizer {
				printErr(fmt.Errorf("no recognizer_url configured; use 'say <text>'"))
				continue
			}
			if err := coord.StartCapture(ctx); err != nil {
				printErr(err)
				continue
			}
			fmt.Println(pendingStyle.Render("listening... type 'stop' when done"))
		case "stop", "s":
			coord.StopCapture()
			printTranscript(os.Stdout, coord.Transcript())
		case "say":
			if rest == "" {
				printErr(fmt.Errorf("usage: say <text>"))
				continue
			}
			if err := typedUtterance(ctx, coord, rest); err != nil {
				printErr(err)
				continue
			}
			printTranscript(os.Stdout, coord.Transcript())
		case "cancel":
			if err := coord.CancelAssistant(); err != nil {
				printErr(err)
			}
		case "show":
			printTranscript(os.Stdout, coord.Transcript())
		case "status":
			pair := coord.Pair()
			fmt.Printf("%s  %s -> %s\n",
				statusStyle.Render(coord.State().String()),
				langid.DisplayName(pair.Main), langid.DisplayName(pair.Target))
		case "refresh":
			if err := coord.Refresh(ctx); err != nil {
				printErr(err)
			}
		case "quit", "q", "exit":
			return nil
		default:
			printErr(fmt.Errorf("unknown command %q", cmd))
		}
	}
}

// typedUtterance runs a text-only turn through the same capture path the
// recognizer feeds, so typed input exercises identical session behavior.
func typedUtterance(ctx context.Context, coord *bridge.Coordinator, text string) error {
	if err := coord.StartCapture(ctx); err != nil {
		return err
	}
	coord.HandleRecognition(recognize.Result{Text: text, Final: true})
	coord.StopCapture()
	return nil
}

func printTranscript(w io.Writer, entries []transcript.Entry) {
	for _, e := range entries {
		line := e.Content
		if e.Status == transcript.StatusInProgress {
			line = pendingStyle.Render(line + " ...")
		}
		switch e.Role {
		case transcript.RoleUser:
			fmt.Fprintln(w, userStyle.Render("you  ")+line)
		case transcript.RoleAssistant:
			fmt.Fprintln(w, assistantStyle.Render("peer ")+line)
		case transcript.RoleBreadcrumb:
			fmt.Fprintln(w, crumbStyle.Render("--   "+e.Content))
		}
	}
}

func printErr(err error) {
	fmt.Println(errorStyle.Render(err.Error()))
}

package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/charla/adapters/recorder"
	"github.com/satriahrh/charla/domain"
	"github.com/satriahrh/charla/domain/entities"
	"github.com/satriahrh/charla/domain/repositories"
	"github.com/satriahrh/charla/internal/playback"
	"github.com/satriahrh/charla/usecase"
)

const quitCommand = "/quit"

var (
	chatMode string
	chatMute bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Practice in the terminal",
	Long: `Hold a Spanish conversation in the terminal.

In text mode each line you type is one turn. In voice mode press ENTER to
start recording and ENTER again to stop. Type /quit to leave.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMode, "mode", "m", "text", "input mode: text or voice")
	chatCmd.Flags().BoolVar(&chatMute, "mute", false, "do not play the spoken reply")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatMode != "text" && chatMode != "voice" {
		return fmt.Errorf("unknown mode %q (allowed: text, voice)", chatMode)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	var player playback.Player = playback.NewCommandPlayer(logger)
	if chatMute {
		player = playback.Discard{}
	}

	c := &chat{
		conversation: svc.conversation(cfg, logger),
		session:      entities.NewSession(preambleOrDefault(cfg.Conversation.Preamble)),
		player:       player,
		out:          cmd.OutOrStdout(),
		styles:       newStyles(),
		translation:  translationLabel(cfg.Conversation.TranslationTarget),
		logger:       logger,
	}

	if chatMode == "voice" {
		rec, err := recorder.NewCommandRecorder(recorder.CommandRecorderConfig{
			Command:     cfg.Audio.CaptureCommand,
			SampleRate:  cfg.Audio.SampleRate,
			MaxDuration: cfg.Audio.MaxRecordTime,
		}, logger)
		if err != nil {
			return err
		}
		c.recorder = rec
	}

	return c.run(ctx, readLines(cmd.InOrStdin()))
}

func preambleOrDefault(preamble string) string {
	if preamble == "" {
		return usecase.DefaultPreamble
	}
	return preamble
}

// chat is one terminal conversation
type chat struct {
	conversation *usecase.ConversationService
	session      *entities.Session
	recorder     repositories.Recorder
	player       playback.Player
	out          io.Writer
	styles       styles
	translation  string
	logger       *zap.Logger
}

// readLines forwards stdin lines until EOF
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func (c *chat) run(ctx context.Context, lines <-chan string) error {
	if c.recorder != nil {
		fmt.Fprintln(c.out, c.styles.Hint.Render("Press ENTER to speak, ENTER again to stop. Type /quit to leave."))
	} else {
		fmt.Fprintln(c.out, c.styles.Hint.Render("Type in Spanish and press ENTER. Type /quit to leave."))
	}

	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
			if !ok {
				return nil
			}
		}

		if strings.TrimSpace(line) == quitCommand {
			fmt.Fprintln(c.out, "¡Hasta luego!")
			return nil
		}

		var input entities.InputSource = entities.TypedInput{Text: line}
		if c.recorder != nil {
			clip, err := c.record(ctx, lines)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.logger.Error("Recording failed", zap.Error(err))
				fmt.Fprintln(c.out, c.styles.Error.Render("Recording failed: "+err.Error()))
				continue
			}
			input = entities.RecordedInput{Clip: clip}
		}

		c.exchange(ctx, input)
	}
}

// record captures until the next line arrives or the recorder gives up
func (c *chat) record(ctx context.Context, lines <-chan string) (entities.AudioClip, error) {
	type captured struct {
		clip entities.AudioClip
		err  error
	}

	stopCh := make(chan struct{})
	done := make(chan captured, 1)
	go func() {
		clip, err := c.recorder.Record(ctx, stopCh)
		done <- captured{clip: clip, err: err}
	}()

	fmt.Fprintln(c.out, c.styles.Hint.Render("Recording... press ENTER to stop."))

	select {
	case <-lines:
		close(stopCh)
		result := <-done
		return result.clip, result.err
	case result := <-done:
		fmt.Fprintln(c.out, c.styles.Hint.Render("Recording limit reached."))
		return result.clip, result.err
	}
}

func (c *chat) exchange(ctx context.Context, input entities.InputSource) {
	result, err := c.conversation.Exchange(ctx, c.session, input, c)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		fmt.Fprintln(c.out, c.styles.Hint.Render("Please say or type something."))
		return
	case errors.Is(err, domain.ErrServiceUnavailable):
		fmt.Fprintln(c.out, c.styles.Error.Render("Sorry, I could not understand that. Please try again."))
		return
	case err != nil:
		fmt.Fprintln(c.out, c.styles.Error.Render("Error: "+err.Error()))
		return
	}

	renderTranscript(c.out, c.styles, c.session.VisibleHistory())
	if len(result.Skipped) > 0 {
		fmt.Fprintln(c.out, c.styles.Hint.Render("(unavailable: "+strings.Join(result.Skipped, ", ")+")"))
	}
}

// Transcribed implements usecase.Presenter
func (c *chat) Transcribed(text string) {
	fmt.Fprintf(c.out, "%s %s\n", c.styles.User.Render("You said:"), text)
}

// Translated implements usecase.Presenter
func (c *chat) Translated(text string) {
	fmt.Fprintf(c.out, "%s %s\n", c.styles.Hint.Render(c.translation), text)
}

// Play implements usecase.Presenter
func (c *chat) Play(ctx context.Context, artifact *entities.AudioArtifact) error {
	return c.player.Play(ctx, artifact)
}

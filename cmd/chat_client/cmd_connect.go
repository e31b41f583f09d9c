package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"marketplace_chat/internal/chat/api"
	"marketplace_chat/internal/chat/session"
	"marketplace_chat/internal/chat/transport"
	"marketplace_chat/pkg/config"
	errprocess "marketplace_chat/pkg/err"
	"marketplace_chat/pkg/logger"
	"marketplace_chat/pkg/token"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	connectRoom  string
	connectToken string
	connectHost  string
)

// connectCmd joins a room until stdin closes, /quit or Ctrl-C
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Join a chat room",
	Long: `Open the room socket, print history and new messages, send every stdin line.

Commands typed at the prompt:
  /retry  - reconnect after the client gave up
  /resend - send the draft kept from a failed send
  /quit   - leave the room`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectRoom, "room", "", "room id")
	connectCmd.Flags().StringVar(&connectToken, "token", "", "JWT, overrides chat_client.yaml")
	connectCmd.Flags().StringVar(&connectHost, "host", "", "relay host:port, overrides chat_client.yaml")
	_ = connectCmd.MarkFlagRequired("room")
}

func loadClientConfig() config.ChatClient {
	cfg, err := config.ReadConfig[config.ChatClient](config.EnvConfig.ChatClient, config.EnvConfig.ChatClientYAMLPath)
	if err != nil {
		logger.Log.Warn("chat_client config not loaded, using flags and defaults", zap.Error(err))
	}
	if connectToken != "" {
		cfg.Token = connectToken
	}
	if connectHost != "" {
		cfg.Host = connectHost
	}
	return config.DefaultChatClient(cfg)
}

// apiBaseURL REST base, derived from the socket host when api_url is empty
func apiBaseURL(cfg config.ChatClient) string {
	if cfg.APIURL != "" {
		return cfg.APIURL
	}
	if cfg.Scheme == "wss" {
		return "https://" + cfg.Host
	}
	return "http://" + cfg.Host
}

// warnExpiredToken the relay would reject the socket, say so before dialing
func warnExpiredToken(w io.Writer, tok string) {
	expired, err := token.PeekExpired(tok)
	if err != nil {
		logger.Log.Warn("token not readable", zap.Error(err))
		return
	}
	if expired {
		fmt.Fprintln(w, "-- token expired, mint a new one with chat_client token")
	}
}

func runConnect(cmd *cobra.Command, _ []string) error {
	logger.Log = logger.Initialize(config.EnvConfig.ChatClient, config.EnvConfig.ChatClientLogPath, logger.WithoutConsole())
	defer logger.Log.Sync()

	cfg := loadClientConfig()
	if cfg.Host == "" {
		return errprocess.Set("no relay host, set host in chat_client.yaml or pass --host")
	}
	warnExpiredToken(cmd.ErrOrStderr(), cfg.Token)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := newRoomPrinter(cmd.OutOrStdout())
	var s *session.Session
	s = session.New(
		session.ConfigFrom(cfg, connectRoom),
		transport.NewWSDialer(cfg.DialTimeout),
		api.NewChatClient(apiBaseURL(cfg), cfg.Token, cfg.SendTimeout),
		session.WithOnUpdate(func(st session.State) {
			printer.update(st, s.Messages(), s.IsMine)
		}),
	)
	defer s.Close()

	s.Connect()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	composer := session.NewComposer(s)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "/quit":
				return nil
			case "/retry":
				s.Retry()
				continue
			case "/resend":
			default:
				composer.SetDraft(line)
			}
			submit(ctx, cmd, composer, cfg)
		}
	}
}

func submit(ctx context.Context, cmd *cobra.Command, composer *session.Composer, cfg config.ChatClient) {
	sendCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()

	err := composer.Submit(sendCtx)
	switch {
	case err == nil, errors.Is(err, api.ErrEmptyContent):
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "-- send failed: %v (draft kept, /resend to try again)\n", err)
	}
}

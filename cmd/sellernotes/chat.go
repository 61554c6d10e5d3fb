package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/boddenberg/sellernotes-bot-go/internal/app"
	"github.com/boddenberg/sellernotes-bot-go/internal/config"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/observability"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func chatCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				user = uuid.NewString()
			}
			return runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), user)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (default: random)")
	return cmd
}

func runChat(ctx context.Context, in io.Reader, out io.Writer, user string) error {
	cfg := config.Load()

	// console output belongs to the conversation; logs only at warn and up
	logger := observability.NewLogger("warn")
	if cfg.LogLevel == "debug" {
		logger = observability.NewLogger("debug")
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build bot: %w", err)
	}
	defer bot.Close()

	fmt.Fprintln(out, "Napište zprávu (Ctrl+D ukončí).")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())

		replies, err := bot.Send(ctx, "console", user, text)
		if err != nil {
			logger.Debug("turn failed", zap.Error(err))
			fmt.Fprintln(out, err.Error())
			continue
		}
		for _, r := range replies {
			fmt.Fprintln(out, r)
		}
		if ctx.Err() != nil {
			break
		}
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

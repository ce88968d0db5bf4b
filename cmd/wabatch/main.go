// Command wabatch sends WhatsApp messages from the terminal through the same
// automation backend and contacts store as the web server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/wabatch/internal/config"
	"github.com/JonMunkholm/wabatch/internal/core"
	"github.com/JonMunkholm/wabatch/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", userError(err))
		stop()
		os.Exit(1)
	}
}

// userError renders err for the terminal, falling back to its raw text for
// errors that carry no user message.
func userError(err error) string {
	if msg := core.FormatUserError(err); msg != "" && core.IsUserFacing(err) {
		return msg
	}
	return err.Error()
}

// cli holds state shared by the subcommands.
type cli struct {
	out io.Writer
	cfg *config.Config
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "wabatch",
		Short: "Send WhatsApp messages to a phone number or a contacts file",
		Long: `wabatch drives the WhatsApp automation backend from the terminal.

Configuration comes from the environment (and a .env file in the working
directory), the same variables the web server reads: WHATSAPP_API_URL,
DEFAULT_COUNTRY_CODE, BATCH_SEND_DELAY, CONTACTS_UPLOAD_DIR and so on.

Every send logs the WhatsApp session out when it finishes; the next send
needs a fresh QR login.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.ErrOrStderr())
		},
	}
	root.SetOut(out)

	root.AddCommand(c.sendCmd(), c.batchCmd(), c.previewCmd())
	return root
}

// setup loads .env and the configuration, and sends logs to stderr.
func (c *cli) setup(logOut io.Writer) error {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg
	slog.SetDefault(logging.New(logOut, cfg.Logging.Level, cfg.Logging.Format))
	return nil
}

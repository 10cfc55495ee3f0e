package cmd

import (
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jsphweid/levelup/broadcast"
	"github.com/jsphweid/levelup/constants"
	"github.com/jsphweid/levelup/server"
	"github.com/spf13/cobra"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", constants.GetAddr(), "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the shared channel server",
	Long: `Runs the server players connect to. It hands out anonymous identities,
accepts played notes and streams them to everyone on the channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := log.FromContext(ctx)
		secret := constants.GetSecret()
		if secret == "" {
			logger.Warn("LEVELUP_SECRET is not set, identities will not survive a restart")
		}
		hub := broadcast.NewHub(broadcast.DefaultBuffer, logger)
		s := server.New(hub, server.NewIdentity([]byte(secret)), logger)
		return s.Run(ctx, serveAddr)
	},
}

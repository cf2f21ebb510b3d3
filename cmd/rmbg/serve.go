package main

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/rmbg-local/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdin/stdout",
	Long: `Run a Model Context Protocol server on stdin/stdout.

Configure it in your MCP client as the command "rmbg serve". Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := cfg.Model()
		if err != nil {
			return err
		}
		p, sess, err := newPipeline()
		if err != nil {
			return err
		}
		defer closeSession(sess)

		logger.Info("mcp server starting", "version", Version, "default_model", string(id))
		return server.New(p, id, logger).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

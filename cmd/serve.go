package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/satprep/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the practice engine as a JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		srvCfg := cfg.Server
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			srvCfg.Addr = addr
		}
		srv := server.New(srvCfg, server.Deps{
			Engine:    rt.engine,
			Persister: rt.persister,
			Stats:     rt.store.StatsRepo(),
			Tutor:     rt.tutor,
			Logger:    rt.logger,
		})
		return srv.Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides SATPREP_HTTP_ADDR)")
}

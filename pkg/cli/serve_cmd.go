package cli

import (
	"github.com/spf13/cobra"

	"vidstats/internal/app"
)

func newServeCmd(rt *runtime) *cobra.Command {
	var (
		listen    string
		bootstrap bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: "Run the HTTP API. With --bootstrap (the default) the schema is migrated and the\n" +
			"dataset is imported first unless the videos table already has rows.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := rt.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listen
			}

			pool, err := rt.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if bootstrap {
				if err := bootstrapDatabase(ctx, pool, cfg.VideosJSONPath, false, true, rt.logger); err != nil {
					return err
				}
			}

			auditDB, err := rt.openAnswerLog(ctx)
			if err != nil {
				return err
			}
			if auditDB != nil {
				defer auditDB.Close() //nolint:errcheck
			}

			a, err := app.New(app.Deps{Cfg: cfg, DB: pool, AuditDB: auditDB, Logger: rt.logger})
			if err != nil {
				return err
			}
			return a.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "Listen address (overrides LISTEN_ADDR)")
	cmd.Flags().BoolVar(&bootstrap, "bootstrap", true, "Migrate the schema and import the dataset before serving")
	return cmd
}

package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the unique indexes the directory invariants rely on",
	Long:  `This job ensures the users and groups collections carry the unique indexes for usernames and normalized group names.`,
	Run: func(cmd *cobra.Command, args []string) {

		commonSetUp()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		defer directoryDB.Close(ctx)

		log.Info().Msg("Ensuring indexes...")
		if err := directoryDB.EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure indexes")
		}

		log.Info().Msg("Index initialization complete")
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}

package cmd

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/directoryhub/directory-services/internal/events"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the Pulsar consumer that records directory lifecycle events for audit",
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config, initialize the database and set up logging
		commonSetUp()

		// Initialize event consumer
		consumer, err := events.NewEventConsumer(appCfg.Pulsar.URL, appCfg.Pulsar.TopicConsumer, appCfg.Pulsar.Subscription)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize event consumer")
		}
		defer consumer.Close()

		log.Info().Msg("Waiting for lifecycle events...")
		for {
			event, msg, err := consumer.Receive(context.Background())
			if err != nil {
				log.Error().Err(err).Msg("Error receiving message")
				if msg != nil {
					// Undecodable payloads go to the DLQ after redelivery
					consumer.Nack(msg)
				}
				continue
			}

			if err := directoryDB.RecordAuditEvent(context.Background(), event.Entity, event.ID, event.Action); err != nil {
				log.Error().Err(err).Msg("Failed to record audit event")
				consumer.Nack(msg)
				continue
			}

			log.Info().Str("entity", event.Entity).Str("id", event.ID).
				Str("action", event.Action).Msg("Recorded audit event")
			consumer.Ack(msg)
		}
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}

package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/directoryhub/directory-services/api/handlers"
	"github.com/directoryhub/directory-services/api/middleware"
	"github.com/directoryhub/directory-services/api/services"
	"github.com/directoryhub/directory-services/internal/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server for handling API requests",
	Run: func(cmd *cobra.Command, args []string) {

		// Load the config, initialize the database and set up logging
		commonSetUp()

		// Initialize the event publisher; without a broker URL the
		// service runs event-less.
		var publisher events.Notifier = events.NopNotifier{}
		if appCfg.Pulsar.URL != "" {
			p, err := events.NewEventPublisher(appCfg.Pulsar.URL, appCfg.Pulsar.TopicProducer)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to initialize event publisher")
			}
			publisher = p
		}
		defer publisher.Close()

		svc := services.NewService(appCfg, directoryDB, publisher)

		// Create routes
		r := mux.NewRouter()

		// Register the routes
		api := r.PathPrefix(appCfg.BasePath).Subrouter()

		// Apply the middleware to the API routes
		api.Use(middleware.WithLogger)
		api.Use(middleware.WithTimeout(time.Duration(appCfg.Server.RequestTimeoutSeconds) * time.Second))
		api.Use(middleware.BasicAuth(directoryDB))

		// User routes
		api.HandleFunc("/users", handlers.RegisterUser(svc)).Methods(http.MethodPost)
		api.HandleFunc("/users", handlers.GetUsers(svc)).Methods(http.MethodGet)
		api.HandleFunc("/users/{user-id}", handlers.GetUser(svc)).Methods(http.MethodGet)
		api.HandleFunc("/users/{user-id}", handlers.UpdateUser(svc)).Methods(http.MethodPatch)
		api.HandleFunc("/users/{user-id}", handlers.DeleteUser(svc)).Methods(http.MethodDelete)

		// Group routes
		api.HandleFunc("/groups", handlers.CreateGroup(svc)).Methods(http.MethodPost)
		api.HandleFunc("/groups", handlers.GetGroups(svc)).Methods(http.MethodGet)
		api.HandleFunc("/groups/{group-id}", handlers.GetGroup(svc)).Methods(http.MethodGet)
		api.HandleFunc("/groups/{group-id}", handlers.UpdateGroup(svc)).Methods(http.MethodPatch)
		api.HandleFunc("/groups/{group-id}", handlers.DeleteGroup(svc)).Methods(http.MethodDelete)

		log.Info().Msg(fmt.Sprintf("Server started at %s:%d", host, port))

		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", host, port),
			r); err != nil {

			log.Error().Err(err).Msg("could not start server")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&host, "host", "0.0.0.0", "host to run the server on")
	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run the server on")
}

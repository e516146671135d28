package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wordhoard/wordhoard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference backend server",
	Long: `Run the wordhoard backend: the shared HTTP server that devices pull from
and push to.

Intended for local development and self-hosting. With no tokens configured,
authorization is disabled; configure serve.tokens in the config file to map
bearer tokens to the profile ids they may touch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		dbPath, _ := cmd.Flags().GetString("server-db")

		logger := log.New(os.Stderr, "[server] ", log.LstdFlags)

		db, err := server.OpenDB(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := db.InitSchema(ctx); err != nil {
			return err
		}

		tokens := map[string][]string{}
		for token, profiles := range viper.GetStringMapStringSlice("serve.tokens") {
			tokens[token] = profiles
		}
		if len(tokens) == 0 {
			logger.Println("WARNING: no tokens configured, authorization disabled")
		}

		srv := server.New(db, &server.Config{
			Addr:   addr,
			Tokens: tokens,
			Logger: logger,
		})

		fmt.Printf("Backend listening on %s\n", addr)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8787", "address to listen on")
	serveCmd.Flags().String("server-db", "wordhoard-server.db", "path to the backend database")
	rootCmd.AddCommand(serveCmd)
}

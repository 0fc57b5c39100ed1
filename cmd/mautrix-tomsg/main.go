// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command mautrix-tomsg is a Matrix-tomsg appservice bridge. It maintains
// the identity mapping between Matrix users/rooms and their tomsg
// counterparts and rewrites message bodies between Matrix HTML and tomsg
// plain text, resolving mentions through that mapping.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"

	"github.com/aiku/mautrix-tomsg/pkg/connector"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("c", "config.yaml", "path to the config file")
	registrationPath := flag.String("r", "", "path to the registration file (overrides config)")
	generate := flag.Bool("g", false, "generate the appservice registration and exit")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := connector.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	regPath := cfg.RegistrationPath
	if *registrationPath != "" {
		regPath = *registrationPath
	}

	if *generate {
		reg := connector.NewRegistration(cfg)
		if err := reg.Save(regPath); err != nil {
			log.Fatal().Err(err).Str("path", regPath).Msg("Failed to write registration")
		}
		log.Info().Str("path", regPath).Msg("Wrote appservice registration")
		return
	}

	reg, err := connector.LoadRegistration(regPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", regPath).Msg("Failed to load registration (generate one with -g)")
	}

	client, err := mautrix.NewClient(cfg.HomeserverURL, "", reg.AppToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create homeserver client")
	}

	tc := connector.NewConnector(cfg, log)
	tc.Client = client

	srv := connector.NewServer(log, reg.ServerToken, tc.HandleTransaction)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", Tag).
		Str("commit", Commit).
		Str("built", BuildTime).
		Msg("Starting mautrix-tomsg")

	if err := srv.ListenAndServe(ctx, cfg.ListenAddress); err != nil {
		log.Fatal().Err(err).Msg("Appservice listener failed")
	}
	log.Info().Msg("mautrix-tomsg stopped")
}

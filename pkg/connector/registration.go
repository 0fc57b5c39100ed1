// Copyright 2024-2026 Aiku AI

package connector

import (
	"regexp"

	"go.mau.fi/util/random"
	"maunium.net/go/mautrix/appservice"
)

const (
	registrationID  = "tomsg"
	senderLocalpart = "tomsgbot"
	tokenLength     = 64
)

// NewRegistration builds the appservice registration for this bridge: fresh
// random tokens and exclusive namespaces covering the ghost user and alias
// patterns for the configured domain.
func NewRegistration(cfg *Config) *appservice.Registration {
	reg := appservice.CreateRegistration()
	reg.ID = registrationID
	reg.URL = cfg.AppserviceURL
	reg.SenderLocalpart = senderLocalpart
	reg.AppToken = random.String(tokenLength)
	reg.ServerToken = random.String(tokenLength)
	rateLimited := false
	reg.RateLimited = &rateLimited

	domain := regexp.QuoteMeta(cfg.Domain)
	reg.Namespaces.UserIDs.Register(
		regexp.MustCompile("^@"+ghostPrefix+".+:"+domain+"$"), true)
	reg.Namespaces.RoomAliases.Register(
		regexp.MustCompile("^#"+ghostPrefix+".+:"+domain+"$"), true)

	return reg
}

// LoadRegistration reads a previously generated registration file.
func LoadRegistration(path string) (*appservice.Registration, error) {
	return appservice.LoadRegistration(path)
}

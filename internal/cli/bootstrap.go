// Package cli provides CLI commands for the expfactory application.
package cli

import (
	"context"
	"os"
	"strings"

	"github.com/example/expfactory/internal/config"
	"github.com/example/expfactory/internal/ctxutil"
)

// ActorEnv names the audit actor when no --actor flag is given.
const ActorEnv = "EXPFACTORY_ACTOR"

// globalActorID stores the actor recorded in the audit log for the current invocation.
// Set once at startup by DetectAndStoreActor().
var globalActorID string

// DetectAndStoreActor resolves the actor from the flag, then $EXPFACTORY_ACTOR, then the
// config file, then the login user.
// Should be called once at CLI startup in PersistentPreRun.
func DetectAndStoreActor(flagValue string) {
	globalActorID = resolveActor(flagValue, os.Getenv(ActorEnv), configActor(), os.Getenv("USER"))
}

func resolveActor(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

func configActor() string {
	cfg, err := config.Load()
	if err != nil {
		return ""
	}
	return cfg.Actor
}

// GetActorID returns the stored actor ID from CLI startup.
// Returns empty string if DetectAndStoreActor() was not called.
func GetActorID() string {
	return globalActorID
}

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() context.Context {
	ctx := context.Background()
	if globalActorID != "" {
		return ctxutil.WithActorID(ctx, globalActorID)
	}
	return ctx
}

// optionalBool returns a pointer to the flag value when the flag was set explicitly.
func optionalBool(changed bool, value bool) *bool {
	if !changed {
		return nil
	}
	return &value
}

// Command console is the agent-console client shell: it owns a persisted
// session, runs the identity orchestrator, and reports where the agent
// lands (login, organization setup, or the dashboard).
//
// Usage:
//
//	console                      resolve the persisted session
//	console -email a -password b sign in first, then resolve
//	console -logout              revoke and clear the persisted session
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/YodHeVauHe/CallCenterX/internal/audit"
	"github.com/YodHeVauHe/CallCenterX/internal/bootstrap"
	"github.com/YodHeVauHe/CallCenterX/internal/cache"
	"github.com/YodHeVauHe/CallCenterX/internal/config"
	"github.com/YodHeVauHe/CallCenterX/internal/logging"
	"github.com/YodHeVauHe/CallCenterX/internal/orchestrator"
	"github.com/YodHeVauHe/CallCenterX/internal/routing"
	"github.com/YodHeVauHe/CallCenterX/internal/session"
)

func main() {
	email := flag.String("email", "", "sign in with this email before resolving")
	password := flag.String("password", "", "password for -email")
	logout := flag.Bool("logout", false, "revoke and clear the persisted session")
	sessionFile := flag.String("session-file", "", "override the session file location")
	flag.Parse()

	cfg := config.MustLoad()
	logger := logging.New(cfg.ServiceName+"-console", cfg.LogLevel, cfg.Environment)

	ctx := context.Background()
	runtime, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap runtime")
	}
	defer runtime.Close(ctx)

	var persist session.Persistence
	if *sessionFile != "" {
		persist = session.NewFileStoreAt(*sessionFile)
	} else {
		persist, err = session.NewFileStore(cfg.ServiceName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open session storage")
		}
	}

	sessions := session.NewStore(runtime.Backend, persist, logger)
	sessions.Load(ctx)

	if *logout {
		held := sessions.Held()
		if err := sessions.SignOut(ctx); err != nil {
			logger.Warn().Err(err).Msg("backend sign-out failed, local session cleared anyway")
		}
		if held != nil {
			if err := runtime.Cache.Delete(ctx, cache.TokenSignature(held.AccessToken)); err != nil {
				logger.Warn().Err(err).Msg("failed to invalidate cached identity")
			}
			event := audit.NewEvent(audit.ActionLogout, held.Subject)
			event.Email = held.Email
			_ = runtime.Audit.Emit(ctx, event)
		}
		fmt.Println("signed out")
		return
	}

	// Sign in before the orchestrator starts so its first cycle resolves
	// the fresh session.
	if *email != "" {
		if _, err := sessions.SignIn(ctx, *email, *password); err != nil {
			logger.Fatal().Err(err).Msg("sign-in failed")
		}
	}

	orch := orchestrator.New(orchestrator.Options{
		Sessions:    sessions,
		Profiles:    runtime.Profiles,
		Memberships: runtime.Memberships,
		Logger:      logger,
		CallTimeout: cfg.CallTimeout,
	})
	defer orch.Dispose()

	ready := make(chan orchestrator.Snapshot, 4)
	unsubscribe := orch.Subscribe(func(snap orchestrator.Snapshot) {
		if snap.State == orchestrator.StateReady {
			select {
			case ready <- snap:
			default:
			}
		}
	})
	defer unsubscribe()

	orch.Init(ctx)

	select {
	case snap := <-ready:
		report(snap)
	case <-time.After(3 * cfg.CallTimeout):
		logger.Fatal().Msg("identity resolution did not finish")
	}
}

func report(snap orchestrator.Snapshot) {
	target := routing.Landing(snap.Identity)
	if snap.Identity == nil {
		fmt.Printf("no session; route: %s\n", target)
		os.Exit(0)
	}
	fmt.Printf("signed in as %s <%s>\n", snap.Identity.Name, snap.Identity.Email)
	for _, org := range snap.Identity.Organizations {
		fmt.Printf("  organization: %s (%s)\n", org.Name, org.Slug)
	}
	fmt.Printf("route: %s\n", target)
}

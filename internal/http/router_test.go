package http

import (
	"reflect"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/worklance/backend/internal/config"
	"github.com/worklance/backend/internal/http/handlers"
)

func handlerPtr(h fiber.Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

func lastHandler(t *testing.T, app *fiber.App, method, path string) fiber.Handler {
	t.Helper()
	for _, r := range app.GetRoutes() {
		if r.Method == method && r.Path == path && len(r.Handlers) > 0 {
			return r.Handlers[len(r.Handlers)-1]
		}
	}
	t.Fatalf("route %s %s is not registered", method, path)
	return nil
}

func TestSetupRouter_EscrowStatusServesMirrorSnapshot(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test", APIPort: "3000"}
	log := zap.NewNop()

	escrowHandler := handlers.NewEscrowHandler(nil, log)
	app := fiber.New()
	SetupRouter(app, cfg, log, nil,
		handlers.NewAuthHandler(nil, nil, cfg, log),
		handlers.NewJobHandler(nil, nil, nil, nil, log),
		escrowHandler,
		handlers.NewMilestoneHandler(nil, log),
		handlers.NewAdminHandler(nil, nil, nil, nil, log),
		handlers.NewWSHub(cfg, nil, log),
	)

	// The status route returns the converged mirror view, never a live
	// chain read.
	status := lastHandler(t, app, fiber.MethodGet, "/api/v1/escrow/status/:jobId")
	if handlerPtr(status) != handlerPtr(escrowHandler.Status) {
		t.Error("/escrow/status/:jobId must serve the mirror snapshot")
	}
	if handlerPtr(status) == handlerPtr(escrowHandler.LedgerStatus) {
		t.Error("/escrow/status/:jobId must not serve the live ledger read")
	}

	ledgerRoute := lastHandler(t, app, fiber.MethodGet, "/api/v1/escrow/ledger/:jobId")
	if handlerPtr(ledgerRoute) != handlerPtr(escrowHandler.LedgerStatus) {
		t.Error("/escrow/ledger/:jobId must serve the live ledger read")
	}
}

package tokens

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	internalApp "github.com/felixgeelhaar/slotwise/internal/app"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/pkg/config"
)

func setupCLI(t *testing.T) *internalApp.Container {
	t.Helper()
	cfg := &config.Config{
		AppEnv:                 "test",
		DatabaseDriver:         "sqlite",
		SQLitePath:             filepath.Join(t.TempDir(), "slotwise.db"),
		BrokerBackend:          "memory",
		ReservationLockBackend: "database",
		DeliveryChannel:        "log",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	container, err := internalApp.NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(container.Close)

	cli.SetApp(cli.NewApp(container))
	t.Cleanup(func() { cli.SetApp(nil) })
	return container
}

func TestIssueToken(t *testing.T) {
	c := setupCLI(t)
	ctx := context.Background()

	var out bytes.Buffer
	issueCmd.SetOut(&out)
	issueCmd.SetContext(ctx)
	require.NoError(t, issueCmd.Flags().Set("ttl", "1h"))
	require.NoError(t, issueCmd.RunE(issueCmd, []string{"confirm_assignment", "12"}))

	token := strings.TrimSpace(out.String())
	require.NotEmpty(t, token)

	// Bound to the action and assignment it was issued for.
	assert.ErrorIs(t, c.ActionTokenRepo.Consume(ctx, token, domain.ActionRejectAssignment, 12), domain.ErrInvalidActionToken)
	assert.ErrorIs(t, c.ActionTokenRepo.Consume(ctx, token, domain.ActionConfirmAssignment, 13), domain.ErrInvalidActionToken)
	require.NoError(t, c.ActionTokenRepo.Consume(ctx, token, domain.ActionConfirmAssignment, 12))
	assert.ErrorIs(t, c.ActionTokenRepo.Consume(ctx, token, domain.ActionConfirmAssignment, 12), domain.ErrInvalidActionToken)
}

func TestIssueToken_RejectsBadArgs(t *testing.T) {
	setupCLI(t)
	issueCmd.SetContext(context.Background())

	assert.ErrorContains(t, issueCmd.RunE(issueCmd, []string{"delete_everything", "12"}), "unknown action")
	assert.ErrorContains(t, issueCmd.RunE(issueCmd, []string{"confirm_assignment", "-1"}), "invalid assignment id")
}

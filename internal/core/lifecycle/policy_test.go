package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptor/internal/core/appctx"
)

func TestPolicyWantsRollback(t *testing.T) {
	assert.False(t, Policy{}.wantsRollback())
	assert.True(t, Policy{Rollback: true}.wantsRollback())
	assert.True(t, Policy{Interactive: true}.wantsRollback())
	assert.True(t, Interactive(Policy{}).wantsRollback())
	// Interactive pins the flag even when the caller cleared it.
	assert.True(t, Interactive(Policy{Rollback: false}).Interactive)
}

func TestNewGuardRejectsNonBool(t *testing.T) {
	_, err := NewGuard(`database`)
	require.Error(t, err)
}

func TestNewGuardRejectsBadSyntax(t *testing.T) {
	_, err := NewGuard(`database ==`)
	require.Error(t, err)
}

func TestGuardEvaluation(t *testing.T) {
	guard, err := NewGuard(`database != "production" || login == "admin"`)
	require.NoError(t, err)

	ctx := context.Background()

	allowed, err := guard.AllowCommit(ctx, "staging", appctx.Identity{UserID: 7, Login: "jo"}, Policy{})
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = guard.AllowCommit(ctx, "production", appctx.Identity{UserID: 7, Login: "jo"}, Policy{})
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = guard.AllowCommit(ctx, "production", appctx.Identity{UserID: 1, Login: "admin"}, Policy{})
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestGuardEvaluationErrorDenies(t *testing.T) {
	guard, err := NewGuard(`1 / (uid - uid) == 1`)
	require.NoError(t, err)

	allowed, evalErr := guard.AllowCommit(context.Background(), "main", appctx.System(), Policy{})
	require.Error(t, evalErr)
	assert.False(t, allowed)
}

func TestRequirementDefaults(t *testing.T) {
	req := DefaultRequirement()
	assert.Equal(t, DatabaseRequired, req.Presence)
	assert.True(t, req.MustExist)
}

func TestPresenceString(t *testing.T) {
	assert.Equal(t, "required", DatabaseRequired.String())
	assert.Equal(t, "optional", DatabaseOptional.String())
	assert.Equal(t, "forbidden", DatabaseForbidden.String())
}

package service

import (
	"context"
	"testing"

	"transport-requisition/internal/model"
	"transport-requisition/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopUpWallet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.setBalance(h.requester.ID, "10")

	_, err := h.wallets.TopUp(ctx, TopUpRequest{UserID: h.requester.ID, Amount: fare("0")}, actorOf(h.officer))
	assert.True(t, apperror.IsValidation(err))

	_, err = h.wallets.TopUp(ctx, TopUpRequest{UserID: uuid.New(), Amount: fare("5")}, actorOf(h.officer))
	assert.True(t, apperror.IsNotFound(err))

	got, err := h.wallets.TopUp(ctx, TopUpRequest{UserID: h.requester.ID, Amount: fare("40.75")}, actorOf(h.officer))
	require.NoError(t, err)
	assert.Equal(t, "50.75", got.Balance.StringFixed(2))
	assert.Contains(t, h.store.lockedRows(), "user:"+h.requester.ID.String())
	assert.Equal(t, []string{model.ActionTopUpWallet}, h.store.auditActions())

	balance, err := h.wallets.Balance(ctx, h.requester.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.75", balance.Balance.StringFixed(2))
}

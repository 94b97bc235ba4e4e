package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBlocksInternalTrade(t *testing.T) {
	branch := uuid.New()
	other := uuid.New()

	tests := []struct {
		name         string
		blocked      bool
		ownBranch    *uuid.UUID
		counterparty uuid.UUID
		want         bool
	}{
		{"blocked and same branch", true, &branch, branch, true},
		{"blocked but different branch", true, &branch, other, false},
		{"not blocked, same branch", false, &branch, branch, false},
		{"not blocked, different branch", false, &branch, other, false},
		{"blocked but no own branch", true, nil, branch, false},
		{"not blocked, no own branch", false, nil, branch, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, BlocksInternalTrade(tt.blocked, tt.ownBranch, tt.counterparty))
		})
	}
}

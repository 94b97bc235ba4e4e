package domain

import "github.com/google/uuid"

// BlocksInternalTrade is the internal-trade guard: a trade is blocked only
// when the aggregate opted in to blocking and both parties sit on the same
// branch. A side with no branch recorded never blocks. The guard is evaluated
// on both sides of a prospective trade; either side blocking vetoes it.
func BlocksInternalTrade(blocked bool, ownBranch *uuid.UUID, counterpartyBranch uuid.UUID) bool {
	if !blocked || ownBranch == nil {
		return false
	}
	return *ownBranch == counterpartyBranch
}

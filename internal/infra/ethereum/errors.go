package ethereum

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nftcate/internal/domain"

	"github.com/ethereum/go-ethereum/rpc"
)

// JSON-RPC error code geth uses for reverted calls.
const revertErrorCode = 3

var rejectedMessages = []string{
	"execution reverted",
	"insufficient funds",
	"nonce too low",
	"intrinsic gas too low",
	"gas required exceeds allowance",
	"replacement transaction underpriced",
	"invalid sender",
}

// classify maps a node error onto the ledger sentinels: calls the node refused
// are rejected, everything else is treated as the node being unavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", domain.ErrRPCUnavailable, op, err)
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode {
		return fmt.Errorf("%w: %s: %v%s", domain.ErrRejected, op, err, revertData(err))
	}
	message := strings.ToLower(err.Error())
	for _, fragment := range rejectedMessages {
		if strings.Contains(message, fragment) {
			return fmt.Errorf("%w: %s: %v%s", domain.ErrRejected, op, err, revertData(err))
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrRPCUnavailable, op, err)
}

// sendError classifies a failed broadcast. Only an explicit node rejection
// proves the transaction was not accepted; anything else leaves the signed
// transaction possibly in the mempool, so the outcome is unknown.
func sendError(hash string, err error) error {
	classified := classify("send transaction", err)
	if errors.Is(classified, domain.ErrRejected) {
		return classified
	}
	return fmt.Errorf("%w: send transaction %s: %v", domain.ErrConfirmationTimeout, hash, err)
}

func revertData(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return fmt.Sprintf(" (data %v)", dataErr.ErrorData())
	}
	return ""
}

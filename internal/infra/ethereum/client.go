package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"nftcate/internal/domain"
	"nftcate/internal/observability/logger"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const defaultPollInterval = 2 * time.Second

// rpcClient is the slice of ethclient.Client the ledger uses.
type rpcClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Config struct {
	RPCURL          string
	ContractAddress string
	// ChainID is read from the node when zero.
	ChainID      int64
	PollInterval time.Duration
}

// Ledger submits certificate mints to an EVM chain. Transactions are built and
// hashed locally; only the digest is handed to key custody for signing.
type Ledger struct {
	rpc      rpcClient
	custody  domain.KeyCustody
	contract common.Address
	abi      abi.ABI
	chainID  *big.Int
	poll     time.Duration
	now      func() time.Time
}

// Dial connects to cfg.RPCURL and resolves the chain id.
func Dial(ctx context.Context, cfg Config, custody domain.KeyCustody) (*Ledger, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, errors.New("ETH_RPC_URL is required")
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	ledger, err := New(ctx, client, cfg, custody)
	if err != nil {
		client.Close()
		return nil, err
	}
	return ledger, nil
}

func New(ctx context.Context, client rpcClient, cfg Config, custody domain.KeyCustody) (*Ledger, error) {
	if client == nil {
		return nil, errors.New("ethereum rpc client is required")
	}
	if custody == nil {
		return nil, errors.New("key custody is required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("CONTRACT_ADDRESS %q is not an address", cfg.ContractAddress)
	}
	parsed, err := parseCertificateABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			return nil, classify("chain id", err)
		}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Ledger{
		rpc:      client,
		custody:  custody,
		contract: common.HexToAddress(cfg.ContractAddress),
		abi:      parsed,
		chainID:  chainID,
		poll:     poll,
		now:      time.Now,
	}, nil
}

func (l *Ledger) Submit(ctx context.Context, call domain.ContractCall, key domain.KeyRef) (domain.LedgerTransaction, error) {
	if call.Method != methodMint {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: unsupported method %s", domain.ErrRejected, call.Method)
	}
	if !common.IsHexAddress(call.Recipient) {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: recipient %q is not an address", domain.ErrRejected, call.Recipient)
	}
	fromHex, err := l.custody.Address(ctx, key)
	if err != nil {
		return domain.LedgerTransaction{}, signingError(err)
	}
	from := common.HexToAddress(fromHex)

	data, err := l.abi.Pack(methodMint, common.HexToAddress(call.Recipient), call.TokenURI)
	if err != nil {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: pack %s: %v", domain.ErrRejected, methodMint, err)
	}
	nonce, err := l.rpc.PendingNonceAt(ctx, from)
	if err != nil {
		return domain.LedgerTransaction{}, classify("pending nonce", err)
	}
	gasPrice, err := l.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return domain.LedgerTransaction{}, classify("gas price", err)
	}
	gas, err := l.rpc.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &l.contract, Data: data})
	if err != nil {
		return domain.LedgerTransaction{}, classify("estimate gas", err)
	}
	gas += gas / 5

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &l.contract,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signer := types.LatestSignerForChainID(l.chainID)
	sig, err := l.custody.SignDigest(ctx, key, signer.Hash(unsigned).Bytes())
	if err != nil {
		return domain.LedgerTransaction{}, signingError(err)
	}
	signed, err := unsigned.WithSignature(signer, sig)
	if err != nil {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: attach signature: %v", domain.ErrSigning, err)
	}
	if sender, err := types.Sender(signer, signed); err != nil || sender != from {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: signature does not recover issuer address", domain.ErrSigning)
	}
	tx := domain.LedgerTransaction{
		Hash:        signed.Hash().Hex(),
		Status:      domain.TxStatusSubmitted,
		From:        from.Hex(),
		Recipient:   common.HexToAddress(call.Recipient).Hex(),
		TokenURI:    call.TokenURI,
		SubmittedAt: l.now().UTC(),
	}
	if err := l.rpc.SendTransaction(ctx, signed); err != nil {
		err = sendError(tx.Hash, err)
		if errors.Is(err, domain.ErrRejected) {
			return domain.LedgerTransaction{}, err
		}
		// The hash is returned so the caller can record it and resume.
		logger.From(ctx).Warn("transaction broadcast outcome unknown",
			logger.TxHash(tx.Hash),
			zap.Uint64("nonce", nonce),
			logger.Err(err),
		)
		return tx, err
	}

	logger.From(ctx).Info("transaction broadcast",
		logger.TxHash(tx.Hash),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gas),
	)
	return tx, nil
}

// AwaitConfirmation polls for the receipt until it exists or ctx ends. Transient
// RPC errors while polling are logged and polling continues.
func (l *Ledger) AwaitConfirmation(ctx context.Context, tx domain.LedgerTransaction) (domain.LedgerTransaction, error) {
	hash := common.HexToHash(tx.Hash)
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		receipt, err := l.rpc.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return l.finalize(tx, receipt), nil
		case errors.Is(err, ethereum.NotFound):
		case ctx.Err() != nil:
		default:
			logger.From(ctx).Warn("receipt poll failed", logger.TxHash(tx.Hash), logger.Err(err))
		}
		select {
		case <-ctx.Done():
			return tx, fmt.Errorf("%w: %s: %v", domain.ErrConfirmationTimeout, tx.Hash, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Lookup reads a transaction by hash and decodes its mint arguments.
func (l *Ledger) Lookup(ctx context.Context, txHash string) (domain.LedgerTransaction, error) {
	hash := common.HexToHash(txHash)
	onchain, pending, err := l.rpc.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return domain.LedgerTransaction{}, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, txHash)
		}
		return domain.LedgerTransaction{}, classify("transaction by hash", err)
	}
	if onchain.To() == nil || *onchain.To() != l.contract {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: %s does not call the certificate contract", domain.ErrTransactionMismatch, txHash)
	}
	args, err := decodeMint(l.abi, onchain.Data())
	if err != nil {
		return domain.LedgerTransaction{}, fmt.Errorf("%w: %s: %v", domain.ErrTransactionMismatch, txHash, err)
	}
	tx := domain.LedgerTransaction{
		Hash:      onchain.Hash().Hex(),
		Status:    domain.TxStatusSubmitted,
		Recipient: args.Recipient.Hex(),
		TokenURI:  args.TokenURI,
	}
	if sender, err := types.Sender(types.LatestSignerForChainID(l.chainID), onchain); err == nil {
		tx.From = sender.Hex()
	}
	if pending {
		return tx, nil
	}
	receipt, err := l.rpc.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return tx, nil
		}
		return domain.LedgerTransaction{}, classify("transaction receipt", err)
	}
	return l.finalize(tx, receipt), nil
}

// Query calls a read-only contract method and returns its decoded outputs.
func (l *Ledger) Query(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := l.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := l.rpc.CallContract(ctx, ethereum.CallMsg{To: &l.contract, Data: data}, nil)
	if err != nil {
		return nil, classify("call "+method, err)
	}
	values, err := l.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", domain.ErrRPCUnavailable, method, err)
	}
	return values, nil
}

func (l *Ledger) IsRegisteredIssuer(ctx context.Context, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, nil
	}
	values, err := l.Query(ctx, methodIsInstitution, common.HexToAddress(address))
	if err != nil {
		return false, err
	}
	if len(values) != 1 {
		return false, fmt.Errorf("%w: %s returned %d values", domain.ErrRPCUnavailable, methodIsInstitution, len(values))
	}
	registered, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s returned %T", domain.ErrRPCUnavailable, methodIsInstitution, values[0])
	}
	return registered, nil
}

func (l *Ledger) NormalizeAddress(address string) (string, bool) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", false
	}
	return common.HexToAddress(address).Hex(), true
}

func (l *Ledger) finalize(tx domain.LedgerTransaction, receipt *types.Receipt) domain.LedgerTransaction {
	tx.Status = domain.TxStatusFailed
	if receipt.Status == types.ReceiptStatusSuccessful {
		tx.Status = domain.TxStatusConfirmed
	}
	if receipt.BlockNumber != nil {
		tx.BlockNumber = receipt.BlockNumber.Uint64()
	}
	tx.TokenID = l.mintedTokenID(receipt)
	tx.FinalizedAt = l.now().UTC()
	if raw, err := json.Marshal(receipt); err == nil {
		tx.Receipt = raw
	}
	return tx
}

// mintedTokenID reads the token id from the contract's ERC-721 Transfer event.
func (l *Ledger) mintedTokenID(receipt *types.Receipt) string {
	for _, entry := range receipt.Logs {
		if entry == nil || entry.Address != l.contract || len(entry.Topics) != 4 {
			continue
		}
		if entry.Topics[0] != transferTopic {
			continue
		}
		return new(big.Int).SetBytes(entry.Topics[3].Bytes()).String()
	}
	return ""
}

func signingError(err error) error {
	if errors.Is(err, domain.ErrSigning) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrSigning, err)
}

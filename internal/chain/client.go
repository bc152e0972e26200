package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"tapcoin/internal/config"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const receiptPollInterval = 2 * time.Second

// Client submits withdrawal transactions to the payout contract with the
// server-held signer key and waits for the configured confirmation count.
// The dialed connection and parsed key are cached per config fingerprint and
// rebuilt only when the configuration changes.
type Client struct {
	cfg config.ChainConfig
	log *zap.Logger

	mu          sync.Mutex
	fingerprint string
	eth         *ethclient.Client
	key         *ecdsa.PrivateKey
	contractABI abi.ABI
	methodName  string
	withAddress bool
}

func NewClient(cfg config.ChainConfig, log *zap.Logger) *Client {
	return &Client{cfg: cfg, log: log}
}

// Configured reports whether the adapter has everything it needs to submit a
// transaction.
func (c *Client) Configured() error {
	switch {
	case c.cfg.RPCURL == "":
		return errors.New("missing RPC URL")
	case c.cfg.PrivateKey == "":
		return errors.New("missing withdrawer key")
	case c.cfg.ContractAddress == "":
		return errors.New("missing contract address")
	}
	return nil
}

// Submit sends withdraw(to, amount) (or withdraw(amount) when the configured
// method takes no address) and blocks until the transaction has the
// configured number of confirmations. Any error, including the confirmation
// timeout, means the settlement must be treated as failed.
func (c *Client) Submit(ctx context.Context, toAddress string, amount float64) (string, error) {
	if err := c.Configured(); err != nil {
		return "", err
	}
	if !common.IsHexAddress(toAddress) {
		return "", fmt.Errorf("invalid destination address: %s", toAddress)
	}

	if err := c.ensureHandle(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	scaled, err := scaleAmount(amount, c.cfg.CoinDecimals)
	if err != nil {
		return "", err
	}

	var args []interface{}
	if c.withAddress {
		args = []interface{}{common.HexToAddress(toAddress), scaled}
	} else {
		args = []interface{}{scaled}
	}
	data, err := c.contractABI.Pack(c.methodName, args...)
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", c.cfg.MethodSignature, err)
	}

	from := crypto.PubkeyToAddress(c.key.PublicKey)
	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}
	chainID, err := c.eth.NetworkID(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch chain id: %w", err)
	}

	contract := common.HexToAddress(c.cfg.ContractAddress)
	tx := types.NewTransaction(nonce, contract, big.NewInt(0), c.cfg.GasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	txHash := signedTx.Hash()
	c.log.Info("withdrawal transaction sent",
		zap.String("tx_hash", txHash.Hex()),
		zap.String("to", toAddress),
		zap.Float64("amount", amount))

	if err := c.waitConfirmed(ctx, txHash); err != nil {
		return "", err
	}
	return txHash.Hex(), nil
}

// ensureHandle builds (or rebuilds) the cached connection, key and ABI when
// the config fingerprint changed.
func (c *Client) ensureHandle() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fingerprint := strings.Join([]string{c.cfg.RPCURL, c.cfg.ContractAddress, c.cfg.PrivateKey, c.cfg.MethodSignature}, "|")
	if c.eth != nil && c.fingerprint == fingerprint {
		return nil
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.cfg.PrivateKey, "0x"))
	if err != nil {
		return fmt.Errorf("invalid withdrawer key: %w", err)
	}

	name, withAddress, err := parseMethodSignature(c.cfg.MethodSignature)
	if err != nil {
		return err
	}
	parsed, err := abi.JSON(strings.NewReader(methodABI(name, withAddress)))
	if err != nil {
		return fmt.Errorf("build contract ABI: %w", err)
	}

	eth, err := ethclient.Dial(c.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.RPCURL, err)
	}

	if c.eth != nil {
		c.eth.Close()
	}
	c.eth = eth
	c.key = key
	c.contractABI = parsed
	c.methodName = name
	c.withAddress = withAddress
	c.fingerprint = fingerprint
	return nil
}

// waitConfirmed polls for the receipt until the transaction is buried under
// the configured number of confirmations or the context expires.
func (c *Client) waitConfirmed(ctx context.Context, txHash common.Hash) error {
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted", txHash.Hex())
			}
			head, err := c.eth.BlockNumber(ctx)
			if err != nil {
				return fmt.Errorf("fetch head block: %w", err)
			}
			confirmations := head - receipt.BlockNumber.Uint64() + 1
			if confirmations >= c.cfg.Confirmations {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation wait for %s: %w", txHash.Hex(), ctx.Err())
		case <-time.After(receiptPollInterval):
		}
	}
}

// parseMethodSignature accepts "name(address,uint256)" or "name(uint256)".
func parseMethodSignature(signature string) (name string, withAddress bool, err error) {
	open := strings.Index(signature, "(")
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return "", false, fmt.Errorf("invalid method signature: %s", signature)
	}
	name = signature[:open]
	params := signature[open+1 : len(signature)-1]
	switch params {
	case "address,uint256":
		return name, true, nil
	case "uint256":
		return name, false, nil
	}
	return "", false, fmt.Errorf("unsupported method signature: %s", signature)
}

func methodABI(name string, withAddress bool) string {
	if withAddress {
		return fmt.Sprintf(`[{"name":%q,"type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}]}]`, name)
	}
	return fmt.Sprintf(`[{"name":%q,"type":"function","inputs":[{"name":"amount","type":"uint256"}]}]`, name)
}

// scaleAmount converts a coin amount to the contract's integer representation.
func scaleAmount(amount float64, decimals int) (*big.Int, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be > 0, got %g", amount)
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	scaled := new(big.Float).Mul(big.NewFloat(amount), scale)

	result := new(big.Int)
	scaled.Int(result)
	return result, nil
}

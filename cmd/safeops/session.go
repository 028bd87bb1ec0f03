package main

import (
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	safe4337 "github.com/lifenetwork-ai/safe4337-kit"
	"github.com/urfave/cli/v2"
)

const addressCacheSize = 128

// session is what a task works with: the environment, a connected client
// and the address book.
type session struct {
	env     *Env
	client  *safe4337.Client
	network *safe4337.Network
	book    *safe4337.AddressBook
	payment safe4337.PaymentMode
	logger  *slog.Logger

	salt *big.Int
}

func loadNetwork(c *cli.Context) (*safe4337.Network, error) {
	path := c.String(networkFileFlag.Name)
	if path == "" {
		return safe4337.Sepolia(), nil
	}
	network, err := safe4337.LoadNetwork(path)
	if err != nil {
		return nil, usageError("%v", err)
	}
	return network, nil
}

// newSession validates the environment and connects to the node.
func newSession(c *cli.Context, needSigner bool) (*session, error) {
	logger := slog.Default()
	network, err := loadNetwork(c)
	if err != nil {
		return nil, err
	}
	env, report := ValidateEnv(os.Getenv)
	for _, w := range report.Warnings {
		logger.Warn(w)
	}
	if err := report.Fatal(needSigner); err != nil {
		return nil, usageError("%v", err)
	}
	payment, err := safe4337.ParsePaymentMode(c.String(paymentFlag.Name))
	if err != nil {
		return nil, usageError("%v", err)
	}
	for _, w := range env.paymentWarnings(payment) {
		logger.Warn(w)
	}

	config := &safe4337.Config{
		NodeUrl:      env.RpcUrl,
		BundlerUrl:   env.bundlerUrl(network, payment == safe4337.PaymentSponsored),
		PaymasterUrl: env.paymasterUrl(network),
		Network:      network,
		Payment:      payment,
		PaymentToken: network.TestToken,
		Executors:    safe4337.NewRoundRobinSignerProvider(env.Executors),
		Logger:       logger,
	}
	if token := c.String(paymentTokenFlag.Name); token != "" {
		if config.PaymentToken, err = parseAddress("payment-token", token); err != nil {
			return nil, err
		}
	}
	if payment == safe4337.PaymentVerifying {
		if env.VerifyingKey == nil {
			return nil, usageError("--payment verifying needs %s", EnvVerifyingKey)
		}
		pm, err := parseAddress("paymaster", c.String(paymasterFlag.Name))
		if err != nil {
			return nil, err
		}
		config.PaymasterAddress = &pm
		config.VerifyingSigner = env.VerifyingKey
	}

	cache, err := safe4337.NewLRUCache(addressCacheSize)
	if err != nil {
		return nil, err
	}
	client, err := safe4337.NewClient(config, cache)
	if err != nil {
		return nil, err
	}
	return &session{
		env:     env,
		client:  client,
		network: network,
		book:    safe4337.NewAddressBook(c.String(docsDirFlag.Name)),
		payment: payment,
		logger:  logger,
	}, nil
}

func (s *session) Close() {
	s.client.Close()
}

func (s *session) signer() *ecdsa.PrivateKey {
	return s.env.PrivateKey
}

func (s *session) owner() common.Address {
	return crypto.PubkeyToAddress(s.env.PrivateKey.PublicKey)
}

// saltNonce is the salt nonce of the command. It is read once so that the
// Safe address and the init code of a user operation use the same salt.
func (s *session) saltNonce(c *cli.Context) (*big.Int, error) {
	if s.salt != nil {
		return s.salt, nil
	}
	salt, err := readSaltNonce(c)
	if err != nil {
		return nil, err
	}
	s.salt = salt
	return salt, nil
}

// readSaltNonce reads --salt-nonce, or a time based value with --random-salt.
func readSaltNonce(c *cli.Context) (*big.Int, error) {
	if c.Bool(randomSaltFlag.Name) {
		return big.NewInt(time.Now().UnixMilli()), nil
	}
	n, ok := new(big.Int).SetString(c.String(saltNonceFlag.Name), 0)
	if !ok || n.Sign() < 0 {
		return nil, usageError("invalid salt-nonce %q", c.String(saltNonceFlag.Name))
	}
	return n, nil
}

// safeAddress returns the Safe of the command: --safe, the address book, or
// the prediction for the owner.
func (s *session) safeAddress(c *cli.Context) (common.Address, error) {
	if raw := c.String("safe"); raw != "" {
		return parseAddress("safe", raw)
	}
	if addr, err := s.book.Read(safe4337.SafeFile); err == nil {
		return addr, nil
	}
	if s.env.PrivateKey == nil {
		return common.Address{}, usageError("no safe given and %s is not set", EnvPrivateKey)
	}
	salt, err := s.saltNonce(c)
	if err != nil {
		return common.Address{}, err
	}
	return s.client.GetAccount(c.Context, s.owner(), salt)
}

func parseAddress(name, raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, usageError("invalid %s address %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseHash(name, raw string) (common.Hash, error) {
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, usageError("invalid %s %q", name, raw)
	}
	return common.BytesToHash(b), nil
}

func parseAmount(raw string, decimals uint8) (*big.Int, error) {
	amount, err := safe4337.ParseUnits(raw, decimals)
	if err != nil {
		return nil, usageError("invalid amount %q: %v", raw, err)
	}
	return amount, nil
}

func printf(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.Writer, format, args...)
}

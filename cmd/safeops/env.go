package main

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	safe4337 "github.com/lifenetwork-ai/safe4337-kit"
)

// Environment variables read by the tasks.
const (
	EnvPrivateKey    = "PRIVATE_KEY"
	EnvRpcUrl        = "RPC_URL"
	EnvGelatoApiKey  = "GELATO_API_KEY"
	EnvBundlerUrl    = "BUNDLER_URL"
	EnvPaymasterUrl  = "PAYMASTER_URL"
	EnvVerifyingKey  = "PAYMASTER_VERIFYING_KEY"
	EnvExecutorKeys  = "EXECUTOR_KEYS"
	envLocalFileName = ".env.local"
)

var errMissingPrivateKey = errors.New(EnvPrivateKey + " is not set")

// LoadEnv reads .env and then .env.local, the latter overriding.
// Missing files are ignored.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	if err := godotenv.Overload(envLocalFileName); err != nil {
		slog.Debug("no .env.local file loaded", "error", err)
	}
}

// Env is the validated environment.
type Env struct {
	PrivateKey   *ecdsa.PrivateKey
	RpcUrl       string
	GelatoApiKey string
	BundlerUrl   string
	PaymasterUrl string
	VerifyingKey *ecdsa.PrivateKey
	Executors    []*ecdsa.PrivateKey
}

// EnvReport separates problems that stop a task from the ones it can live with.
type EnvReport struct {
	Errors   []error
	Warnings []string
}

// ValidateEnv reads the environment through getenv.
func ValidateEnv(getenv func(string) string) (*Env, *EnvReport) {
	env := &Env{
		RpcUrl:       strings.TrimSpace(getenv(EnvRpcUrl)),
		GelatoApiKey: strings.TrimSpace(getenv(EnvGelatoApiKey)),
		BundlerUrl:   strings.TrimSpace(getenv(EnvBundlerUrl)),
		PaymasterUrl: strings.TrimSpace(getenv(EnvPaymasterUrl)),
	}
	report := &EnvReport{}

	if raw := strings.TrimSpace(getenv(EnvPrivateKey)); raw == "" {
		report.Errors = append(report.Errors, errMissingPrivateKey)
	} else if key, err := safe4337.ParsePrivateKey(raw); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("%s is malformed: %w", EnvPrivateKey, err))
	} else {
		env.PrivateKey = key
	}

	if env.RpcUrl == "" {
		report.Warnings = append(report.Warnings, EnvRpcUrl+" is not set, using the network default")
	} else if err := validateUrl(env.RpcUrl); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("%s is malformed: %w", EnvRpcUrl, err))
	}

	if env.GelatoApiKey == "" && (env.BundlerUrl == "" || env.PaymasterUrl == "") {
		report.Warnings = append(report.Warnings, EnvGelatoApiKey+" is not set, bundler and paymaster tasks will fail")
	}
	for _, v := range [][2]string{{EnvBundlerUrl, env.BundlerUrl}, {EnvPaymasterUrl, env.PaymasterUrl}} {
		if v[1] == "" {
			continue
		}
		if err := validateUrl(v[1]); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("%s is malformed: %w", v[0], err))
		}
	}

	if raw := strings.TrimSpace(getenv(EnvVerifyingKey)); raw != "" {
		key, err := safe4337.ParsePrivateKey(raw)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("%s is malformed: %w", EnvVerifyingKey, err))
		}
		env.VerifyingKey = key
	}
	if raw := strings.TrimSpace(getenv(EnvExecutorKeys)); raw != "" {
		keys, err := safe4337.ParseSignerKeys(raw)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("%s is malformed: %w", EnvExecutorKeys, err))
		}
		env.Executors = keys
	}
	return env, report
}

func validateUrl(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// Fatal returns the first error that stops a task. A missing private key only
// matters to tasks that sign.
func (r *EnvReport) Fatal(needSigner bool) error {
	for _, err := range r.Errors {
		if !needSigner && errors.Is(err, errMissingPrivateKey) {
			continue
		}
		return err
	}
	return nil
}

// bundlerUrl prefers BUNDLER_URL over the Gelato endpoint of the chain.
func (e *Env) bundlerUrl(network *safe4337.Network, sponsored bool) string {
	if e.BundlerUrl != "" {
		return e.BundlerUrl
	}
	if e.GelatoApiKey == "" {
		return ""
	}
	return safe4337.GelatoBundlerUrl(network.GelatoUrl, network.ChainID, e.GelatoApiKey, sponsored)
}

// paymentWarnings lists settings that do not fit the payment mode.
func (e *Env) paymentWarnings(payment safe4337.PaymentMode) []string {
	var warnings []string
	if payment == safe4337.PaymentSponsored && e.BundlerUrl != "" {
		warnings = append(warnings, EnvBundlerUrl+" overrides the Gelato bundler: --payment sponsored is not forwarded and fees are set to zero")
	}
	return warnings
}

func (e *Env) paymasterUrl(network *safe4337.Network) string {
	if e.PaymasterUrl != "" {
		return e.PaymasterUrl
	}
	if e.GelatoApiKey == "" {
		return ""
	}
	return safe4337.GelatoPaymasterUrl(network.GelatoUrl, network.ChainID, e.GelatoApiKey)
}

/*
Package config reads bank settings from YAML files.

Example:

	owner: NbUgTSFvPmsRxmGeWpuuGeJUoRoi6PErcM
	base_oracle: 0x7f3c1a5d6f0a4e0c9e5f3e1b2a4c6d8e0f1a2b3c
	bank_cap: "1000000"
	minimum_deposit: "0.001"
	withdrawal_ceiling_usd: "1000"
	price_staleness: 1h
	logger:
	  level: info

Amounts are decimal strings with up to 18 fractional digits. Bank cap and
minimum deposit are expressed in the base asset, the withdrawal ceiling is in
USD. Identities are Neo addresses or little-endian hex script hashes.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/nspcc-dev/multibank/bank"
	"github.com/nspcc-dev/multibank/convert"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvLogLevel overrides Logger.Level of the loaded file.
const EnvLogLevel = "MULTIBANK_LOG_LEVEL"

// Amount is a non-negative fixed-point number with 18 fractional digits.
type Amount struct {
	v *uint256.Int
}

// ParseAmount parses decimal string into Amount.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}

	if d.IsNegative() {
		return Amount{}, fmt.Errorf("negative amount %s", d)
	}

	scaled := d.Shift(convert.CanonicalDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, fmt.Errorf("amount %s has more than %d fractional digits", d, convert.CanonicalDecimals)
	}

	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return Amount{}, fmt.Errorf("amount %s exceeds 256 bits", d)
	}

	return Amount{v: v}, nil
}

// Int returns fixed-point value, nil for unset Amount.
func (a Amount) Int() *uint256.Int {
	if a.v == nil {
		return nil
	}

	return a.v.Clone()
}

// IsSet checks whether the value was specified.
func (a Amount) IsSet() bool {
	return a.v != nil
}

// String returns decimal representation.
func (a Amount) String() string {
	if a.v == nil {
		return ""
	}

	return decimal.NewFromBigInt(a.v.ToBig(), -convert.CanonicalDecimals).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	v, err := ParseAmount(s)
	if err != nil {
		return err
	}

	*a = v
	return nil
}

// Hash is an identity given as a Neo address or LE hex script hash.
type Hash struct {
	util.Uint160
}

// ParseHash parses Neo address or LE hex script hash with optional 0x
// prefix.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimSpace(s)

	if h, err := address.StringToUint160(s); err == nil {
		return Hash{h}, nil
	}

	h, err := util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Hash{}, fmt.Errorf("%q is neither address nor script hash", s)
	}

	return Hash{h}, nil
}

// IsZero checks whether the identity is unset.
func (h Hash) IsZero() bool {
	return h.Equals(util.Uint160{})
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *Hash) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	v, err := ParseHash(s)
	if err != nil {
		return err
	}

	*h = v
	return nil
}

// Config is the bank configuration.
type Config struct {
	Owner      Hash `yaml:"owner"`
	BaseOracle Hash `yaml:"base_oracle"`

	BankCap              Amount        `yaml:"bank_cap"`
	MinimumDeposit       Amount        `yaml:"minimum_deposit"`
	WithdrawalCeilingUSD Amount        `yaml:"withdrawal_ceiling_usd"`
	PriceStaleness       time.Duration `yaml:"price_staleness"`

	Logger Logger `yaml:"logger"`
}

// Load reads and validates configuration file. Environment variables take
// precedence over the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode YAML: %w", err)
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.Logger.Level = lvl
	}
}

// Validate checks that all required values are set and consistent.
func (c *Config) Validate() error {
	switch {
	case c.Owner.IsZero():
		return errors.New("missing owner")
	case c.BaseOracle.IsZero():
		return errors.New("missing base oracle")
	case !c.BankCap.IsSet() || c.BankCap.v.IsZero():
		return errors.New("missing bank cap")
	case !c.WithdrawalCeilingUSD.IsSet() || c.WithdrawalCeilingUSD.v.IsZero():
		return errors.New("missing withdrawal ceiling")
	case c.PriceStaleness < 0:
		return fmt.Errorf("negative price staleness %s", c.PriceStaleness)
	}

	if c.MinimumDeposit.IsSet() && c.MinimumDeposit.v.Gt(c.BankCap.v) {
		return fmt.Errorf("minimum deposit %s exceeds bank cap %s", c.MinimumDeposit, c.BankCap)
	}

	if _, err := c.Logger.level(); err != nil {
		return err
	}

	return nil
}

// Params returns bank parameters.
func (c *Config) Params() bank.Params {
	return bank.Params{
		BankCap:           c.BankCap.Int(),
		MinimumDeposit:    c.MinimumDeposit.Int(),
		WithdrawalCeiling: c.WithdrawalCeilingUSD.Int(),
		PriceStaleness:    c.PriceStaleness,
	}
}

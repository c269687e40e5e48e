// Package config assembles the machine configuration from built-in defaults, an
// optional TOML catalog file and the environment. CLI flags are applied last by main.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Zhima-Mochi/juice-vending/internal/domain/cash"
	"github.com/Zhima-Mochi/juice-vending/internal/domain/inventory"
	"github.com/Zhima-Mochi/juice-vending/internal/pkg/money"
	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

const (
	EnvServiceName = "SERVICE_NAME"
	EnvEnv         = "ENV"
	EnvConfigPath  = "VENDING_CONFIG"

	DefaultServiceName       = "juice-vending"
	DefaultEnv               = "dev"
	DefaultLogLevel          = "warn"
	DefaultCurrency          = "Php."
	DefaultLowStockThreshold = 5
)

var ErrInvalid = errors.New("config: invalid")

type Product struct {
	ID    int
	Name  string
	Price decimal.Decimal
	Stock int
}

type Config struct {
	ServiceName string
	Env         string
	LogLevel    string
	StatusAddr  string
	TraceFile   string

	Currency          string
	OpeningBalance    decimal.Decimal
	LowStockThreshold int
	Products          []Product
}

// Default reproduces the stock machine: four juices, 50 units each, 5000.00 in the vault.
func Default() Config {
	return Config{
		ServiceName:       DefaultServiceName,
		Env:               DefaultEnv,
		LogLevel:          DefaultLogLevel,
		Currency:          DefaultCurrency,
		OpeningBalance:    cash.DefaultOpeningBalance,
		LowStockThreshold: DefaultLowStockThreshold,
		Products: []Product{
			{ID: 1, Name: "Apple Juice", Price: decimal.New(7000, -2), Stock: inventory.DefaultQuantity},
			{ID: 2, Name: "Orange Juice", Price: decimal.New(6000, -2), Stock: inventory.DefaultQuantity},
			{ID: 3, Name: "Mango Juice", Price: decimal.New(7500, -2), Stock: inventory.DefaultQuantity},
			{ID: 4, Name: "Punch Juice", Price: decimal.New(8000, -2), Stock: inventory.DefaultQuantity},
		},
	}
}

type productFile struct {
	Name  string `toml:"name"`
	Price any    `toml:"price"`
	Stock *int   `toml:"stock"`
}

type configFile struct {
	Currency          string        `toml:"currency"`
	OpeningBalance    any           `toml:"opening_balance"`
	LowStockThreshold *int          `toml:"low_stock_threshold"`
	Products          []productFile `toml:"products"`
}

// Load returns the defaults overlaid with the file at path (skipped when path is
// empty) and then the environment. getenv is usually os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path == "" {
		path = getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.ApplyTOML(data); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if v := getenv(EnvServiceName); v != "" {
		cfg.ServiceName = v
	}
	if v := getenv(EnvEnv); v != "" {
		cfg.Env = v
	}
	return cfg, cfg.Validate()
}

// ApplyTOML overlays a catalog document. A non-empty products list replaces the
// default catalog; ids follow list order starting at 1.
func (c *Config) ApplyTOML(data []byte) error {
	var file configFile
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if file.Currency != "" {
		c.Currency = file.Currency
	}
	if file.OpeningBalance != nil {
		amount, err := toAmount(file.OpeningBalance)
		if err != nil {
			return fmt.Errorf("%w: opening_balance: %w", ErrInvalid, err)
		}
		c.OpeningBalance = amount
	}
	if file.LowStockThreshold != nil {
		c.LowStockThreshold = *file.LowStockThreshold
	}
	if len(file.Products) > 0 {
		products := make([]Product, 0, len(file.Products))
		for i, p := range file.Products {
			price, err := toAmount(p.Price)
			if err != nil {
				return fmt.Errorf("%w: products[%d].price: %w", ErrInvalid, i, err)
			}
			stock := inventory.DefaultQuantity
			if p.Stock != nil {
				stock = *p.Stock
			}
			products = append(products, Product{
				ID:    i + 1,
				Name:  strings.TrimSpace(p.Name),
				Price: price,
				Stock: stock,
			})
		}
		c.Products = products
	}
	return nil
}

// SetOpeningBalance parses raw as the vault's opening balance.
func (c *Config) SetOpeningBalance(raw string) error {
	amount, err := money.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: opening balance: %w", ErrInvalid, err)
	}
	c.OpeningBalance = amount
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if len(c.Products) == 0 {
		errs = append(errs, errors.New("at least one product is required"))
	}
	for _, p := range c.Products {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("product %d: name is required", p.ID))
		}
		if p.Price.IsNegative() {
			errs = append(errs, fmt.Errorf("product %d: price must be zero or greater", p.ID))
		}
		if p.Stock < 0 {
			errs = append(errs, fmt.Errorf("product %d: stock must be zero or greater", p.ID))
		}
	}
	if c.OpeningBalance.IsNegative() {
		errs = append(errs, errors.New("opening balance must be zero or greater"))
	}
	if c.LowStockThreshold < 0 {
		errs = append(errs, errors.New("low stock threshold must be zero or greater"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Machine builds the catalog and vault described by c.
func (c Config) Machine() ([]*inventory.Product, *cash.Vault, error) {
	products := make([]*inventory.Product, 0, len(c.Products))
	for _, p := range c.Products {
		slot, err := inventory.NewSlot(p.Stock, p.Price)
		if err != nil {
			return nil, nil, fmt.Errorf("config: product %d: %w", p.ID, err)
		}
		product, err := inventory.NewProduct(p.ID, p.Name, slot)
		if err != nil {
			return nil, nil, fmt.Errorf("config: product %d: %w", p.ID, err)
		}
		products = append(products, product)
	}
	vault, err := cash.NewVault(c.OpeningBalance)
	if err != nil {
		return nil, nil, fmt.Errorf("config: vault: %w", err)
	}
	return products, vault, nil
}

// toAmount accepts amounts written as TOML strings, integers or floats.
func toAmount(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case string:
		return money.Parse(x)
	case int64:
		return money.Parse(strconv.FormatInt(x, 10))
	case float64:
		return money.Parse(strconv.FormatFloat(x, 'f', -1, 64))
	case nil:
		return decimal.Zero, errors.New("missing amount")
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
	}
}

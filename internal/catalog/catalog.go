// Package catalog serves the read-only product and command listings.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sileshop/backend/internal/domain"
	"gopkg.in/yaml.v3"
)

// Catalog is an immutable snapshot of products and commands. It is safe
// for concurrent use.
type Catalog struct {
	products []domain.Product
	byID     map[string]domain.Product
	commands []domain.Command
}

// New builds a catalog from the given listings. Products with an empty id
// or a non-positive price are rejected.
func New(products []domain.Product, commands []domain.Command) (*Catalog, error) {
	c := &Catalog{
		products: make([]domain.Product, 0, len(products)),
		byID:     make(map[string]domain.Product, len(products)),
		commands: append([]domain.Command(nil), commands...),
	}
	for _, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("product %q: missing id", p.Name)
		}
		if p.MonthlyPriceCents <= 0 {
			return nil, fmt.Errorf("product %s: monthlyPriceCents must be positive", p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("product %s: duplicate id", p.ID)
		}
		c.byID[p.ID] = p
		c.products = append(c.products, p)
	}
	return c, nil
}

// Load reads the product and command files. A missing product file falls
// back to DefaultProducts; a missing command file yields no commands.
func Load(productsPath, commandsPath string) (*Catalog, error) {
	var products []domain.Product
	if err := readListing(productsPath, &products); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load products: %w", err)
		}
		log.Warn().Str("path", productsPath).Msg("Product file not found, using built-in products")
		products = DefaultProducts()
	}

	var commands []domain.Command
	if err := readListing(commandsPath, &commands); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load commands: %w", err)
		}
		log.Warn().Str("path", commandsPath).Msg("Command file not found, command list is empty")
	}

	return New(products, commands)
}

func readListing(path string, v interface{}) error {
	if path == "" {
		return fs.ErrNotExist
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// Products returns all products in listing order.
func (c *Catalog) Products() []domain.Product {
	return append([]domain.Product(nil), c.products...)
}

// Product looks up a product by id.
func (c *Catalog) Product(id string) (domain.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Commands returns the commands in a category (all when empty) whose name,
// description or usage contains query, case-insensitively.
func (c *Catalog) Commands(category, query string) []domain.Command {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		if category != "" && !strings.EqualFold(category, "all") && cmd.Category != category {
			continue
		}
		if query != "" {
			blob := strings.ToLower(cmd.Name + " " + cmd.Description + " " + cmd.Usage)
			if !strings.Contains(blob, query) {
				continue
			}
		}
		out = append(out, cmd)
	}
	return out
}

// Categories returns the distinct command categories, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	for _, cmd := range c.commands {
		seen[cmd.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// DefaultProducts is the built-in listing used when no product file exists.
func DefaultProducts() []domain.Product {
	return []domain.Product{
		{
			ID:                "basic",
			Name:              "Basic",
			Description:       "Core premium commands for one server",
			Icon:              "🤖",
			MonthlyPriceCents: 500, // $5/mo
		},
		{
			ID:                "pro",
			Name:              "Pro",
			Description:       "Everything in Basic plus automations and higher limits",
			Icon:              "⚡",
			MonthlyPriceCents: 1000, // $10/mo
			Popular:           true,
		},
		{
			ID:                "music",
			Name:              "Music",
			Description:       "High quality audio and unlimited queues",
			Icon:              "🎵",
			MonthlyPriceCents: 300, // $3/mo
		},
	}
}

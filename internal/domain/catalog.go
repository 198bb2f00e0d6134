package domain

// Product is a purchasable slot type. Prices are in minor currency units.
type Product struct {
	ID                string   `json:"id" yaml:"id"`
	Name              string   `json:"name" yaml:"name"`
	Description       string   `json:"description,omitempty" yaml:"description"`
	Icon              string   `json:"icon,omitempty" yaml:"icon"`
	MonthlyPriceCents int64    `json:"monthlyPriceCents" yaml:"monthlyPriceCents"`
	Features          []string `json:"features,omitempty" yaml:"features"`
	Popular           bool     `json:"popular,omitempty" yaml:"popular"`
}

// Command is a bot command listed on the public commands page.
type Command struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Usage       string `json:"usage,omitempty" yaml:"usage"`
	Category    string `json:"category" yaml:"category"`
}

package inventory

// SampleCatalog returns the small kitchen catalog used by examples and tests:
// apples, rhubarb and sugar, which bake into crumble.
func SampleCatalog() *Catalog {
	c, _ := NewCatalog(
		&ProduceDefinition{Name: "apple", DisplayName: "Apple"},
		&ProduceDefinition{Name: "rhubarb", DisplayName: "Rhubarb"},
		&ProduceDefinition{Name: "sugar", DisplayName: "Sugar"},
		&ProduceDefinition{Name: "crumble", DisplayName: "Apple and Rhubarb Crumble"},
	)
	return c
}

// MustResolve resolves a quantity from the catalog and panics if the name is
// unknown. Intended for fixtures.
func (c *Catalog) MustResolve(id ProduceID, quantity int) ProduceQuantity {
	q, err := c.Resolve(id, quantity)
	if err != nil {
		panic(err)
	}
	return q
}

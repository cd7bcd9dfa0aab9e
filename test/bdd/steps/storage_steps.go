package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/gravitas-games/foundry/pkg/inventory"
)

type storageContext struct {
	catalog *inventory.Catalog
	storage *inventory.Storage
	rest    inventory.ProduceQuantity
	err     error
}

func (ctx *storageContext) reset() {
	ctx.catalog = inventory.SampleCatalog()
	ctx.storage = nil
	ctx.rest = inventory.ProduceQuantity{}
	ctx.err = nil
}

func InitializeStorageScenario(sc *godog.ScenarioContext) {
	st := &storageContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		st.reset()
		return ctx, nil
	})

	sc.Step(`^a storage with capacity (\d+)$`, st.aStorageWithCapacity)
	sc.Step(`^a storage with capacity (\d+) that only accepts "([^"]*)"$`, st.aFilteredStorage)
	sc.Step(`^I add (\d+) "([^"]*)"$`, st.iAdd)
	sc.Step(`^I consume (\d+) "([^"]*)"$`, st.iConsume)
	sc.Step(`^nothing is returned$`, st.nothingIsReturned)
	sc.Step(`^(\d+) "([^"]*)" are returned$`, st.quantityIsReturned)
	sc.Step(`^the storage holds (\d+) "([^"]*)"$`, st.theStorageHolds)
	sc.Step(`^the storage does not contain (\d+) "([^"]*)"$`, st.theStorageDoesNotContain)
	sc.Step(`^the consume fails with insufficient quantity$`, st.theConsumeFails)
}

func (ctx *storageContext) aStorageWithCapacity(capacity int) error {
	ctx.storage = inventory.NewStorage(capacity)
	return nil
}

func (ctx *storageContext) aFilteredStorage(capacity int, produce string) error {
	def, ok := ctx.catalog.Lookup(inventory.ProduceID(produce))
	if !ok {
		return fmt.Errorf("unknown produce %q", produce)
	}
	ctx.storage = inventory.NewStorage(capacity, inventory.WithFilter(def))
	return nil
}

func (ctx *storageContext) iAdd(quantity int, produce string) error {
	q, err := ctx.catalog.Resolve(inventory.ProduceID(produce), quantity)
	if err != nil {
		return err
	}
	ctx.rest, _ = ctx.storage.Add(q)
	return nil
}

func (ctx *storageContext) iConsume(quantity int, produce string) error {
	q, err := ctx.catalog.Resolve(inventory.ProduceID(produce), quantity)
	if err != nil {
		return err
	}
	ctx.err = ctx.storage.EnforceConsume(q)
	return nil
}

func (ctx *storageContext) nothingIsReturned() error {
	if ctx.rest.Quantity != 0 {
		return fmt.Errorf("expected nothing returned, got %s", ctx.rest)
	}
	return nil
}

func (ctx *storageContext) quantityIsReturned(quantity int, produce string) error {
	if ctx.rest.ID() != inventory.ProduceID(produce) || ctx.rest.Quantity != quantity {
		return fmt.Errorf("expected %d %s returned, got %s", quantity, produce, ctx.rest)
	}
	return nil
}

func (ctx *storageContext) theStorageHolds(quantity int, produce string) error {
	if got := ctx.storage.QuantityOf(inventory.ProduceID(produce)); got != quantity {
		return fmt.Errorf("expected storage to hold %d %s, got %d", quantity, produce, got)
	}
	return nil
}

func (ctx *storageContext) theStorageDoesNotContain(quantity int, produce string) error {
	q, err := ctx.catalog.Resolve(inventory.ProduceID(produce), quantity)
	if err != nil {
		return err
	}
	if ctx.storage.Contains(q) {
		return fmt.Errorf("expected storage not to contain %s", q)
	}
	return nil
}

func (ctx *storageContext) theConsumeFails() error {
	if !errors.Is(ctx.err, inventory.ErrInsufficientQuantity) {
		return fmt.Errorf("expected insufficient quantity error, got %v", ctx.err)
	}
	return nil
}

package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/gravitas-games/foundry/pkg/inventory"
	"github.com/gravitas-games/foundry/pkg/production"
)

type producerContext struct {
	catalog  *inventory.Catalog
	producer *production.Producer
	removed  map[inventory.ProduceID]int
}

func (ctx *producerContext) reset() {
	ctx.catalog = inventory.SampleCatalog()
	ctx.producer = nil
	ctx.removed = make(map[inventory.ProduceID]int)
}

func InitializeProducerScenario(sc *godog.ScenarioContext) {
	pc := &producerContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		pc.reset()
		return ctx, nil
	})

	sc.Step(`^a crumble producer with (\d+) work cycles? and (\d+) iterations?$`, pc.aCrumbleProducer)
	sc.Step(`^its storage holds (\d+) sets? of crumble ingredients$`, pc.itsStorageHoldsIngredients)
	sc.Step(`^its storage holds (\d+) "([^"]*)"$`, pc.itsStorageHolds)
	sc.Step(`^its storage holds exactly (\d+) "([^"]*)"$`, pc.itsStorageHoldsExactly)
	sc.Step(`^its storage contains (\d+) "([^"]*)"$`, pc.itsStorageContains)
	sc.Step(`^its storage does not contain (\d+) "([^"]*)"$`, pc.itsStorageDoesNotContain)
	sc.Step(`^the producer works (\d+) ticks?$`, pc.theProducerWorks)
	sc.Step(`^the producer can process$`, pc.theProducerCanProcess)
	sc.Step(`^the producer cannot process$`, pc.theProducerCannotProcess)
	sc.Step(`^the producer has completed (\d+) iterations?$`, pc.theProducerHasCompleted)
	sc.Step(`^it runs (\d+) ticks with ingredients every (\d+) ticks and crumble removed after each tick$`, pc.itRunsWithSupply)
	sc.Step(`^(\d+) "([^"]*)" were removed in total$`, pc.removedInTotal)
}

func (ctx *producerContext) ingredients() []inventory.ProduceQuantity {
	return []inventory.ProduceQuantity{
		ctx.catalog.MustResolve("apple", 2),
		ctx.catalog.MustResolve("rhubarb", 1),
		ctx.catalog.MustResolve("sugar", 1),
	}
}

func (ctx *producerContext) aCrumbleProducer(cycles, iterations int) error {
	def, err := production.NewProcessDefinition("Crumble", ctx.ingredients(), cycles, iterations,
		[]inventory.ProduceQuantity{ctx.catalog.MustResolve("crumble", 1)})
	if err != nil {
		return err
	}
	ctx.producer, err = production.NewProducer("kitchen", def)
	return err
}

func (ctx *producerContext) itsStorageHoldsIngredients(sets int) error {
	for i := 0; i < sets; i++ {
		if rest := ctx.producer.Storage().AddAll(ctx.ingredients()); len(rest) > 0 {
			return fmt.Errorf("ingredients did not fit: %v", rest)
		}
	}
	return nil
}

func (ctx *producerContext) itsStorageHolds(quantity int, produce string) error {
	q, err := ctx.catalog.Resolve(inventory.ProduceID(produce), quantity)
	if err != nil {
		return err
	}
	if rest, overflowed := ctx.producer.Storage().Add(q); overflowed {
		return fmt.Errorf("%s did not fit", rest)
	}
	return nil
}

func (ctx *producerContext) itsStorageHoldsExactly(quantity int, produce string) error {
	if got := ctx.producer.Storage().QuantityOf(inventory.ProduceID(produce)); got != quantity {
		return fmt.Errorf("expected exactly %d %s, got %d", quantity, produce, got)
	}
	return nil
}

func (ctx *producerContext) itsStorageContains(quantity int, produce string) error {
	q, err := ctx.catalog.Resolve(inventory.ProduceID(produce), quantity)
	if err != nil {
		return err
	}
	if !ctx.producer.Storage().Contains(q) {
		return fmt.Errorf("expected storage to contain %s, has %d", q, ctx.producer.Storage().QuantityOf(q.ID()))
	}
	return nil
}

func (ctx *producerContext) itsStorageDoesNotContain(quantity int, produce string) error {
	q, err := ctx.catalog.Resolve(inventory.ProduceID(produce), quantity)
	if err != nil {
		return err
	}
	if ctx.producer.Storage().Contains(q) {
		return fmt.Errorf("expected storage not to contain %s", q)
	}
	return nil
}

func (ctx *producerContext) theProducerWorks(ticks int) error {
	for i := 0; i < ticks; i++ {
		if err := ctx.producer.DoWork(); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *producerContext) theProducerCanProcess() error {
	if !ctx.producer.CanProcess() {
		return fmt.Errorf("expected producer to be able to process")
	}
	return nil
}

func (ctx *producerContext) theProducerCannotProcess() error {
	if ctx.producer.CanProcess() {
		return fmt.Errorf("expected producer not to be able to process")
	}
	return nil
}

func (ctx *producerContext) theProducerHasCompleted(iterations int) error {
	if got := ctx.producer.CompletedIterations(); got != iterations {
		return fmt.Errorf("expected %d completed iterations, got %d", iterations, got)
	}
	return nil
}

func (ctx *producerContext) itRunsWithSupply(ticks, every int) error {
	crumble := inventory.ProduceID("crumble")
	for tick := 0; tick < ticks; tick++ {
		if tick%every == 0 {
			ctx.producer.Storage().AddAll(ctx.ingredients())
		}
		if err := ctx.producer.DoWork(); err != nil {
			return err
		}
		if n := ctx.producer.Storage().QuantityOf(crumble); n > 0 {
			if err := ctx.producer.Storage().EnforceConsume(ctx.catalog.MustResolve(crumble, n)); err != nil {
				return err
			}
			ctx.removed[crumble] += n
		}
	}
	return nil
}

func (ctx *producerContext) removedInTotal(quantity int, produce string) error {
	if got := ctx.removed[inventory.ProduceID(produce)]; got != quantity {
		return fmt.Errorf("expected %d %s removed, got %d", quantity, produce, got)
	}
	return nil
}

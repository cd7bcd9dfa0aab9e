// Package world loads a world definition (produce catalog, processes,
// producers and the supply/drain schedule) from YAML or JSON and builds the
// live entity graph the simulation drives.
package world

// Definition is the parsed, not yet resolved, world file.
type Definition struct {
	ProduceDefinitions []ProduceEntry  `json:"produce_definitions" yaml:"produce_definitions" validate:"dive"`
	Processes          []ProcessEntry  `json:"processes" yaml:"processes" validate:"dive"`
	Producers          []ProducerEntry `json:"producers" yaml:"producers" validate:"dive"`
	Supplies           []SupplyEntry   `json:"supplies,omitempty" yaml:"supplies,omitempty" validate:"dive"`
	Drains             []DrainEntry    `json:"drains,omitempty" yaml:"drains,omitempty" validate:"dive"`
}

// ProduceEntry declares one produce type.
type ProduceEntry struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}

// QuantityEntry references a produce type by name with an amount.
type QuantityEntry struct {
	ProduceDefinition string `json:"produce_definition" yaml:"produce_definition" validate:"required"`
	Quantity          int    `json:"quantity" yaml:"quantity" validate:"min=0"`
}

// ProcessEntry declares one process. Omitted cycle and iteration counts
// mean 1; an explicit value must be at least 1.
type ProcessEntry struct {
	Name                string          `json:"name" yaml:"name" validate:"required"`
	IterationWorkCycles *int            `json:"iteration_work_cycles,omitempty" yaml:"iteration_work_cycles,omitempty" validate:"omitnil,min=1"`
	IterationCount      *int            `json:"iteration_count,omitempty" yaml:"iteration_count,omitempty" validate:"omitnil,min=1"`
	Inputs              []QuantityEntry `json:"inputs" yaml:"inputs" validate:"dive"`
	Outputs             []QuantityEntry `json:"outputs" yaml:"outputs" validate:"dive"`
}

// ProducerEntry declares a producer bound to a process. MaxStorage of zero
// uses the configured default. Storage lists the initial contents.
type ProducerEntry struct {
	Name       string          `json:"name" yaml:"name" validate:"required"`
	Process    string          `json:"process" yaml:"process" validate:"required"`
	MaxStorage int             `json:"max_storage,omitempty" yaml:"max_storage,omitempty" validate:"min=0"`
	Storage    []QuantityEntry `json:"storage,omitempty" yaml:"storage,omitempty" validate:"dive"`
}

// SupplyEntry pushes Produce into a producer's storage every Every ticks,
// starting at tick Offset. Every defaults to 1 when omitted.
type SupplyEntry struct {
	Producer string          `json:"producer" yaml:"producer" validate:"required"`
	Every    *int            `json:"every,omitempty" yaml:"every,omitempty" validate:"omitnil,min=1"`
	Offset   int             `json:"offset,omitempty" yaml:"offset,omitempty" validate:"min=0"`
	Produce  []QuantityEntry `json:"produce" yaml:"produce" validate:"required,min=1,dive"`
}

// DrainEntry empties one produce type from a producer after every tick.
type DrainEntry struct {
	Producer          string `json:"producer" yaml:"producer" validate:"required"`
	ProduceDefinition string `json:"produce_definition" yaml:"produce_definition" validate:"required"`
}

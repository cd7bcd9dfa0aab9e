package inventory

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeSplitsQuantity(t *testing.T) {
	cat := SampleCatalog()
	q := cat.MustResolve("apple", 5)

	taken, err := q.Take(3)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Quantity)
	assert.Equal(t, 3, taken.Quantity)
	assert.Equal(t, ProduceID("apple"), taken.ID())

	_, err = q.Take(3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientQuantity))
	assert.Equal(t, 2, q.Quantity, "failed take must not mutate")
}

func TestAddReportsOverflow(t *testing.T) {
	cat := SampleCatalog()
	s := NewStorage(10)

	rest, overflowed := s.Add(cat.MustResolve("apple", 7))
	assert.False(t, overflowed)
	assert.Equal(t, 0, rest.Quantity)
	assert.Equal(t, 7, s.QuantityOf("apple"))

	rest, overflowed = s.Add(cat.MustResolve("apple", 6))
	require.True(t, overflowed)
	assert.Equal(t, ProduceID("apple"), rest.ID())
	assert.Equal(t, 3, rest.Quantity)
	assert.Equal(t, 10, s.QuantityOf("apple"))
}

func TestCapacityIsPerType(t *testing.T) {
	cat := SampleCatalog()
	s := NewStorage(5)
	s.Add(cat.MustResolve("apple", 5))

	assert.False(t, s.CanAdd(cat.MustResolve("apple", 1)))
	assert.True(t, s.CanAdd(cat.MustResolve("sugar", 5)))
	assert.False(t, s.CanAdd(cat.MustResolve("sugar", 6)))
}

func TestFilterRejectsDisallowedProduce(t *testing.T) {
	cat := SampleCatalog()
	apple, _ := cat.Lookup("apple")

	var rejected []ProduceQuantity
	s := NewStorage(20, WithFilter(apple), WithRejectHandler(func(q ProduceQuantity) {
		rejected = append(rejected, q)
	}))

	assert.True(t, s.FilterAllows("apple"))
	assert.False(t, s.FilterAllows("sugar"))
	assert.False(t, s.CanAdd(cat.MustResolve("sugar", 1)))

	rest, overflowed := s.Add(cat.MustResolve("sugar", 4))
	require.True(t, overflowed)
	assert.Equal(t, 4, rest.Quantity)
	assert.Equal(t, 0, s.QuantityOf("sugar"))
	require.Len(t, rejected, 1)
	assert.Equal(t, ProduceID("sugar"), rejected[0].ID())
}

func TestAddAllKeepsOnlyRemaindersInOrder(t *testing.T) {
	cat := SampleCatalog()
	apple, _ := cat.Lookup("apple")
	sugar, _ := cat.Lookup("sugar")
	s := NewStorage(3, WithFilter(apple, sugar))

	left := s.AddAll([]ProduceQuantity{
		cat.MustResolve("apple", 5),
		cat.MustResolve("sugar", 2),
		cat.MustResolve("crumble", 1),
	})

	require.Len(t, left, 2)
	assert.Equal(t, "apple (2)", left[0].String())
	assert.Equal(t, "crumble (1)", left[1].String())
	assert.Equal(t, 3, s.QuantityOf("apple"))
	assert.Equal(t, 2, s.QuantityOf("sugar"))
}

func TestContainsTreatsAbsentAsMissing(t *testing.T) {
	cat := SampleCatalog()
	s := NewStorage(20)

	assert.False(t, s.Contains(cat.MustResolve("apple", 0)))
	s.Add(cat.MustResolve("apple", 2))
	assert.True(t, s.Contains(cat.MustResolve("apple", 2)))
	assert.False(t, s.Contains(cat.MustResolve("apple", 3)))
}

func TestEnforceConsume(t *testing.T) {
	cat := SampleCatalog()
	s := NewStorage(20)

	err := s.EnforceConsume(cat.MustResolve("rhubarb", 1))
	var insufficient *InsufficientQuantityError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 0, insufficient.Available)
	assert.Equal(t, 1, insufficient.Requested)
	assert.Equal(t, 0, s.QuantityOf("rhubarb"))

	s.Add(cat.MustResolve("rhubarb", 4))
	require.NoError(t, s.EnforceConsume(cat.MustResolve("rhubarb", 3)))
	assert.Equal(t, 1, s.QuantityOf("rhubarb"))
	assert.ErrorIs(t, s.EnforceConsume(cat.MustResolve("rhubarb", 2)), ErrInsufficientQuantity)
	assert.Equal(t, 1, s.QuantityOf("rhubarb"))
}

func TestStorageJSON(t *testing.T) {
	cat := SampleCatalog()
	apple, _ := cat.Lookup("apple")
	crumble, _ := cat.Lookup("crumble")
	s := NewStorage(20, WithFilter(crumble, apple))
	s.Add(cat.MustResolve("apple", 2))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"max_capacity":20,"allowed":["apple","crumble"],"stored":{"apple":2}}`, string(data))
}

func TestCatalogRejectsDuplicatesAndUnknownNames(t *testing.T) {
	cat := SampleCatalog()
	assert.Equal(t, 4, cat.Len())

	err := cat.Register(&ProduceDefinition{Name: "apple"})
	assert.Error(t, err)

	_, err = cat.Resolve("pear", 1)
	assert.ErrorIs(t, err, ErrUnknownProduce)

	names := make([]ProduceID, 0, cat.Len())
	for _, d := range cat.Export() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []ProduceID{"apple", "rhubarb", "sugar", "crumble"}, names)
}

func TestNewProduceDefinitionDefaultsDisplayName(t *testing.T) {
	def, err := NewProduceDefinition("flour", "")
	require.NoError(t, err)
	assert.Equal(t, "flour", def.DisplayName)

	_, err = NewProduceDefinition("", "Nothing")
	assert.Error(t, err)
}

package data

import (
	"sync"

	"gitlab.com/zanolabs/escrowd/interfaces"
)

// Collection is a thread-safe collection of models keyed by their ID
type Collection[T interfaces.IModel] struct {
	items sync.Map
}

func NewCollection[T interfaces.IModel]() *Collection[T] {
	return &Collection[T]{
		items: sync.Map{},
	}
}

func (c *Collection[T]) Load(ID string) (item T, ok bool) {
	if val, ok := c.items.Load(ID); ok {
		return val.(T), true
	}
	var nilItem T
	return nilItem, false
}

func (c *Collection[T]) Range(f func(item T) bool) {
	c.items.Range(func(key, value any) bool {
		item := value.(T)
		return f(item)
	})
}

func (c *Collection[T]) Store(item T) {
	c.items.Store(item.GetID(), item)
}

func (c *Collection[T]) Delete(ID string) {
	c.items.Delete(ID)
}

func (c *Collection[T]) Len() int {
	count := 0
	c.items.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}

package state

// Collection é um mapa tipado que preserva a ordem de inserção.
// Não é seguro para uso concorrente: cada módulo protege suas coleções com o próprio lock.
type Collection[T any] struct {
	items map[string]T
	order []string
}

func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{items: make(map[string]T)}
}

// Get devolve o item por chave.
func (c *Collection[T]) Get(key string) (T, bool) {
	item, ok := c.items[key]
	return item, ok
}

func (c *Collection[T]) Has(key string) bool {
	_, ok := c.items[key]
	return ok
}

// Insert adiciona o item apenas se a chave não existir.
func (c *Collection[T]) Insert(key string, item T) bool {
	if _, ok := c.items[key]; ok {
		return false
	}
	c.items[key] = item
	c.order = append(c.order, key)
	return true
}

// Put faz upsert. Uma chave existente mantém sua posição original.
func (c *Collection[T]) Put(key string, item T) {
	if _, ok := c.items[key]; !ok {
		c.order = append(c.order, key)
	}
	c.items[key] = item
}

// Delete remove a chave. Devolve false quando ela não existia.
func (c *Collection[T]) Delete(key string) bool {
	if _, ok := c.items[key]; !ok {
		return false
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Values devolve os itens em ordem de inserção.
func (c *Collection[T]) Values() []T {
	out := make([]T, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.items[k])
	}
	return out
}

// Keys devolve as chaves em ordem de inserção.
func (c *Collection[T]) Keys() []string {
	return append([]string(nil), c.order...)
}

func (c *Collection[T]) Len() int {
	return len(c.order)
}

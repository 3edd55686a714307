package catalog

import "time"

type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

func NewCategory(id, name string) *Category {
	return &Category{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

func (c *Category) Clone() *Category {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

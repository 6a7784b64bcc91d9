package labels

// Catalog holds the display labels an operator may assign to telemetry keys
type Catalog struct {
	labels []string
	valid  map[string]bool
}

// NewCatalog creates a catalog preserving the given order
func NewCatalog(labels []string) *Catalog {
	c := &Catalog{
		labels: make([]string, 0, len(labels)),
		valid:  make(map[string]bool, len(labels)),
	}
	for _, label := range labels {
		if c.valid[label] {
			continue
		}
		c.valid[label] = true
		c.labels = append(c.labels, label)
	}
	return c
}

// IsValidLabel checks if a label is in the catalog
func (c *Catalog) IsValidLabel(label string) bool {
	return c.valid[label]
}

// Labels returns all labels in catalog order
func (c *Catalog) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

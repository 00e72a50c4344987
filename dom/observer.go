package dom

// MutationType is the kind of tree change observed.
type MutationType string

const (
	AttributeChanged MutationType = "attributes"
	ChildListChanged MutationType = "childList"
)

// Mutation is a single tree-change record, the analog of a browser
// MutationRecord. Target points at the live node.
type Mutation struct {
	Type     MutationType
	Target   *Node
	Attr     string // attribute name for AttributeChanged
	OldValue string // previous attribute value, only when requested
	Added    []*Node
	Removed  []*Node

	hadOldValue bool
}

// Options selects which mutations an observer receives, mirroring
// MutationObserverInit. AttributeFilter implies Attributes.
type Options struct {
	ChildList         bool
	Attributes        bool
	AttributeFilter   []string
	Subtree           bool
	AttributeOldValue bool
}

// Callback receives one batch of mutation records. All records of a batch
// are delivered together, in the order the mutations occurred.
type Callback func([]Mutation)

// Observer is a registered subscription on a document. There is no
// disconnect: an observer lives as long as its document.
type Observer struct {
	target *Node
	opts   Options
	fn     Callback
	queue  []Mutation
}

func (o *Observer) matches(m Mutation) bool {
	if o.target != m.Target && !(o.opts.Subtree && o.target.Contains(m.Target)) {
		return false
	}
	switch m.Type {
	case ChildListChanged:
		return o.opts.ChildList
	case AttributeChanged:
		if !o.opts.Attributes && len(o.opts.AttributeFilter) == 0 {
			return false
		}
		if len(o.opts.AttributeFilter) == 0 {
			return true
		}
		for _, name := range o.opts.AttributeFilter {
			if name == m.Attr {
				return true
			}
		}
		return false
	}
	return false
}

// enqueue appends a record, stripping the old value unless requested.
func (o *Observer) enqueue(m Mutation) {
	if m.Type == AttributeChanged && !o.opts.AttributeOldValue {
		m.OldValue = ""
		m.hadOldValue = false
	}
	o.queue = append(o.queue, m)
}

// takeRecords returns and clears the pending queue.
func (o *Observer) takeRecords() []Mutation {
	if len(o.queue) == 0 {
		return nil
	}
	records := o.queue
	o.queue = nil
	return records
}

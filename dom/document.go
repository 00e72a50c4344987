package dom

// Document owns a tree root, a one-shot task queue, and the observers
// subscribed to the tree. It is confined to one logical thread: no locking,
// no concurrent use.
type Document struct {
	root      *Node
	observers []*Observer
	tasks     []func()
}

// NewDocument creates a document with an empty root node.
func NewDocument() *Document {
	d := &Document{}
	d.root = &Node{nodeType: DocumentNode}
	d.root.owner = d
	return d
}

// Root returns the document root node.
func (d *Document) Root() *Node {
	if d == nil {
		return nil
	}
	return d.root
}

// Observe registers an observer on target with the given options. The
// callback fires during Flush with all records queued since the previous
// delivery. A nil target observes the document root.
func (d *Document) Observe(target *Node, opts Options, fn Callback) *Observer {
	if target == nil {
		target = d.root
	}
	o := &Observer{target: target, opts: opts, fn: fn}
	d.observers = append(d.observers, o)
	return o
}

// QueueTask schedules fn to run at the start of the next Flush, before
// mutation delivery. This is the rendition of "after the next paint":
// deferred work that must not assume the tree is fully populated at
// scheduling time.
func (d *Document) QueueTask(fn func()) {
	if fn == nil {
		return
	}
	d.tasks = append(d.tasks, fn)
}

// Flush runs queued tasks and delivers pending mutation batches until the
// document is quiescent. Tasks and callbacks may themselves mutate the tree
// or queue further tasks; those are processed within the same Flush, so the
// cooperative contract is that observers converge (the attribute mirror
// does: its writes are idempotent and filtered out of its own view).
func (d *Document) Flush() {
	for {
		progressed := false

		for len(d.tasks) > 0 {
			task := d.tasks[0]
			d.tasks = d.tasks[1:]
			task()
			progressed = true
		}

		for _, o := range d.observers {
			records := o.takeRecords()
			if len(records) == 0 {
				continue
			}
			o.fn(records)
			progressed = true
		}

		if !progressed {
			return
		}
	}
}

// record routes a mutation to every matching observer's queue.
func (d *Document) record(m Mutation) {
	for _, o := range d.observers {
		if o.matches(m) {
			o.enqueue(m)
		}
	}
}

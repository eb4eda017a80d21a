package cache

// recency orders cache entries from most to least recently used so the
// store can be bounded. It is not safe for concurrent use; Cache guards it.
type recency struct {
	nodes map[string]*recencyNode
	head  *recencyNode // Most recently used.
	tail  *recencyNode // Least recently used.
}

type recencyNode struct {
	path string
	prev *recencyNode
	next *recencyNode
}

func newRecency() *recency {
	return &recency{nodes: make(map[string]*recencyNode)}
}

func (r *recency) len() int {
	return len(r.nodes)
}

// touch marks path as most recently used, adding it if needed.
func (r *recency) touch(path string) {
	if node, ok := r.nodes[path]; ok {
		if node != r.head {
			r.unlink(node)
			r.pushFront(node)
		}

		return
	}

	node := &recencyNode{path: path}
	r.nodes[path] = node
	r.pushFront(node)
}

func (r *recency) remove(path string) {
	node, ok := r.nodes[path]
	if !ok {
		return
	}

	r.unlink(node)
	delete(r.nodes, path)
}

// oldest returns the least recently used path.
func (r *recency) oldest() (string, bool) {
	if r.tail == nil {
		return "", false
	}

	return r.tail.path, true
}

func (r *recency) clear() {
	r.nodes = make(map[string]*recencyNode)
	r.head = nil
	r.tail = nil
}

func (r *recency) pushFront(node *recencyNode) {
	node.prev = nil
	node.next = r.head

	if r.head != nil {
		r.head.prev = node
	}

	r.head = node

	if r.tail == nil {
		r.tail = node
	}
}

func (r *recency) unlink(node *recencyNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		r.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		r.tail = node.prev
	}

	node.prev = nil
	node.next = nil
}

package orderbook

type color uint8

const (
	red color = iota
	black
)

type rbNode struct {
	key    int64
	level  *PriceLevel
	color  color
	left   *rbNode
	right  *rbNode
	parent *rbNode
}

// RBTree maps prices to levels. Ordering is defined by less, so the same tree
// serves bids (descending) and asks (ascending): the first node is always the
// best price. The first node is cached, which makes best-price lookups O(1).
type RBTree struct {
	root  *rbNode
	nil   *rbNode // sentinel (black)
	first *rbNode
	less  func(a, b int64) bool
	size  int
}

// NewRBTree constructs an empty tree ordered by less.
func NewRBTree(less func(a, b int64) bool) *RBTree {
	nilNode := &rbNode{color: black}
	return &RBTree{
		root:  nilNode,
		nil:   nilNode,
		first: nilNode,
		less:  less,
	}
}

func ascending(a, b int64) bool  { return a < b }
func descending(a, b int64) bool { return a > b }

// Size is the number of levels in the tree.
func (t *RBTree) Size() int { return t.size }

func (t *RBTree) FindLevel(price int64) *PriceLevel {
	n := t.searchNode(price)
	if n == t.nil {
		return nil
	}
	return n.level
}

// UpsertLevel returns the level for price, creating it if absent.
func (t *RBTree) UpsertLevel(price int64) *PriceLevel {
	y := t.nil
	x := t.root
	for x != t.nil {
		y = x
		if t.less(price, x.key) {
			x = x.left
		} else if t.less(x.key, price) {
			x = x.right
		} else {
			return x.level
		}
	}

	pl := &PriceLevel{Price: price}
	z := &rbNode{
		key:    price,
		level:  pl,
		color:  red,
		left:   t.nil,
		right:  t.nil,
		parent: y,
	}

	if y == t.nil {
		t.root = z
	} else if t.less(z.key, y.key) {
		y.left = z
	} else {
		y.right = z
	}
	if t.first == t.nil || t.less(price, t.first.key) {
		t.first = z
	}
	t.insertFixup(z)
	t.size++
	return pl
}

func (t *RBTree) DeleteLevel(price int64) bool {
	z := t.searchNode(price)
	if z == t.nil {
		return false
	}
	if z == t.first {
		// The first node never has a left child, so deleteNode does not move
		// its successor's node; the pointer stays valid.
		t.first = t.next(z)
	}
	t.deleteNode(z)
	t.size--
	return true
}

// First returns the best level, or nil for an empty tree.
func (t *RBTree) First() *PriceLevel {
	if t.first == t.nil {
		return nil
	}
	return t.first.level
}

// ForEach visits levels best-first until fn returns false.
func (t *RBTree) ForEach(fn func(*PriceLevel) bool) {
	for n := t.first; n != t.nil; n = t.next(n) {
		if !fn(n.level) {
			return
		}
	}
}

/******************** Internal helpers ********************/

func (t *RBTree) searchNode(price int64) *rbNode {
	n := t.root
	for n != t.nil {
		if t.less(price, n.key) {
			n = n.left
		} else if t.less(n.key, price) {
			n = n.right
		} else {
			return n
		}
	}
	return t.nil
}

func (t *RBTree) minNode(n *rbNode) *rbNode {
	if n == t.nil {
		return t.nil
	}
	for n.left != t.nil {
		n = n.left
	}
	return n
}

func (t *RBTree) next(n *rbNode) *rbNode {
	if n.right != t.nil {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *RBTree) leftRotate(x *rbNode) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == t.nil {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *RBTree) rightRotate(y *rbNode) {
	x := y.left
	y.left = x.right
	if x.right != t.nil {
		x.right.parent = y
	}
	x.parent = y.parent
	if y.parent == t.nil {
		t.root = x
	} else if y == y.parent.right {
		y.parent.right = x
	} else {
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *RBTree) insertFixup(z *rbNode) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.leftRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rightRotate(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rightRotate(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.leftRotate(z.parent.parent)
			}
		}
	}
	t.root.color = black
}

func (t *RBTree) transplant(u, v *rbNode) {
	if u.parent == t.nil {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *RBTree) deleteNode(z *rbNode) {
	y := z
	yOrigColor := y.color
	var x *rbNode

	if z.left == t.nil {
		x = z.right
		t.transplant(z, z.right)
	} else if z.right == t.nil {
		x = z.left
		t.transplant(z, z.left)
	} else {
		y = t.minNode(z.right)
		yOrigColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOrigColor == black {
		t.deleteFixup(x)
	}
}

func (t *RBTree) deleteFixup(x *rbNode) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.right.color == black {
					w.left.color = black
					w.color = red
					t.rightRotate(w)
					w = x.parent.right
				}
				w.color = x.parent.color
				x.parent.color = black
				w.right.color = black
				t.leftRotate(x.parent)
				x = t.root
			}
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
			} else {
				if w.left.color == black {
					w.right.color = black
					w.color = red
					t.leftRotate(w)
					w = x.parent.left
				}
				w.color = x.parent.color
				x.parent.color = black
				w.left.color = black
				t.rightRotate(x.parent)
				x = t.root
			}
		}
	}
	x.color = black
}

// checkInvariants verifies the red-black properties and the cached first
// node. It returns the black height, or -1 when a property is broken.
func (t *RBTree) checkInvariants() int {
	if t.root.color != black {
		return -1
	}
	if t.minNode(t.root) != t.first {
		return -1
	}
	return t.blackHeight(t.root)
}

func (t *RBTree) blackHeight(n *rbNode) int {
	if n == t.nil {
		return 1
	}
	if n.color == red && (n.left.color == red || n.right.color == red) {
		return -1
	}
	if n.left != t.nil && !t.less(n.left.key, n.key) {
		return -1
	}
	if n.right != t.nil && !t.less(n.key, n.right.key) {
		return -1
	}
	l := t.blackHeight(n.left)
	r := t.blackHeight(n.right)
	if l < 0 || r < 0 || l != r {
		return -1
	}
	if n.color == black {
		return l + 1
	}
	return l
}

package streambin

import "github.com/emirpasic/gods/trees/redblacktree"

// Node pointers are only valid until the next Put or Remove: deleting a node
// with two children moves its successor's key and value into it.

func lookup(tree *redblacktree.Tree, key interface{}) *redblacktree.Node {
	node := tree.Root
	for node != nil {
		c := tree.Comparator(key, node.Key)
		switch {
		case c == 0:
			return node
		case c < 0:
			node = node.Left
		default:
			node = node.Right
		}
	}
	return nil
}

func predecessor(node *redblacktree.Node) *redblacktree.Node {
	if node.Left != nil {
		node = node.Left
		for node.Right != nil {
			node = node.Right
		}
		return node
	}
	for parent := node.Parent; parent != nil; node, parent = parent, parent.Parent {
		if node == parent.Right {
			return parent
		}
	}
	return nil
}

func successor(node *redblacktree.Node) *redblacktree.Node {
	if node.Right != nil {
		node = node.Right
		for node.Left != nil {
			node = node.Left
		}
		return node
	}
	for parent := node.Parent; parent != nil; node, parent = parent, parent.Parent {
		if node == parent.Left {
			return parent
		}
	}
	return nil
}

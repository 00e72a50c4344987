package dom

import (
	"fmt"
	"strings"
)

// XPath computes the node's absolute XPath by walking up to the root.
// Sibling indexes are 1-based and only emitted when the tag is ambiguous
// among its siblings, matching the paths the live browser bridge reports.
func XPath(n *Node) string {
	if n == nil {
		return ""
	}

	var parts []string
	for cur := n; cur != nil && cur.nodeType != DocumentNode; cur = cur.parent {
		switch cur.nodeType {
		case TextNode:
			parts = append(parts, "text()")
			continue
		case CommentNode:
			parts = append(parts, "comment()")
			continue
		}

		name := cur.tag
		parent := cur.parent
		if parent == nil {
			parts = append(parts, name)
			continue
		}

		idx, total := 1, 0
		for _, sib := range parent.children {
			if sib.nodeType != ElementNode || sib.tag != name {
				continue
			}
			total++
			if sib == cur {
				idx = total
			}
		}

		if total > 1 {
			parts = append(parts, fmt.Sprintf("%s[%d]", name, idx))
		} else {
			parts = append(parts, name)
		}
	}

	// Reverse: collected leaf-first.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

package patch

// Op is the kind of a patch line.
type Op byte

const (
	OpContext Op = ' '
	OpDelete  Op = '-'
	OpAdd     Op = '+'
)

func (o Op) String() string {
	switch o {
	case OpContext:
		return "context"
	case OpDelete:
		return "delete"
	case OpAdd:
		return "add"
	default:
		return "unknown"
	}
}

type editOp struct {
	op       Op
	oldIndex int
	newIndex int
}

// splitLines splits data into lines, each keeping its terminator. A trailing
// fragment without a newline is its own line.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}

	lines := make([]string, 0, 16)
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, string(data[start:i+1]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}

// editScript returns the shortest edit script turning base into target.
func editScript(base, target []string) []editOp {
	n, m := len(base), len(target)

	switch {
	case n == 0 && m == 0:
		return nil
	case n == 0:
		return allInserts(m)
	case m == 0:
		return allDeletes(n)
	}

	return myers(base, target)
}

func allInserts(m int) []editOp {
	ops := make([]editOp, m)
	for i := range m {
		ops[i] = editOp{op: OpAdd, newIndex: i}
	}
	return ops
}

func allDeletes(n int) []editOp {
	ops := make([]editOp, n)
	for i := range n {
		ops[i] = editOp{op: OpDelete, oldIndex: i}
	}
	return ops
}

func myers(base, target []string) []editOp {
	n, m := len(base), len(target)
	maxDepth := n + m
	offset := maxDepth

	v := make([]int, 2*maxDepth+2)
	var trace [][]int

	for depth := 0; depth <= maxDepth; depth++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)

		for k := -depth; k <= depth; k += 2 {
			x := nextX(v, offset, k, depth)
			y := x - k
			for x < n && y < m && base[x] == target[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				return backtrack(trace, n, m, offset)
			}
		}
	}
	return nil
}

func nextX(v []int, offset, k, depth int) int {
	if k == -depth || (k != depth && v[offset+k-1] < v[offset+k+1]) {
		return v[offset+k+1]
	}
	return v[offset+k-1] + 1
}

func backtrack(trace [][]int, n, m, offset int) []editOp {
	ops := make([]editOp, 0, n+m)
	x, y := n, m

	for depth := len(trace) - 1; depth > 0; depth-- {
		v := trace[depth]
		k := x - y

		var prevK int
		if k == -depth || (k != depth && v[offset+k-1] < v[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[offset+prevK]
		prevY := prevX - prevK

		// Diagonal run after the edit.
		afterX, afterY := prevX, prevY+1
		if prevK < k {
			afterX, afterY = prevX+1, prevY
		}
		ops = appendSnake(ops, x, y, afterX, afterY)

		if prevK < k {
			ops = append(ops, editOp{op: OpDelete, oldIndex: prevX})
		} else {
			ops = append(ops, editOp{op: OpAdd, newIndex: prevY})
		}
		x, y = prevX, prevY
	}

	ops = appendSnake(ops, x, y, 0, 0)

	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}

func appendSnake(ops []editOp, x, y, stopX, stopY int) []editOp {
	for x > stopX && y > stopY {
		x--
		y--
		ops = append(ops, editOp{op: OpContext, oldIndex: x, newIndex: y})
	}
	return ops
}

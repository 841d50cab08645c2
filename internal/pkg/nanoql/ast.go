package nanoql

// Node is the interface implemented by all AST nodes.
type Node interface {
	node() // marker method
}

// Match operators.
const (
	OpEq     = ":"
	OpNeq    = "!="
	OpExists = ":*"
	OpGte    = ">="
	OpLte    = "<="
)

// BinaryExpr represents a binary logical expression (AND, OR).
type BinaryExpr struct {
	Op    string // "AND" or "OR"
	Left  Node
	Right Node
}

func (BinaryExpr) node() {}

// MatchExpr compares the field at Key against Values.
// OpExists carries no values; every other operator carries at least one.
type MatchExpr struct {
	Key    string
	Op     string
	Values []string
}

func (MatchExpr) node() {}

// NotExpr represents a NOT expression that negates its inner expression.
type NotExpr struct {
	Expr Node
}

func (NotExpr) node() {}

package repository

type OrderType string

const (
	OrderTypeAsc  OrderType = "ASC"
	OrderTypeDesc OrderType = "DESC"
)

type WhereType map[string]any
type SelectType []string

// Order is applied in the listed sequence.
type Order []OrderBy

type OrderBy struct {
	Field string
	Dir   OrderType
}

type FindOptions struct {
	Select SelectType
	Where  WhereType
	Order  Order
	Limit  uint
	Offset uint
}

func Select(fields ...string) SelectType {
	return fields
}

func Desc(field string) OrderBy {
	return OrderBy{Field: field, Dir: OrderTypeDesc}
}

func Asc(field string) OrderBy {
	return OrderBy{Field: field, Dir: OrderTypeAsc}
}

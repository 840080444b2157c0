package parsers

import (
	"github.com/hermeznetwork/forge-node/db"
)

// Pagination type for holding pagination params
type Pagination struct {
	FromItem *uint   `form:"fromItem"`
	Order    *string `form:"order,default=ASC" binding:"omitempty,oneof=ASC DESC"`
	Limit    *uint   `form:"limit,default=20" binding:"omitempty,min=1,max=2049"`
}

func (p Pagination) toDB() db.Pagination {
	pag := db.Pagination{Order: db.OrderAsc}
	if p.FromItem != nil {
		from := uint64(*p.FromItem)
		pag.FromItem = &from
	}
	if p.Order != nil {
		pag.Order = *p.Order
	}
	if p.Limit != nil {
		pag.Limit = *p.Limit
	}
	return pag
}

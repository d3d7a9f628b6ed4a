package utils

import (
	"fmt"

	"gorm.io/gorm"
)

type PaginatedResult struct {
	NumPages    int64
	CurrentPage int64
	NextPage    int64
}

// Paginate applies the query options as a gorm scope and fills res with the
// page bookkeeping for a query matching count rows in total.
func Paginate(opts []QueryOption, count int64, res *PaginatedResult) func(db *gorm.DB) *gorm.DB {
	q := Query{
		Limit:  50,
		Offset: 0,
		SortBy: "id",
		Order:  OrderAsc,
	}

	for _, opt := range opts {
		opt.Apply(&q)
	}

	if q.Limit > 0 {
		res.NumPages = (count + int64(q.Limit) - 1) / int64(q.Limit)
		res.CurrentPage = int64(q.Offset / q.Limit)

		if res.CurrentPage+1 < res.NumPages {
			res.NextPage = res.CurrentPage + 1
		}
	}

	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(q.Offset).Limit(q.Limit).Order(fmt.Sprintf("%s %s", q.SortBy, q.Order))
	}
}

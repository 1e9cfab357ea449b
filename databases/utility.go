package databases

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoPaginate struct {
	limit int64
	page  int64
}

func newMongoPaginate(limit, page int) *mongoPaginate {
	return &mongoPaginate{
		limit: int64(limit),
		page:  int64(page),
	}
}

func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	l := mp.limit
	skip := mp.page*mp.limit - mp.limit
	if skip < 0 {
		skip = 0
	}
	fOpt := options.FindOptions{Limit: &l, Skip: &skip, Sort: bson.D{{Key: "createdAt", Value: -1}}}

	return &fOpt
}

// newestFirst returns find options sorted by creation time, newest first, limited to n
func newestFirst(n int) *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(n))
}

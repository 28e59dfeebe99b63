package repository

import (
	"time"

	"github.com/guyvdb/tradestore/dyno"
	"github.com/guyvdb/tradestore/metrics"
	"github.com/guyvdb/tradestore/query"
	"github.com/guyvdb/tradestore/trade"
)

// TradeType names trades in dyno objects.
const TradeType = "trade"

// WhereExpr returns the trades matching the CEL expression. Each trade is
// exposed as record with its JSON fields plus the derived fields closed and,
// for closed trades, closureDate (YYYY-MM-DD).
func (r *TradeRepository) WhereExpr(expression string) ([]*trade.Trade, error) {
	start := time.Now()
	defer metrics.Observe("where_expr", start)

	p, err := query.Compile(expression)
	if err != nil {
		return nil, err
	}

	all, err := r.trades.FindAll(nil)
	if err != nil {
		return nil, err
	}

	out := make([]*trade.Trade, 0)
	for i := range all {
		t := &all[i]
		obj, err := Dynamic(t)
		if err != nil {
			return nil, err
		}
		ok, err := p.Match(obj)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// Dynamic returns the dyno view of t used by WhereExpr.
func Dynamic(t *trade.Trade) (*dyno.Object, error) {
	obj, err := dyno.FromValue(TradeType, t)
	if err != nil {
		return nil, err
	}
	obj.SetProperty("closed", t.IsClosed())
	if closed, ok := t.ClosureDate(); ok {
		obj.SetProperty("closureDate", closed.Format(time.DateOnly))
	}
	return obj, nil
}

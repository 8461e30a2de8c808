package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"b2b_workflow/internal/engine"
	"b2b_workflow/internal/model"
	"b2b_workflow/internal/store"
)

// createLink 采购方发起合作申请。
func createLink(eng *engine.Engine, idem *idempotency) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ConsumerID int64 `json:"consumer_id" binding:"omitempty,min=1"`
			SupplierID int64 `json:"supplier_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		idem.run(c, model.KindLink, func() (model.Record, error) {
			return eng.CreateLink(c.Request.Context(), actorOf(c), store.NewLink{
				ConsumerID: req.ConsumerID,
				SupplierID: req.SupplierID,
			})
		})
	}
}

// createOrder 基于已审批 Link 下单，total_amount 以元为单位。
func createOrder(eng *engine.Engine, idem *idempotency) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			LinkID       uint       `json:"link_id" binding:"required,min=1"`
			ConsumerID   int64      `json:"consumer_id" binding:"omitempty,min=1"`
			TotalAmount  float64    `json:"total_amount"`
			DeliveryDate *time.Time `json:"delivery_date"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		idem.run(c, model.KindOrder, func() (model.Record, error) {
			return eng.CreateOrder(c.Request.Context(), actorOf(c), store.NewOrder{
				LinkID:       req.LinkID,
				ConsumerID:   req.ConsumerID,
				TotalAmount:  req.TotalAmount,
				DeliveryDate: req.DeliveryDate,
			})
		})
	}
}

// createComplaint 针对订单发起投诉。
func createComplaint(eng *engine.Engine, idem *idempotency) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			OrderID     uint           `json:"order_id" binding:"required,min=1"`
			Title       string         `json:"title"`
			Description string         `json:"description"`
			Priority    model.Priority `json:"priority"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		idem.run(c, model.KindComplaint, func() (model.Record, error) {
			return eng.CreateComplaint(c.Request.Context(), actorOf(c), store.NewComplaint{
				OrderID:     req.OrderID,
				Title:       req.Title,
				Description: req.Description,
				Priority:    req.Priority,
			})
		})
	}
}

// listQuery 列表查询参数，零值不过滤。
type listQuery struct {
	ConsumerID int64  `form:"consumer_id"`
	SupplierID int64  `form:"supplier_id"`
	LinkID     uint   `form:"link_id"`
	OrderID    uint   `form:"order_id"`
	Status     string `form:"status"`
	Offset     int    `form:"offset" binding:"omitempty,min=0"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (q listQuery) filter() store.Filter {
	return store.Filter{
		ConsumerID: q.ConsumerID,
		SupplierID: q.SupplierID,
		LinkID:     q.LinkID,
		OrderID:    q.OrderID,
		Status:     model.State(q.Status),
		Offset:     q.Offset,
		Limit:      q.Limit,
	}
}

func bindList(c *gin.Context) (store.Filter, bool) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return store.Filter{}, false
	}
	return q.filter(), true
}

func listLinks(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, valid := bindList(c)
		if !valid {
			return
		}
		list, err := st.ListLinks(c.Request.Context(), f)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, list)
	}
}

func listOrders(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, valid := bindList(c)
		if !valid {
			return
		}
		list, err := st.ListOrders(c.Request.Context(), f)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, list)
	}
}

func listComplaints(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, valid := bindList(c)
		if !valid {
			return
		}
		list, err := st.ListComplaints(c.Request.Context(), f)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, list)
	}
}

// getRecord 查询单条记录
func getRecord(st *store.Store, kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		rec, err := st.Get(c.Request.Context(), kind, id)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, rec)
	}
}

// listLogs 记录的审计流水，由审计消费者异步写入，可能略有延迟。
func listLogs(st *store.Store, kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := parseID(c)
		if !valid {
			return
		}
		if _, err := st.Get(c.Request.Context(), kind, id); err != nil {
			fail(c, err)
			return
		}
		logs, err := st.ListLogs(c.Request.Context(), kind, id)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, logs)
	}
}

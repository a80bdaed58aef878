package handler

import (
	"errors"
	"strconv"
	"time"

	"salonsystem/internal/config"
	"salonsystem/internal/repository"
	"salonsystem/internal/service"
	"salonsystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	memberService      *service.MemberService
	orderService       *service.OrderService
	appointmentService *service.AppointmentService
	catalogService     *service.CatalogService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		memberService:      service.NewMemberService(db, rdb, cfg),
		orderService:       service.NewOrderService(db, rdb, cfg),
		appointmentService: service.NewAppointmentService(db),
		catalogService:     service.NewCatalogService(db),
	}
}

// handleServiceError 把服务层错误映射为业务错误码
func (h *Handler) handleServiceError(c *gin.Context, err error) {
	var insufficientErr *service.InsufficientBalanceError
	if errors.As(err, &insufficientErr) {
		response.Error(c, response.CodeBalanceNotEnough, insufficientErr.Error())
		return
	}

	switch {
	case errors.Is(err, repository.ErrMemberNotFound):
		response.Error(c, response.CodeMemberNotFound, err.Error())
	case errors.Is(err, repository.ErrOrderNotFound):
		response.Error(c, response.CodeOrderNotFound, err.Error())
	case errors.Is(err, repository.ErrAppointmentNotFound),
		errors.Is(err, repository.ErrStaffNotFound):
		response.Error(c, response.CodeAppointmentNotFound, err.Error())
	case errors.Is(err, repository.ErrServiceNotFound):
		response.Error(c, response.CodeServiceNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicatePhone):
		response.Error(c, response.CodeDuplicatePhone, err.Error())
	case errors.Is(err, service.ErrDuplicateOrderNumber),
		errors.Is(err, service.ErrDuplicateAppointmentOrder):
		response.Error(c, response.CodeDuplicateOrder, err.Error())
	case errors.Is(err, service.ErrDuplicateServiceName):
		response.Error(c, response.CodeDuplicateService, err.Error())
	case errors.Is(err, service.ErrOrderAlreadyPaid):
		response.Error(c, response.CodeOrderAlreadyPaid, err.Error())
	case errors.Is(err, service.ErrAppointmentConflict):
		response.Error(c, response.CodeAppointmentConflict, err.Error())
	case errors.Is(err, service.ErrInvalidStatus):
		response.Error(c, response.CodeStatusInvalid, err.Error())
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidGiftAmount),
		errors.Is(err, service.ErrInvalidDiscount),
		errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrEmptyOrderItems),
		errors.Is(err, service.ErrNotMemberOrder):
		response.ParamError(c, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	return page, pageSize
}

func parseDateQuery(c *gin.Context, name string) *time.Time {
	value := c.Query(name)
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}

// ============================================================
// 会员相关接口
// ============================================================

// CreateMember 创建会员
// POST /api/v1/members
func (h *Handler) CreateMember(c *gin.Context) {
	var req service.CreateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	member, err := h.memberService.CreateMember(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, member)
}

// GetMember 查询会员详情
// GET /api/v1/members/:id
func (h *Handler) GetMember(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	member, err := h.memberService.GetMember(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, member)
}

// ListMembers 查询会员列表
// GET /api/v1/members?search=xxx&page=1&page_size=10
func (h *Handler) ListMembers(c *gin.Context) {
	page, pageSize := parsePagination(c)

	members, total, err := h.memberService.ListMembers(c.Request.Context(), c.Query("search"), page, pageSize)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      members,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UpdateMember 更新会员资料（余额字段不可经此修改）
// PUT /api/v1/members/:id
func (h *Handler) UpdateMember(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req service.UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	member, err := h.memberService.UpdateMember(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, member)
}

// Recharge 会员充值
// POST /api/v1/members/:id/recharge
//
// 【关键点】充值本金进充值余额，赠金进赠金余额；
// 余额变动和流水记录必须同时成功或同时失败
func (h *Handler) Recharge(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req service.RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.memberService.Recharge(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// Consume 直接余额消费（不经订单，固定赠金优先扣减）
// POST /api/v1/members/:id/consume
func (h *Handler) Consume(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req service.ConsumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.memberService.Consume(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// GetMemberStats 查询会员概览
// GET /api/v1/members/:id/stats
func (h *Handler) GetMemberStats(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	stats, err := h.memberService.GetMemberStats(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, stats)
}

// ListTransactions 查询会员流水
// GET /api/v1/members/:id/transactions?type=RECHARGE&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	page, pageSize := parsePagination(c)

	transactions, total, err := h.memberService.ListTransactions(
		c.Request.Context(), id, c.Query("type"), page, pageSize)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 订单相关接口
// ============================================================

// CreateOrder 创建订单（只计算金额，不扣余额）
// POST /api/v1/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, order)
}

// GetOrder 查询订单详情
// GET /api/v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, order)
}

// ListOrders 查询订单列表
// GET /api/v1/orders?status=PENDING&page=1&page_size=10
func (h *Handler) ListOrders(c *gin.Context) {
	page, pageSize := parsePagination(c)

	filter := repository.OrderListFilter{
		Status:        c.Query("status"),
		OrderNumber:   c.Query("order_number"),
		CustomerPhone: c.Query("customer_phone"),
		StartDate:     parseDateQuery(c, "start_date"),
		EndDate:       parseDateQuery(c, "end_date"),
	}

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// PayOrderRequest 订单结算请求
type PayOrderRequest struct {
	OperatorName string `json:"operator_name"`
}

// PayOrder 订单结算
// POST /api/v1/orders/:id/pay
//
// 【关键点】结算是整个系统最核心的操作，需要保证：
// 1. 原子性：余额扣减、订单状态更新、流水记录必须同时成功或同时失败
// 2. 并发安全：通过分布式锁 + 行锁防止同一会员并发扣款超扣
// 3. 扣减策略：按下单时快照的赠金折扣开关和扣减顺序执行
func (h *Handler) PayOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// 请求体可为空，operator_name 可选
	var req PayOrderRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.orderService.PayOrder(c.Request.Context(), id, req.OperatorName)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, order)
}

// PreviewOrder 订单试算（只读，给前端展示报价）
// POST /api/v1/orders/preview
func (h *Handler) PreviewOrder(c *gin.Context) {
	var req service.PreviewOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	preview, err := h.orderService.PreviewOrder(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, preview)
}

// ============================================================
// 预约相关接口
// ============================================================

// CreateAppointment 创建预约
// POST /api/v1/appointments
func (h *Handler) CreateAppointment(c *gin.Context) {
	var req service.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	appointment, err := h.appointmentService.CreateAppointment(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, appointment)
}

// GetAppointment 查询预约详情
// GET /api/v1/appointments/:id
func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	appointment, err := h.appointmentService.GetAppointment(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, appointment)
}

// ListAppointments 查询预约列表
// GET /api/v1/appointments?status=CONFIRMED&staff_id=1&page=1&page_size=10
func (h *Handler) ListAppointments(c *gin.Context) {
	page, pageSize := parsePagination(c)

	staffID, _ := strconv.ParseInt(c.Query("staff_id"), 10, 64)
	memberID, _ := strconv.ParseInt(c.Query("member_id"), 10, 64)

	filter := repository.AppointmentListFilter{
		Status:    c.Query("status"),
		StaffID:   staffID,
		MemberID:  memberID,
		StartDate: parseDateQuery(c, "start_date"),
		EndDate:   parseDateQuery(c, "end_date"),
	}

	appointments, total, err := h.appointmentService.ListAppointments(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      appointments,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UpdateAppointmentStatusRequest 预约状态更新请求
type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateAppointmentStatus 更新预约状态
// PUT /api/v1/appointments/:id/status
func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	appointment, err := h.appointmentService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, appointment)
}

// ============================================================
// 服务项目相关接口
// ============================================================

// CreateService 创建服务项目
// POST /api/v1/services
func (h *Handler) CreateService(c *gin.Context) {
	var req service.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	svc, err := h.catalogService.CreateService(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, svc)
}

// GetService 查询服务项目详情
// GET /api/v1/services/:id
func (h *Handler) GetService(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	svc, err := h.catalogService.GetService(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, svc)
}

// ListServices 查询服务项目列表
// GET /api/v1/services?search=xxx&category=nail&page=1&page_size=10
func (h *Handler) ListServices(c *gin.Context) {
	page, pageSize := parsePagination(c)

	filter := repository.ServiceListFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
	}
	if value := c.Query("is_active"); value != "" {
		isActive := value == "true"
		filter.IsActive = &isActive
	}

	services, total, err := h.catalogService.ListServices(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      services,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UpdateService 更新服务项目
// PUT /api/v1/services/:id
func (h *Handler) UpdateService(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req service.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	svc, err := h.catalogService.UpdateService(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, svc)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"salonsystem/internal/config"
	"salonsystem/internal/infrastructure/lock"
	"salonsystem/internal/model"
	"salonsystem/internal/repository"
	"salonsystem/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	orderRepo       *repository.OrderRepository
	memberRepo      *repository.MemberRepository
	transactionRepo *repository.TransactionRepository
	appointmentRepo *repository.AppointmentRepository
	outboxRepo      *repository.OutboxRepository
}

func NewOrderService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *OrderService {
	return &OrderService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		orderRepo:       repository.NewOrderRepository(db),
		memberRepo:      repository.NewMemberRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		appointmentRepo: repository.NewAppointmentRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type OrderItemRequest struct {
	ServiceName  string          `json:"service_name" binding:"required"`
	ServiceStaff string          `json:"service_staff"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
}

type CreateOrderRequest struct {
	OrderNumber         string             `json:"order_number" binding:"required"`
	MemberID            *int64             `json:"member_id"`
	AppointmentID       *int64             `json:"appointment_id"`
	CustomerName        string             `json:"customer_name"`
	CustomerPhone       string             `json:"customer_phone"`
	MaleCount           int                `json:"male_count"`
	FemaleCount         int                `json:"female_count"`
	Source              string             `json:"source"`
	OrderItems          []OrderItemRequest `json:"order_items" binding:"required"`
	GiftDiscountEnabled *bool              `json:"gift_discount_enabled"`
	DeductionOrder      string             `json:"deduction_order"`
	Notes               string             `json:"notes"`
	OperatorName        string             `json:"operator_name"`
}

// CreateOrder 创建订单
//
// 只做金额计算和折扣快照，不碰任何余额；余额扣减发生在 PayOrder
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.Order, error) {
	if len(req.OrderItems) == 0 {
		return nil, ErrEmptyOrderItems
	}

	deductionOrder := req.DeductionOrder
	if deductionOrder == "" {
		deductionOrder = model.DeductionGiftFirst
	}
	if !model.IsValidDeductionOrder(deductionOrder) {
		return nil, fmt.Errorf("扣减顺序不合法: %s", deductionOrder)
	}

	// 手工单号唯一性
	existing, err := s.orderRepo.GetByOrderNumber(ctx, req.OrderNumber)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateOrderNumber
	}

	// 一个预约至多一个订单
	if req.AppointmentID != nil {
		if _, err := s.appointmentRepo.GetByID(ctx, *req.AppointmentID); err != nil {
			return nil, err
		}
		appointmentOrder, err := s.orderRepo.GetByAppointmentID(ctx, *req.AppointmentID)
		if err != nil {
			return nil, fmt.Errorf("查询预约订单失败: %w", err)
		}
		if appointmentOrder != nil {
			return nil, ErrDuplicateAppointmentOrder
		}
	}

	totalAmount := decimal.Zero
	items := make([]model.OrderItem, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		if item.UnitPrice.LessThanOrEqual(decimal.Zero) {
			return nil, ErrInvalidAmount
		}
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
		totalAmount = totalAmount.Add(subtotal)
		items = append(items, model.OrderItem{
			ServiceName:  item.ServiceName,
			ServiceStaff: item.ServiceStaff,
			UnitPrice:    item.UnitPrice,
			Quantity:     quantity,
			Subtotal:     subtotal,
		})
	}

	// 会员折扣在创建订单时快照，后续改会员折扣不影响本单
	memberDiscount := decimal.NewFromInt(1)
	if req.MemberID != nil {
		member, err := s.memberRepo.GetByID(ctx, *req.MemberID)
		if err != nil {
			return nil, err
		}
		memberDiscount = member.MemberDiscount
	}

	discountAmount := totalAmount.Mul(decimal.NewFromInt(1).Sub(memberDiscount)).Round(2)
	actualAmount := totalAmount.Sub(discountAmount)

	giftDiscountEnabled := true
	if req.GiftDiscountEnabled != nil {
		giftDiscountEnabled = *req.GiftDiscountEnabled
	}

	source := req.Source
	if source == "" {
		source = model.OrderSourceManual
	}

	order := &model.Order{
		OrderNumber:         req.OrderNumber,
		MemberID:            req.MemberID,
		AppointmentID:       req.AppointmentID,
		CustomerName:        req.CustomerName,
		CustomerPhone:       req.CustomerPhone,
		MaleCount:           req.MaleCount,
		FemaleCount:         req.FemaleCount,
		Source:              source,
		TotalAmount:         totalAmount,
		MemberDiscount:      memberDiscount,
		DiscountAmount:      discountAmount,
		ActualAmount:        actualAmount,
		GiftDiscountEnabled: giftDiscountEnabled,
		DeductionOrder:      deductionOrder,
		Status:              model.OrderStatusPending,
		Notes:               req.Notes,
		OperatorName:        req.OperatorName,
		OrderItems:          items,
	}

	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		return nil, fmt.Errorf("创建订单失败: %w", err)
	}

	return order, nil
}

// PayOrder 订单结算（会员余额支付）
//
// 【关键点】结算是整个系统最核心的操作，需要保证：
// 1. 终态性：已支付的订单再次支付必须失败，且不产生任何余额变动
// 2. 原子性：余额扣减、订单状态翻转、流水落库、预约完成必须同时成功或同时失败
// 3. 并发安全：分布式锁 + 行锁重读，防止同一会员并发扣减超支
func (s *OrderService) PayOrder(ctx context.Context, orderID int64, operatorName string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != model.OrderStatusPending {
		return nil, ErrOrderAlreadyPaid
	}

	if order.MemberID == nil {
		return nil, ErrNotMemberOrder
	}
	memberID := *order.MemberID

	transactionNo := idgen.GenerateTransactionNo()

	balanceLock := lock.NewMemberBalanceLock(s.redisClient, memberID, transactionNo)
	if err := balanceLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer balanceLock.Unlock(ctx)

	var settlement SettlementResult
	var trans *model.Transaction

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		// 行锁重读会员，结算必须基于最新余额计算
		member, err := s.memberRepo.GetByIDForUpdate(ctx, tx, memberID)
		if err != nil {
			return err
		}

		settlement, err = ComputeSettlement(SettlementInput{
			TotalAmount:         order.TotalAmount,
			ActualAmount:        order.ActualAmount,
			MemberDiscount:      order.MemberDiscount,
			GiftDiscountEnabled: order.GiftDiscountEnabled,
			DeductionOrder:      order.DeductionOrder,
			RechargeBalance:     member.RechargeBalance,
			BonusBalance:        member.BonusBalance,
		})
		if err != nil {
			return err
		}

		balanceBefore := member.TotalBalance()

		now := time.Now()
		// 订单结算只累计消费额，不计入现金消费
		if err := s.memberRepo.ApplyDeduction(ctx, tx, memberID,
			settlement.RechargePaid, settlement.GiftPaid, order.ActualAmount, decimal.Zero, now); err != nil {
			return fmt.Errorf("余额扣减失败: %w", err)
		}

		if err := s.orderRepo.MarkPaid(ctx, tx, order.ID,
			order.ActualAmount, settlement.RechargePaid, settlement.GiftPaid); err != nil {
			if errors.Is(err, repository.ErrOrderStatusInvalid) {
				return ErrOrderAlreadyPaid
			}
			return fmt.Errorf("更新订单状态失败: %w", err)
		}

		snapshots := make([]model.ServiceItemSnapshot, 0, len(order.OrderItems))
		for _, item := range order.OrderItems {
			snapshots = append(snapshots, model.ServiceItemSnapshot{
				ServiceName:  item.ServiceName,
				ServiceStaff: item.ServiceStaff,
				UnitPrice:    item.UnitPrice,
				Quantity:     item.Quantity,
				Subtotal:     item.Subtotal,
			})
		}

		trans = &model.Transaction{
			TransactionNo:       transactionNo,
			MemberID:            memberID,
			OrderID:             &order.ID,
			AppointmentID:       order.AppointmentID,
			Type:                model.TransactionTypeConsume,
			Amount:              order.ActualAmount,
			BalanceBefore:       balanceBefore,
			BalanceAfter:        balanceBefore.Sub(order.ActualAmount),
			PaymentMethod:       model.PaymentMethodBalance,
			Description:         fmt.Sprintf("消费订单 %s", order.OrderNumber),
			OperatorName:        operatorName,
			OriginalAmount:      order.TotalAmount,
			MemberDiscount:      order.MemberDiscount,
			DiscountAmount:      order.DiscountAmount,
			GiftDiscountEnabled: order.GiftDiscountEnabled,
			DeductionOrder:      order.DeductionOrder,
			RechargePaid:        settlement.RechargePaid,
			GiftPaid:            settlement.GiftPaid,
			ServiceItems:        snapshots,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		// 关联预约随结算一起完成
		if order.AppointmentID != nil {
			if err := s.appointmentRepo.UpdateStatus(ctx, tx, *order.AppointmentID, model.AppointmentStatusCompleted); err != nil {
				return fmt.Errorf("更新预约状态失败: %w", err)
			}
		}

		payload := map[string]interface{}{
			"event":          "order_paid",
			"order_id":       order.ID,
			"order_number":   order.OrderNumber,
			"member_id":      memberID,
			"transaction_no": transactionNo,
			"paid_amount":    order.ActualAmount,
			"recharge_paid":  settlement.RechargePaid,
			"gift_paid":      settlement.GiftPaid,
			"paid_at":        now.Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(payload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: order.OrderNumber,
			Topic:      s.cfg.Kafka.Topic.OrderPaid,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})

	if txErr != nil {
		return nil, txErr
	}

	log.Printf("订单结算成功: orderNumber=%s, memberID=%d, actualAmount=%s, rechargePaid=%s, giftPaid=%s",
		order.OrderNumber, memberID, order.ActualAmount.StringFixed(2),
		settlement.RechargePaid.StringFixed(2), settlement.GiftPaid.StringFixed(2))

	order.Status = model.OrderStatusPaid
	order.PaidAmount = order.ActualAmount
	order.RechargePaid = settlement.RechargePaid
	order.GiftPaid = settlement.GiftPaid
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.orderRepo.GetByID(ctx, orderID)
}

func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderListFilter, page, pageSize int) ([]*model.Order, int64, error) {
	return s.orderRepo.List(ctx, filter, page, pageSize)
}

type PreviewOrderRequest struct {
	MemberID   *int64             `json:"member_id"`
	OrderItems []OrderItemRequest `json:"order_items" binding:"required"`
}

type BalanceInfo struct {
	RechargeBalance decimal.Decimal `json:"recharge_balance"`
	BonusBalance    decimal.Decimal `json:"bonus_balance"`
	TotalBalance    decimal.Decimal `json:"total_balance"`
	Sufficient      bool            `json:"sufficient"`
}

type OrderPreview struct {
	TotalAmount    decimal.Decimal `json:"total_amount"`
	MemberDiscount decimal.Decimal `json:"member_discount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ActualAmount   decimal.Decimal `json:"actual_amount"`
	BalanceInfo    *BalanceInfo    `json:"balance_info,omitempty"`
}

// PreviewOrder 订单试算，只读不落库，给前端展示报价用
func (s *OrderService) PreviewOrder(ctx context.Context, req *PreviewOrderRequest) (*OrderPreview, error) {
	if len(req.OrderItems) == 0 {
		return nil, ErrEmptyOrderItems
	}

	totalAmount := decimal.Zero
	for _, item := range req.OrderItems {
		if item.UnitPrice.LessThanOrEqual(decimal.Zero) {
			return nil, ErrInvalidAmount
		}
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		totalAmount = totalAmount.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))))
	}

	memberDiscount := decimal.NewFromInt(1)
	var balanceInfo *BalanceInfo

	if req.MemberID != nil {
		member, err := s.memberRepo.GetByID(ctx, *req.MemberID)
		if err != nil {
			return nil, err
		}
		memberDiscount = member.MemberDiscount

		discountAmount := totalAmount.Mul(decimal.NewFromInt(1).Sub(memberDiscount)).Round(2)
		actualAmount := totalAmount.Sub(discountAmount)
		balanceInfo = &BalanceInfo{
			RechargeBalance: member.RechargeBalance,
			BonusBalance:    member.BonusBalance,
			TotalBalance:    member.TotalBalance(),
			Sufficient:      member.TotalBalance().GreaterThanOrEqual(actualAmount),
		}
	}

	discountAmount := totalAmount.Mul(decimal.NewFromInt(1).Sub(memberDiscount)).Round(2)
	actualAmount := totalAmount.Sub(discountAmount)

	return &OrderPreview{
		TotalAmount:    totalAmount,
		MemberDiscount: memberDiscount,
		DiscountAmount: discountAmount,
		ActualAmount:   actualAmount,
		BalanceInfo:    balanceInfo,
	}, nil
}

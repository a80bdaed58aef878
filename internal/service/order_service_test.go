package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"salonsystem/internal/config"
	"salonsystem/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupOrderService(t *testing.T) (*OrderService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{}
	cfg.Kafka.Topic.MemberEvents = "member_events"
	cfg.Kafka.Topic.OrderPaid = "order_paid"

	return NewOrderService(gormDB, redisClient, cfg), mock
}

func orderColumns() []string {
	return []string{
		"id", "order_number", "member_id", "appointment_id", "status",
		"total_amount", "member_discount", "discount_amount", "actual_amount",
		"gift_discount_enabled", "deduction_order",
	}
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc, _ := setupOrderService(t)

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OrderNumber: "A001",
	})
	assert.ErrorIs(t, err, ErrEmptyOrderItems)
}

func TestCreateOrder_InvalidDeductionOrder(t *testing.T) {
	svc, _ := setupOrderService(t)

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OrderNumber:    "A001",
		DeductionOrder: "BONUS_FIRST",
		OrderItems: []OrderItemRequest{
			{ServiceName: "美甲", UnitPrice: decimal.RequireFromString("100")},
		},
	})
	assert.Error(t, err)
}

func TestCreateOrder_DuplicateOrderNumber(t *testing.T) {
	svc, mock := setupOrderService(t)

	mock.ExpectQuery("SELECT (.+) FROM `order`").
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(1, "A001", nil, nil, "PENDING", "100", "1.00", "0", "100", true, "GIFT_FIRST"))

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OrderNumber: "A001",
		OrderItems: []OrderItemRequest{
			{ServiceName: "美甲", UnitPrice: decimal.RequireFromString("100")},
		},
	})
	assert.ErrorIs(t, err, ErrDuplicateOrderNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_InvalidItemPrice(t *testing.T) {
	svc, mock := setupOrderService(t)

	mock.ExpectQuery("SELECT (.+) FROM `order`").
		WillReturnRows(sqlmock.NewRows(orderColumns()))

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		OrderNumber: "A001",
		OrderItems: []OrderItemRequest{
			{ServiceName: "美甲", UnitPrice: decimal.Zero},
		},
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPayOrder_NotFound(t *testing.T) {
	svc, mock := setupOrderService(t)

	mock.ExpectQuery("SELECT (.+) FROM `order`").
		WillReturnRows(sqlmock.NewRows(orderColumns()))

	_, err := svc.PayOrder(context.Background(), 99, "店长")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestPayOrder_AlreadyPaid(t *testing.T) {
	svc, mock := setupOrderService(t)

	// 已支付订单：只有订单和明细两次查询，不会开启事务
	mock.ExpectQuery("SELECT (.+) FROM `order`").
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(1, "A001", nil, nil, "PAID", "200", "0.90", "20", "180", true, "GIFT_FIRST"))
	mock.ExpectQuery("SELECT (.+) FROM `order_item`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "service_name", "unit_price", "quantity", "subtotal"}))

	_, err := svc.PayOrder(context.Background(), 1, "店长")
	assert.ErrorIs(t, err, ErrOrderAlreadyPaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayOrder_NotMemberOrder(t *testing.T) {
	svc, mock := setupOrderService(t)

	mock.ExpectQuery("SELECT (.+) FROM `order`").
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(1, "A001", nil, nil, "PENDING", "200", "1.00", "0", "200", true, "GIFT_FIRST"))
	mock.ExpectQuery("SELECT (.+) FROM `order_item`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "service_name", "unit_price", "quantity", "subtotal"}))

	_, err := svc.PayOrder(context.Background(), 1, "店长")
	assert.ErrorIs(t, err, ErrNotMemberOrder)
}

func TestPayOrder_Success_GiftFirst(t *testing.T) {
	svc, mock := setupOrderService(t)
	// gorm 的 Preload 执行顺序不固定
	mock.MatchExpectationsInOrder(false)

	// 订单：原价200 折扣0.9 应付180，赠金参与折扣，赠金优先
	mock.ExpectQuery("SELECT (.+) FROM `order` WHERE").
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(1, "A001", 1, nil, "PENDING", "200", "0.90", "20", "180", true, "GIFT_FIRST"))
	mock.ExpectQuery("SELECT (.+) FROM `order_item`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "service_name", "unit_price", "quantity", "subtotal"}).
			AddRow(1, 1, "美甲", "200", 1, "200"))
	mock.ExpectQuery("SELECT (.+) FROM `member` WHERE").
		WillReturnRows(sqlmock.NewRows(memberColumns()).
			AddRow(1, "小美", "13800138000", "0.90", "100", "100", "0", "0", 0))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `member` (.+)FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(memberColumns()).
			AddRow(1, "小美", "13800138000", "0.90", "100", "100", "0", "0", 0))
	mock.ExpectExec("UPDATE `member` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `order` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `transaction`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `outbox_message`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	order, err := svc.PayOrder(context.Background(), 1, "店长")
	require.NoError(t, err)

	// 赠金100先扣完，充值余额补80，两池之和精确等于应付180
	assert.Equal(t, "PAID", order.Status)
	assert.True(t, order.GiftPaid.Equal(decimal.RequireFromString("100")))
	assert.True(t, order.RechargePaid.Equal(decimal.RequireFromString("80")))
	assert.True(t, order.PaidAmount.Equal(decimal.RequireFromString("180")))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayOrder_CompletesLinkedAppointment(t *testing.T) {
	svc, mock := setupOrderService(t)
	mock.MatchExpectationsInOrder(false)

	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.Local)

	// 预约单结算：订单关联预约9，支付成功时预约必须在同一事务内翻转为已完成
	mock.ExpectQuery("SELECT (.+) FROM `order` WHERE").
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(1, "A001", 1, 9, "PENDING", "200", "0.90", "20", "180", true, "GIFT_FIRST"))
	mock.ExpectQuery("SELECT (.+) FROM `order_item`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "service_name", "unit_price", "quantity", "subtotal"}).
			AddRow(1, 1, "美甲", "200", 1, "200"))
	mock.ExpectQuery("SELECT (.+) FROM `member` WHERE").
		WillReturnRows(sqlmock.NewRows(memberColumns()).
			AddRow(1, "小美", "13800138000", "0.90", "100", "100", "0", "0", 0))
	mock.ExpectQuery("SELECT (.+) FROM `appointment` WHERE").
		WillReturnRows(sqlmock.NewRows(appointmentColumns()).
			AddRow(9, 1, 1, "小美", "13800138000", "美甲", 90,
				start, start.Add(90*time.Minute), "CONFIRMED"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `member` (.+)FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(memberColumns()).
			AddRow(1, "小美", "13800138000", "0.90", "100", "100", "0", "0", 0))
	mock.ExpectExec("UPDATE `member` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `order` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `transaction`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `appointment` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `outbox_message`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	order, err := svc.PayOrder(context.Background(), 1, "店长")
	require.NoError(t, err)

	assert.Equal(t, "PAID", order.Status)
	require.NotNil(t, order.AppointmentID)
	assert.Equal(t, int64(9), *order.AppointmentID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayOrder_InsufficientBalance_AppointmentUntouched(t *testing.T) {
	svc, mock := setupOrderService(t)
	mock.MatchExpectationsInOrder(false)

	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.Local)

	// 余额不足导致结算回滚时，关联预约不能被改成已完成
	mock.ExpectQuery("SELECT (.+) FROM `order` WHERE").
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(1, "A001", 1, 9, "PENDING", "200", "0.90", "20", "180", true, "GIFT_FIRST"))
	mock.ExpectQuery("SELECT (.+) FROM `order_item`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "service_name", "unit_price", "quantity", "subtotal"}).
			AddRow(1, 1, "美甲", "200", 1, "200"))
	mock.ExpectQuery("SELECT (.+) FROM `member` WHERE").
		WillReturnRows(sqlmock.NewRows(memberColumns()).
			AddRow(1, "小美", "13800138000", "0.90", "100", "50", "0", "0", 0))
	mock.ExpectQuery("SELECT (.+) FROM `appointment` WHERE").
		WillReturnRows(sqlmock.NewRows(appointmentColumns()).
			AddRow(9, 1, 1, "小美", "13800138000", "美甲", 90,
				start, start.Add(90*time.Minute), "CONFIRMED"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `member` (.+)FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(memberColumns()).
			AddRow(1, "小美", "13800138000", "0.90", "100", "50", "0", "0", 0))
	mock.ExpectRollback()

	_, err := svc.PayOrder(context.Background(), 1, "店长")

	var insufficientErr *InsufficientBalanceError
	require.True(t, errors.As(err, &insufficientErr))

	// 没有任何 UPDATE `appointment` 被执行，预约保持原状态
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayOrder_InsufficientBalance(t *testing.T) {
	svc, mock := setupOrderService(t)
	mock.MatchExpectationsInOrder(false)

	// 应付180，会员总余额150，结算引擎拒绝后事务回滚，订单和余额均不变
	mock.ExpectQuery("SELECT (.+) FROM `order` WHERE").
		WillReturnRows(sqlmock.NewRows(orderColumns()).
			AddRow(1, "A001", 1, nil, "PENDING", "200", "0.90", "20", "180", true, "GIFT_FIRST"))
	mock.ExpectQuery("SELECT (.+) FROM `order_item`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "service_name", "unit_price", "quantity", "subtotal"}).
			AddRow(1, 1, "美甲", "200", 1, "200"))
	mock.ExpectQuery("SELECT (.+) FROM `member` WHERE").
		WillReturnRows(sqlmock.NewRows(memberColumns()).
			AddRow(1, "小美", "13800138000", "0.90", "100", "50", "0", "0", 0))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `member` (.+)FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(memberColumns()).
			AddRow(1, "小美", "13800138000", "0.90", "100", "50", "0", "0", 0))
	mock.ExpectRollback()

	_, err := svc.PayOrder(context.Background(), 1, "店长")

	var insufficientErr *InsufficientBalanceError
	require.True(t, errors.As(err, &insufficientErr))
	assert.True(t, insufficientErr.Required.Equal(decimal.RequireFromString("180")))
	assert.True(t, insufficientErr.Available.Equal(decimal.RequireFromString("150")))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreviewOrder(t *testing.T) {
	svc, mock := setupOrderService(t)

	memberID := int64(1)
	mock.ExpectQuery("SELECT (.+) FROM `member`").
		WillReturnRows(sqlmock.NewRows(memberColumns()).
			AddRow(1, "小美", "13800138000", "0.90", "100", "100", "0", "0", 0))

	preview, err := svc.PreviewOrder(context.Background(), &PreviewOrderRequest{
		MemberID: &memberID,
		OrderItems: []OrderItemRequest{
			{ServiceName: "美甲", UnitPrice: decimal.RequireFromString("100"), Quantity: 2},
		},
	})
	require.NoError(t, err)

	assert.True(t, preview.TotalAmount.Equal(decimal.RequireFromString("200")))
	assert.True(t, preview.DiscountAmount.Equal(decimal.RequireFromString("20")))
	assert.True(t, preview.ActualAmount.Equal(decimal.RequireFromString("180")))
	require.NotNil(t, preview.BalanceInfo)
	assert.True(t, preview.BalanceInfo.TotalBalance.Equal(decimal.RequireFromString("200")))
	assert.True(t, preview.BalanceInfo.Sufficient)
}

func TestPreviewOrder_NonMember(t *testing.T) {
	svc, _ := setupOrderService(t)

	preview, err := svc.PreviewOrder(context.Background(), &PreviewOrderRequest{
		OrderItems: []OrderItemRequest{
			{ServiceName: "美甲", UnitPrice: decimal.RequireFromString("88")},
		},
	})
	require.NoError(t, err)

	// 非会员无折扣
	assert.True(t, preview.TotalAmount.Equal(decimal.RequireFromString("88")))
	assert.True(t, preview.ActualAmount.Equal(decimal.RequireFromString("88")))
	assert.Nil(t, preview.BalanceInfo)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
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

var (
	phoneRegex = regexp.MustCompile(`^1[3-9]\d{9}$`)
	emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

type MemberService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	memberRepo      *repository.MemberRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewMemberService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *MemberService {
	return &MemberService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		memberRepo:      repository.NewMemberRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type CreateMemberRequest struct {
	Name           string          `json:"name" binding:"required"`
	Phone          string          `json:"phone" binding:"required"`
	Email          string          `json:"email"`
	Birthday       *time.Time      `json:"birthday"`
	Gender         string          `json:"gender"`
	Address        string          `json:"address"`
	MemberDiscount decimal.Decimal `json:"member_discount"`
	Notes          string          `json:"notes"`
}

func (s *MemberService) CreateMember(ctx context.Context, req *CreateMemberRequest) (*model.Member, error) {
	if !phoneRegex.MatchString(req.Phone) {
		return nil, ErrInvalidPhone
	}
	if req.Email != "" && !emailRegex.MatchString(req.Email) {
		return nil, ErrInvalidEmail
	}

	discount := req.MemberDiscount
	if discount.IsZero() {
		discount = decimal.NewFromInt(1)
	}
	if !model.IsValidDiscount(discount) {
		return nil, ErrInvalidDiscount
	}

	existing, err := s.memberRepo.GetByPhone(ctx, req.Phone)
	if err != nil {
		return nil, fmt.Errorf("查询会员失败: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicatePhone
	}

	member := &model.Member{
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		Birthday:       req.Birthday,
		Gender:         req.Gender,
		Address:        req.Address,
		MemberDiscount: discount,
		Notes:          req.Notes,
	}

	if err := s.memberRepo.Create(ctx, member); err != nil {
		return nil, fmt.Errorf("创建会员失败: %w", err)
	}

	return member, nil
}

func (s *MemberService) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	return s.memberRepo.GetByID(ctx, id)
}

func (s *MemberService) ListMembers(ctx context.Context, search string, page, pageSize int) ([]*model.Member, int64, error) {
	return s.memberRepo.List(ctx, search, page, pageSize)
}

// UpdateMemberRequest 会员资料更新，只开放这里列出的字段
// 余额、累计消费等资金字段只能由充值/消费/结算操作变动，不在白名单内
type UpdateMemberRequest struct {
	Name           *string          `json:"name"`
	Email          *string          `json:"email"`
	Birthday       *time.Time       `json:"birthday"`
	Gender         *string          `json:"gender"`
	Address        *string          `json:"address"`
	MemberDiscount *decimal.Decimal `json:"member_discount"`
	Notes          *string          `json:"notes"`
}

func (s *MemberService) UpdateMember(ctx context.Context, id int64, req *UpdateMemberRequest) (*model.Member, error) {
	updates := map[string]interface{}{}

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		if *req.Email != "" && !emailRegex.MatchString(*req.Email) {
			return nil, ErrInvalidEmail
		}
		updates["email"] = *req.Email
	}
	if req.Birthday != nil {
		updates["birthday"] = *req.Birthday
	}
	if req.Gender != nil {
		updates["gender"] = *req.Gender
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.MemberDiscount != nil {
		if !model.IsValidDiscount(*req.MemberDiscount) {
			return nil, ErrInvalidDiscount
		}
		updates["member_discount"] = *req.MemberDiscount
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if len(updates) > 0 {
		if err := s.memberRepo.UpdateProfile(ctx, id, updates); err != nil {
			return nil, err
		}
	}

	return s.memberRepo.GetByID(ctx, id)
}

type RechargeRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	GiftAmount    decimal.Decimal `json:"gift_amount"`
	PaymentMethod string          `json:"payment_method" binding:"required"`
	Description   string          `json:"description"`
	OperatorName  string          `json:"operator_name"`
}

type BalanceChangeResult struct {
	Member      *model.Member      `json:"member"`
	Transaction *model.Transaction `json:"transaction"`
}

// Recharge 会员充值
//
// 【关键点】充值金额进充值余额，赠金进赠金余额，两个池分开记账；
// 余额变动和流水落库必须同时成功或同时失败
func (s *MemberService) Recharge(ctx context.Context, memberID int64, req *RechargeRequest) (*BalanceChangeResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if req.GiftAmount.IsNegative() {
		return nil, ErrInvalidGiftAmount
	}

	if _, err := s.memberRepo.GetByID(ctx, memberID); err != nil {
		return nil, err
	}

	transactionNo := idgen.GenerateTransactionNo()

	// 同一会员的余额变动串行化
	balanceLock := lock.NewMemberBalanceLock(s.redisClient, memberID, transactionNo)
	if err := balanceLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer balanceLock.Unlock(ctx)

	var result BalanceChangeResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 行锁重读，拿到最新余额
		member, err := s.memberRepo.GetByIDForUpdate(ctx, tx, memberID)
		if err != nil {
			return err
		}

		balanceBefore := member.TotalBalance()
		balanceAfter := balanceBefore.Add(req.Amount).Add(req.GiftAmount)

		if err := s.memberRepo.ApplyRecharge(ctx, tx, memberID, req.Amount, req.GiftAmount); err != nil {
			return fmt.Errorf("充值入账失败: %w", err)
		}

		description := req.Description
		if description == "" {
			description = fmt.Sprintf("充值 ¥%s", req.Amount.StringFixed(2))
		}

		trans := &model.Transaction{
			TransactionNo: transactionNo,
			MemberID:      memberID,
			Type:          model.TransactionTypeRecharge,
			Amount:        req.Amount,
			GiftAmount:    req.GiftAmount,
			BalanceBefore: balanceBefore,
			BalanceAfter:  balanceAfter,
			PaymentMethod: req.PaymentMethod,
			Description:   description,
			OperatorName:  req.OperatorName,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := s.writeMemberEvent(ctx, tx, "recharge", member, trans); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		member.RechargeBalance = member.RechargeBalance.Add(req.Amount)
		member.BonusBalance = member.BonusBalance.Add(req.GiftAmount)
		result.Member = member
		result.Transaction = trans
		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("充值成功: memberID=%d, amount=%s, gift=%s, transactionNo=%s",
		memberID, req.Amount.StringFixed(2), req.GiftAmount.StringFixed(2), transactionNo)

	return &result, nil
}

type ConsumeRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	AppointmentID *int64          `json:"appointment_id"`
	OperatorName  string          `json:"operator_name"`
}

// Consume 直接余额消费（无订单场景）
//
// 扣减规则固定为赠金优先，与订单结算的可配置策略是两个独立的产品口径
func (s *MemberService) Consume(ctx context.Context, memberID int64, req *ConsumeRequest) (*BalanceChangeResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	if _, err := s.memberRepo.GetByID(ctx, memberID); err != nil {
		return nil, err
	}

	transactionNo := idgen.GenerateTransactionNo()

	balanceLock := lock.NewMemberBalanceLock(s.redisClient, memberID, transactionNo)
	if err := balanceLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer balanceLock.Unlock(ctx)

	var result BalanceChangeResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		member, err := s.memberRepo.GetByIDForUpdate(ctx, tx, memberID)
		if err != nil {
			return err
		}

		balanceBefore := member.TotalBalance()
		if balanceBefore.LessThan(req.Amount) {
			return &InsufficientBalanceError{
				Required:  req.Amount,
				Available: balanceBefore,
			}
		}

		rechargePart, giftPart := SplitDirectConsume(req.Amount, member.RechargeBalance, member.BonusBalance)

		// 余额支付不计入现金消费
		now := time.Now()
		if err := s.memberRepo.ApplyDeduction(ctx, tx, memberID, rechargePart, giftPart, req.Amount, decimal.Zero, now); err != nil {
			return fmt.Errorf("余额扣减失败: %w", err)
		}

		description := req.Description
		if description == "" {
			description = fmt.Sprintf("消费 ¥%s", req.Amount.StringFixed(2))
		}

		trans := &model.Transaction{
			TransactionNo: transactionNo,
			MemberID:      memberID,
			AppointmentID: req.AppointmentID,
			Type:          model.TransactionTypeConsume,
			Amount:        req.Amount,
			BalanceBefore: balanceBefore,
			BalanceAfter:  balanceBefore.Sub(req.Amount),
			PaymentMethod: model.PaymentMethodBalance,
			Description:   description,
			OperatorName:  req.OperatorName,
			RechargePaid:  rechargePart,
			GiftPaid:      giftPart,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := s.writeMemberEvent(ctx, tx, "consume", member, trans); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		member.RechargeBalance = member.RechargeBalance.Sub(rechargePart)
		member.BonusBalance = member.BonusBalance.Sub(giftPart)
		member.TotalSpent = member.TotalSpent.Add(req.Amount)
		member.VisitCount++
		member.LastVisit = &now
		result.Member = member
		result.Transaction = trans
		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("消费成功: memberID=%d, amount=%s, transactionNo=%s",
		memberID, req.Amount.StringFixed(2), transactionNo)

	return &result, nil
}

func (s *MemberService) ListTransactions(ctx context.Context, memberID int64, transType string, page, pageSize int) ([]*model.Transaction, int64, error) {
	return s.transactionRepo.ListByMemberID(ctx, memberID, transType, page, pageSize)
}

// MemberStats 会员概览，给前台工作台展示
type MemberStats struct {
	MemberID           int64           `json:"member_id"`
	Name               string          `json:"name"`
	Phone              string          `json:"phone"`
	MemberDiscount     decimal.Decimal `json:"member_discount"`
	RechargeBalance    decimal.Decimal `json:"recharge_balance"`
	BonusBalance       decimal.Decimal `json:"bonus_balance"`
	TotalBalance       decimal.Decimal `json:"total_balance"`
	TotalSpent         decimal.Decimal `json:"total_spent"`
	CashSpent          decimal.Decimal `json:"cash_spent"`
	VisitCount         int             `json:"visit_count"`
	RecentTransactions int64           `json:"recent_transactions"` // 最近30天流水笔数
	LastVisit          *time.Time      `json:"last_visit"`
	JoinDate           time.Time       `json:"join_date"`
}

func (s *MemberService) GetMemberStats(ctx context.Context, memberID int64) (*MemberStats, error) {
	member, err := s.memberRepo.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -30)
	recentCount, err := s.transactionRepo.CountRecentByMemberID(ctx, memberID, since)
	if err != nil {
		return nil, fmt.Errorf("统计会员流水失败: %w", err)
	}

	return &MemberStats{
		MemberID:           member.ID,
		Name:               member.Name,
		Phone:              member.Phone,
		MemberDiscount:     member.MemberDiscount,
		RechargeBalance:    member.RechargeBalance,
		BonusBalance:       member.BonusBalance,
		TotalBalance:       member.TotalBalance(),
		TotalSpent:         member.TotalSpent,
		CashSpent:          member.CashSpent,
		VisitCount:         member.VisitCount,
		RecentTransactions: recentCount,
		LastVisit:          member.LastVisit,
		JoinDate:           member.JoinDate,
	}, nil
}

// writeMemberEvent 把余额变动事件写入 outbox，随业务事务一起提交
func (s *MemberService) writeMemberEvent(ctx context.Context, tx *gorm.DB, event string, member *model.Member, trans *model.Transaction) error {
	payload := map[string]interface{}{
		"event":          event,
		"member_id":      member.ID,
		"transaction_no": trans.TransactionNo,
		"type":           trans.Type,
		"amount":         trans.Amount,
		"gift_amount":    trans.GiftAmount,
		"balance_before": trans.BalanceBefore,
		"balance_after":  trans.BalanceAfter,
		"occurred_at":    time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: trans.TransactionNo,
		Topic:      s.cfg.Kafka.Topic.MemberEvents,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	return s.outboxRepo.Create(ctx, tx, msg)
}

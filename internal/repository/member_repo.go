package repository

import (
	"context"
	"errors"
	"time"

	"salonsystem/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMemberNotFound = errors.New("会员不存在")
	ErrBalanceChanged = errors.New("余额已变动，扣减被拒绝")
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Create(ctx context.Context, member *model.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// GetByPhone 按手机号查会员，不存在时返回 (nil, nil)
func (r *MemberRepository) GetByPhone(ctx context.Context, phone string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByIDForUpdate 在事务内加行锁读取会员
//
// 【关键点】余额扣减前必须用它重读会员：没有行锁的话，两个并发的扣减
// 会基于同一份旧余额通过充足性检查，联合超扣
func (r *MemberRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Member, error) {
	var member model.Member
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// ApplyRecharge 充值入账：充值余额和赠金余额各自增加
func (r *MemberRepository) ApplyRecharge(ctx context.Context, tx *gorm.DB, memberID int64, amount, giftAmount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Member{}).
		Where("id = ?", memberID).
		Updates(map[string]interface{}{
			"recharge_balance": gorm.Expr("recharge_balance + ?", amount),
			"bonus_balance":    gorm.Expr("bonus_balance + ?", giftAmount),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// ApplyDeduction 消费扣减：按结算引擎算出的两个资金池扣减额落库，
// 同时更新累计消费、（可选）现金消费、到店次数和最近到店时间
//
// WHERE 条件带上余额下限，作为行锁之外的最后一道防线：
// 任何情况下都不允许把余额扣成负数
func (r *MemberRepository) ApplyDeduction(
	ctx context.Context,
	tx *gorm.DB,
	memberID int64,
	rechargePaid, giftPaid, spentAmount, cashSpentAmount decimal.Decimal,
	visitTime time.Time,
) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Member{}).
		Where("id = ? AND recharge_balance >= ? AND bonus_balance >= ?", memberID, rechargePaid, giftPaid).
		Updates(map[string]interface{}{
			"recharge_balance": gorm.Expr("recharge_balance - ?", rechargePaid),
			"bonus_balance":    gorm.Expr("bonus_balance - ?", giftPaid),
			"total_spent":      gorm.Expr("total_spent + ?", spentAmount),
			"cash_spent":       gorm.Expr("cash_spent + ?", cashSpentAmount),
			"visit_count":      gorm.Expr("visit_count + 1"),
			"last_visit":       visitTime,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBalanceChanged
	}
	return nil
}

// UpdateProfile 更新会员资料，updates 由服务层按白名单字段构造
func (r *MemberRepository) UpdateProfile(ctx context.Context, id int64, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.Member{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *MemberRepository) List(ctx context.Context, search string, page, pageSize int) ([]*model.Member, int64, error) {
	var members []*model.Member
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Member{})
	if search != "" {
		query = query.Where("name LIKE ? OR phone LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&members).Error

	return members, total, err
}

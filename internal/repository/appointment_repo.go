package repository

import (
	"context"
	"errors"
	"time"

	"salonsystem/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAppointmentNotFound = errors.New("预约不存在")
	ErrStaffNotFound       = errors.New("员工不存在")
)

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	return r.db.WithContext(ctx).Create(appointment).Error
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (*model.Appointment, error) {
	var appointment model.Appointment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &appointment, nil
}

// UpdateStatus 更新预约状态。订单结算在事务内用它把预约置为 COMPLETED
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, status string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("id = ?", id).
		Update("status", status)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// FindConflicts 查询与给定时段重叠、且还会占用排期的预约
func (r *AppointmentRepository) FindConflicts(ctx context.Context, staffID int64, startTime, endTime time.Time) ([]*model.Appointment, error) {
	var appointments []*model.Appointment
	err := r.db.WithContext(ctx).
		Where("staff_id = ?", staffID).
		Where("status NOT IN ?", []string{model.AppointmentStatusCancelled, model.AppointmentStatusCompleted}).
		Where("start_time < ? AND end_time > ?", endTime, startTime).
		Find(&appointments).Error
	return appointments, err
}

// GetOverdueAppointments 查询已过结束时间但仍停在 PENDING/CONFIRMED 的预约
func (r *AppointmentRepository) GetOverdueAppointments(ctx context.Context, before time.Time, limit int) ([]*model.Appointment, error) {
	var appointments []*model.Appointment
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{model.AppointmentStatusPending, model.AppointmentStatusConfirmed}).
		Where("end_time < ?", before).
		Limit(limit).
		Find(&appointments).Error
	return appointments, err
}

type AppointmentListFilter struct {
	Status    string
	StaffID   int64
	MemberID  int64
	StartDate *time.Time
	EndDate   *time.Time
}

func (r *AppointmentRepository) List(ctx context.Context, filter AppointmentListFilter, page, pageSize int) ([]*model.Appointment, int64, error) {
	var appointments []*model.Appointment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Appointment{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.StaffID > 0 {
		query = query.Where("staff_id = ?", filter.StaffID)
	}
	if filter.MemberID > 0 {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if filter.StartDate != nil {
		query = query.Where("start_time >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("start_time <= ?", *filter.EndDate)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("start_time ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&appointments).Error

	return appointments, total, err
}

// GetStaffByID 员工存在性检查（创建预约时用）
func (r *AppointmentRepository) GetStaffByID(ctx context.Context, id int64) (*model.Staff, error) {
	var staff model.Staff
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&staff).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStaffNotFound
		}
		return nil, err
	}
	return &staff, nil
}

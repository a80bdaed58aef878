package service

import (
	"context"
	"testing"
	"time"

	"salonsystem/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAppointmentService(t *testing.T) (*AppointmentService, sqlmock.Sqlmock) {
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

	return NewAppointmentService(gormDB), mock
}

func staffRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "phone", "is_active"}).
		AddRow(1, "Tony", "13900139000", true)
}

func appointmentColumns() []string {
	return []string{
		"id", "member_id", "staff_id", "customer_name", "customer_phone",
		"service_name", "duration", "start_time", "end_time", "status",
	}
}

func TestCreateAppointment_Conflict(t *testing.T) {
	svc, mock := setupAppointmentService(t)

	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.Local)

	mock.ExpectQuery("SELECT (.+) FROM `staff`").WillReturnRows(staffRows())
	// 同一员工已有重叠时段的预约
	mock.ExpectQuery("SELECT (.+) FROM `appointment`").
		WillReturnRows(sqlmock.NewRows(appointmentColumns()).
			AddRow(7, nil, 1, "别人", "13700137000", "美甲", 60,
				start.Add(-30*time.Minute), start.Add(30*time.Minute), "CONFIRMED"))

	_, err := svc.CreateAppointment(context.Background(), &CreateAppointmentRequest{
		StaffID:       1,
		CustomerName:  "小美",
		CustomerPhone: "13800138000",
		ServiceName:   "美甲",
		Duration:      60,
		StartTime:     start,
	})
	assert.ErrorIs(t, err, ErrAppointmentConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointment_Success(t *testing.T) {
	svc, mock := setupAppointmentService(t)

	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.Local)

	mock.ExpectQuery("SELECT (.+) FROM `staff`").WillReturnRows(staffRows())
	mock.ExpectQuery("SELECT (.+) FROM `appointment`").
		WillReturnRows(sqlmock.NewRows(appointmentColumns()))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `appointment`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	appointment, err := svc.CreateAppointment(context.Background(), &CreateAppointmentRequest{
		StaffID:       1,
		CustomerName:  "小美",
		CustomerPhone: "13800138000",
		ServiceName:   "美甲",
		Duration:      90,
		StartTime:     start,
	})
	require.NoError(t, err)

	// 结束时间 = 开始时间 + 时长
	assert.Equal(t, start.Add(90*time.Minute), appointment.EndTime)
	assert.Equal(t, model.AppointmentStatusPending, appointment.Status)
	assert.Equal(t, 1, appointment.GuestCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatus_Invalid(t *testing.T) {
	svc, _ := setupAppointmentService(t)

	_, err := svc.UpdateStatus(context.Background(), 1, "NO_SHOW")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

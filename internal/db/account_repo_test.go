package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stashbox/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

func assertAppErrCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, code, appErr.Code)
}

// --- AccountRepository Tests ---

func TestAccountRepository_Create_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepository(db)

	subID := "sub_abc123"
	acc := &types.Account{
		ID:                  "acc_test123",
		BusinessName:        "Acme Widgets",
		BusinessInformation: "Purveyors of fine widgets",
		SubscriptionID:      &subID,
	}

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Create(context.Background(), acc)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAccountRepository_Create_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepository(db)

	acc := &types.Account{
		ID:           "acc_test123",
		BusinessName: "Acme Widgets",
	}

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Create(context.Background(), acc)
	assertAppErrCode(t, err, types.ErrCodeInternalDB)
}

func TestAccountRepository_GetByID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepository(db)

	now := time.Now().UTC()
	subID := "sub_linked"
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*string) = "acc_found"
			*dest[1].(*string) = "Acme Widgets"
			*dest[2].(*string) = "Some details"
			*dest[3].(**string) = &subID
			*dest[4].(*time.Time) = now
			*dest[5].(*time.Time) = now
			return nil
		},
	}

	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	acc, err := repo.GetByID(context.Background(), "acc_found")
	require.NoError(t, err)
	assert.Equal(t, "acc_found", acc.ID)
	assert.Equal(t, "Acme Widgets", acc.BusinessName)
	require.NotNil(t, acc.SubscriptionID)
	assert.Equal(t, "sub_linked", *acc.SubscriptionID)
}

func TestAccountRepository_GetByID_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepository(db)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.GetByID(context.Background(), "acc_nonexistent")
	assertAppErrCode(t, err, types.ErrCodeNotFoundAccount)
}

func TestAccountRepository_GetByID_InfraErrorPassthrough(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepository(db)

	// Errors already classified downstream (circuit breaker open) must not be
	// re-wrapped as internal_database_error.
	row := &mockRow{
		scanErr: types.NewAppError(types.ErrCodeInfraUnavailable, "database unavailable", nil),
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.GetByID(context.Background(), "acc_any")
	assertAppErrCode(t, err, types.ErrCodeInfraUnavailable)
}

func TestAccountRepository_Update_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.Update(context.Background(), &types.Account{
		ID:           "acc_test123",
		BusinessName: "Acme Widgets (Renamed)",
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAccountRepository_Update_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.Update(context.Background(), &types.Account{ID: "acc_gone"})
	assertAppErrCode(t, err, types.ErrCodeNotFoundAccount)
}

func TestAccountRepository_SetSubscriptionID_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	subID := "sub_new"
	err := repo.SetSubscriptionID(context.Background(), "acc_test123", &subID)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAccountRepository_SetSubscriptionID_Clear(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.SetSubscriptionID(context.Background(), "acc_test123", nil)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAccountRepository_Delete_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	err := repo.Delete(context.Background(), "acc_test123")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestAccountRepository_Delete_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAccountRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.Delete(context.Background(), "acc_gone")
	assertAppErrCode(t, err, types.ErrCodeNotFoundAccount)
}

func TestWrapDBError_Timeout(t *testing.T) {
	err := wrapDBError(context.DeadlineExceeded, "failed to query")
	assertAppErrCode(t, err, types.ErrCodeInfraTimeout)
}

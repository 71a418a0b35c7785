package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/assetcart/pkg/db"
	"github.com/angelmondragon/assetcart/pkg/db/models"
	pkgerrors "github.com/angelmondragon/assetcart/pkg/errors"
	"github.com/angelmondragon/assetcart/pkg/idempotency"
	pkgredis "github.com/angelmondragon/assetcart/pkg/redis"
)

type stubOrdersRepo struct {
	records   map[uuid.UUID]*models.OrderRecord
	creates   int
	createErr error
	findErr   error
	// blockCreate makes Create wait for ctx to end, like a stalled insert.
	blockCreate bool
}

func newStubRepo() *stubOrdersRepo {
	return &stubOrdersRepo{records: map[uuid.UUID]*models.OrderRecord{}}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.OrderRecord) error {
	s.creates++
	if s.blockCreate {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.createErr != nil {
		return s.createErr
	}
	s.records[order.ID] = order
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.OrderRecord, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	record, ok := s.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return record, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubGuard struct {
	marked    map[uuid.UUID]bool
	lookupErr error
}

func (g *stubGuard) Processed(ctx context.Context, consumer string, id uuid.UUID) (bool, error) {
	if g.lookupErr != nil {
		return false, g.lookupErr
	}
	return g.marked[id], nil
}

func (g *stubGuard) MarkProcessed(ctx context.Context, consumer string, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.marked[id] = true
	return nil
}

func TestProcessInsertsOnce(t *testing.T) {
	repo := newStubRepo()
	guard := &stubGuard{marked: map[uuid.UUID]bool{}}
	svc, err := NewService(repo, stubTxRunner{}, guard, nil)
	require.NoError(t, err)

	order := sampleOrder()
	require.NoError(t, svc.Process(context.Background(), order))
	require.NoError(t, svc.Process(context.Background(), order))

	assert.Equal(t, 1, repo.creates)
	assert.Contains(t, repo.records, order.ID)
}

func TestProcessSkipsExistingRowWithoutGuard(t *testing.T) {
	repo := newStubRepo()
	svc, err := NewService(repo, stubTxRunner{}, nil, nil)
	require.NoError(t, err)

	order := sampleOrder()
	require.NoError(t, svc.Process(context.Background(), order))
	require.NoError(t, svc.Process(context.Background(), order))
	assert.Equal(t, 1, repo.creates)
}

func TestProcessFailureLeavesNoMark(t *testing.T) {
	repo := newStubRepo()
	repo.createErr = errors.New("connection reset")
	guard := &stubGuard{marked: map[uuid.UUID]bool{}}
	svc, err := NewService(repo, stubTxRunner{}, guard, nil)
	require.NoError(t, err)

	order := sampleOrder()
	err = svc.Process(context.Background(), order)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.False(t, guard.marked[order.ID])

	repo.createErr = nil
	require.NoError(t, svc.Process(context.Background(), order))
	assert.Contains(t, repo.records, order.ID)
	assert.True(t, guard.marked[order.ID])
}

func TestProcessMarksAfterCommitEvenWhenCallerCancels(t *testing.T) {
	repo := newStubRepo()
	guard := &stubGuard{marked: map[uuid.UUID]bool{}}
	svc, err := NewService(repo, cancelAfterTx{}, guard, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	order := sampleOrder()
	require.NoError(t, svc.Process(context.WithValue(ctx, cancelKey{}, cancel), order))
	assert.True(t, guard.marked[order.ID], "committed order must be marked")
}

type cancelKey struct{}

// cancelAfterTx cancels the caller's context right after the transaction commits.
type cancelAfterTx struct{}

func (cancelAfterTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := fn(nil)
	if cancel, ok := ctx.Value(cancelKey{}).(context.CancelFunc); ok {
		cancel()
	}
	return err
}

func TestProcessRetryAfterTimedOutInsertRecordsOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = redisClient.Close() })
	guard, err := idempotency.NewManager(redisClient, time.Hour)
	require.NoError(t, err)

	repo := newStubRepo()
	repo.blockCreate = true
	svc, err := NewService(repo, stubTxRunner{}, guard, nil)
	require.NoError(t, err)

	order := sampleOrder()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = svc.Process(ctx, order)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.False(t, mr.Exists("ac:idempotency:order:processed:orders:"+order.ID.String()))

	repo.blockCreate = false
	require.NoError(t, svc.Process(context.Background(), order))
	assert.Equal(t, 2, repo.creates)

	got, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestProcessTreatsUniqueViolationAsRecorded(t *testing.T) {
	repo := newStubRepo()
	repo.createErr = errors.New("UNIQUE constraint failed: orders.id")
	guard := &stubGuard{marked: map[uuid.UUID]bool{}}
	svc, err := NewService(repo, stubTxRunner{}, guard, nil)
	require.NoError(t, err)

	order := sampleOrder()
	require.NoError(t, svc.Process(context.Background(), order))
	assert.True(t, guard.marked[order.ID])
}

func TestProcessFallsBackToTableWhenGuardLookupFails(t *testing.T) {
	repo := newStubRepo()
	guard := &stubGuard{marked: map[uuid.UUID]bool{}, lookupErr: errors.New("redis down")}
	svc, err := NewService(repo, stubTxRunner{}, guard, nil)
	require.NoError(t, err)

	order := sampleOrder()
	require.NoError(t, svc.Process(context.Background(), order))
	require.NoError(t, svc.Process(context.Background(), order))
	assert.Equal(t, 1, repo.creates)
}

func TestProcessValidatesOrder(t *testing.T) {
	svc, err := NewService(newStubRepo(), stubTxRunner{}, nil, nil)
	require.NoError(t, err)

	assert.True(t, pkgerrors.IsCode(svc.Process(context.Background(), Order{}), pkgerrors.CodeValidation))

	empty := sampleOrder()
	empty.Items = nil
	assert.True(t, pkgerrors.IsCode(svc.Process(context.Background(), empty), pkgerrors.CodeValidation))
}

func TestGetMapsErrors(t *testing.T) {
	repo := newStubRepo()
	svc, err := NewService(repo, stubTxRunner{}, nil, nil)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Get(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	repo.findErr = errors.New("timeout")
	_, err = svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, stubTxRunner{}, nil, nil)
	assert.Error(t, err)
	_, err = NewService(newStubRepo(), nil, nil, nil)
	assert.Error(t, err)
}

func TestProcessAgainstSQLiteAndRedis(t *testing.T) {
	conn := setupOrdersTestDB(t)
	mr := miniredis.RunT(t)
	redisClient := pkgredis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = redisClient.Close() })

	guard, err := idempotency.NewManager(redisClient, time.Hour)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), db.Wrap(conn), guard, nil)
	require.NoError(t, err)

	ctx := context.Background()
	order := sampleOrder()
	require.NoError(t, svc.Process(ctx, order))
	require.NoError(t, svc.Process(ctx, order))

	var count int64
	require.NoError(t, conn.Model(&models.OrderRecord{}).Where("id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.True(t, mr.Exists("ac:idempotency:order:processed:orders:"+order.ID.String()))

	got, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	assert.True(t, got.Subtotal.Equal(order.Subtotal))
}

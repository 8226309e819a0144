//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"blood-connect/backend/internal/model"
	"blood-connect/backend/internal/repository"
	"blood-connect/backend/pkg/database"
	pkgerrors "blood-connect/backend/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=blood_connect password=blood_connect_password dbname=blood_connect_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot connect to test database: %v\n", err)
		os.Exit(1)
	}

	// same path as production: embedded golang-migrate SQL
	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "get sql.DB: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "migrations failed: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

func pgRequest(t *testing.T) *model.BloodRequest {
	t.Helper()
	now := time.Now()
	req := &model.BloodRequest{
		BloodRequestID: fmt.Sprintf("it-%d", now.UnixNano()),
		HospitalID:     fmt.Sprintf("hospital-%d", now.UnixNano()),
		HospitalName:   "Integration Hospital",
		BloodType:      "O-",
		Units:          3,
		Urgency:        model.UrgencyEmergency,
		RequestedAt:    now.UTC(),
		Status:         model.RequestStatusActive,
		Position:       now.UnixNano(),
		Responses:      model.DonorResponses{},
	}
	if err := repository.NewBloodRequestRepo(testDB).Create(context.Background(), req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	t.Cleanup(func() {
		testDB.Where("blood_request_id = ?", req.BloodRequestID).Delete(&model.BloodRequest{})
		testDB.Where("blood_request_id = ?", req.BloodRequestID).Delete(&model.HospitalRequestIndex{})
		testDB.Where("blood_request_id = ?", req.BloodRequestID).Delete(&model.ActiveRequestIndex{})
	})
	return req
}

// ═══════════════════════════════════════════════════════════
// Test: Optimistic Lock
// ═══════════════════════════════════════════════════════════

func TestOptimisticLock_BloodRequest_ConflictDetected(t *testing.T) {
	req := pgRequest(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	copy1, _ := repo.BloodRequest.GetByID(ctx, req.BloodRequestID)
	copy2, _ := repo.BloodRequest.GetByID(ctx, req.BloodRequestID)

	copy1.Status = model.RequestStatusFulfilled
	if err := repo.BloodRequest.Update(ctx, copy1); err != nil {
		t.Fatalf("first update should succeed: %v", err)
	}

	copy2.Notes = "late writer"
	if err := repo.BloodRequest.Update(ctx, copy2); err != pkgerrors.ErrOptimisticLock {
		t.Errorf("expected ErrOptimisticLock, got: %v", err)
	}
}

func TestOptimisticLock_ConcurrentWritersOneWins(t *testing.T) {
	req := pgRequest(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < writers; i++ {
		got, err := repo.BloodRequest.GetByID(ctx, req.BloodRequestID)
		if err != nil {
			t.Fatal(err)
		}
		wg.Add(1)
		go func(r *model.BloodRequest, i int) {
			defer wg.Done()
			r.Notes = fmt.Sprintf("writer-%d", i)
			if err := repo.BloodRequest.Update(ctx, r); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(got, i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winning writer, got %d", wins)
	}
}

func TestResponses_JSONBRoundTrip(t *testing.T) {
	req := pgRequest(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	req.Responses = model.DonorResponses{
		{ResponseID: "r1", DonorID: "d1", DonorName: "A", Status: model.ResponseStatusPending, RespondedAt: time.Now().UTC()},
		{ResponseID: "r2", DonorID: "d2", DonorName: "B", Status: model.ResponseStatusAccepted, RespondedAt: time.Now().UTC()},
	}
	if err := repo.BloodRequest.Update(ctx, req); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.BloodRequest.GetByID(ctx, req.BloodRequestID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Responses) != 2 || got.Responses[0].ResponseID != "r1" || got.Responses[1].Status != model.ResponseStatusAccepted {
		t.Errorf("responses did not round-trip: %+v", got.Responses)
	}
}

func TestDelete_RemovesIndexRows(t *testing.T) {
	req := pgRequest(t)
	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	if err := repo.BloodRequest.Delete(ctx, req); err != nil {
		t.Fatalf("delete: %v", err)
	}

	ids, _ := repo.BloodRequest.ListHospitalIndex(ctx, req.HospitalID)
	if len(ids) != 0 {
		t.Errorf("hospital index should be empty, got %v", ids)
	}
	var n int64
	testDB.Model(&model.ActiveRequestIndex{}).Where("blood_request_id = ?", req.BloodRequestID).Count(&n)
	if n != 0 {
		t.Errorf("active index row should be gone, count=%d", n)
	}
}

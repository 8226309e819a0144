package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blood-connect/backend/internal/model"
	pkgerrors "blood-connect/backend/pkg/errors"
)

// BloodRequestRepository is the request store: blood request records plus
// the per-hospital and active-request indices. Only this repository writes
// the index tables.
type BloodRequestRepository interface {
	Create(ctx context.Context, req *model.BloodRequest) error
	GetByID(ctx context.Context, id string) (*model.BloodRequest, error)
	GetMany(ctx context.Context, ids []string) ([]model.BloodRequest, error)
	Update(ctx context.Context, req *model.BloodRequest) error
	Delete(ctx context.Context, req *model.BloodRequest) error

	ListHospitalIndex(ctx context.Context, hospitalID string) ([]string, error)
	ListActiveIndex(ctx context.Context) ([]string, error)
	AddToActiveIndex(ctx context.Context, id string, position int64) error
	RemoveFromActiveIndex(ctx context.Context, id string) error

	ReconcileIndices(ctx context.Context) (*IndexRepairReport, error)
}

// IndexRepairReport counts what a reconciliation pass changed.
type IndexRepairReport struct {
	DanglingHospitalEntries int // hospital index rows without a matching record
	DanglingActiveEntries   int // active index rows without a record
	StaleActiveEntries      int // active index rows whose record is no longer active
	MissingHospitalEntries  int
	MissingActiveEntries    int
}

// Total number of repaired entries.
func (r *IndexRepairReport) Total() int {
	return r.DanglingHospitalEntries + r.DanglingActiveEntries + r.StaleActiveEntries +
		r.MissingHospitalEntries + r.MissingActiveEntries
}

type bloodRequestRepo struct {
	db *gorm.DB
}

func NewBloodRequestRepo(db *gorm.DB) BloodRequestRepository {
	return &bloodRequestRepo{db: db}
}

// ────────────────────── records ──────────────────────

// Create persists the record and appends it to both indices in one transaction.
func (r *bloodRequestRepo) Create(ctx context.Context, req *model.BloodRequest) error {
	if req.Version == 0 {
		req.Version = 1
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(req).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.HospitalRequestIndex{
			HospitalID:     req.HospitalID,
			BloodRequestID: req.BloodRequestID,
			Position:       req.Position,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&model.ActiveRequestIndex{
			BloodRequestID: req.BloodRequestID,
			Position:       req.Position,
		}).Error
	})
}

func (r *bloodRequestRepo) GetByID(ctx context.Context, id string) (*model.BloodRequest, error) {
	var req model.BloodRequest
	err := r.db.WithContext(ctx).Where("blood_request_id = ?", id).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetMany resolves ids in the given order; ids without a record are skipped.
func (r *bloodRequestRepo) GetMany(ctx context.Context, ids []string) ([]model.BloodRequest, error) {
	if len(ids) == 0 {
		return []model.BloodRequest{}, nil
	}

	var rows []model.BloodRequest
	if err := r.db.WithContext(ctx).Where("blood_request_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]int, len(rows))
	for i := range rows {
		byID[rows[i].BloodRequestID] = i
	}
	out := make([]model.BloodRequest, 0, len(rows))
	for _, id := range ids {
		if i, ok := byID[id]; ok {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

// Update overwrites the mutable columns if the stored version still equals
// req.Version, then bumps req.Version. Indices are left untouched.
func (r *bloodRequestRepo) Update(ctx context.Context, req *model.BloodRequest) error {
	oldVersion := req.Version
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.BloodRequest{}).
		Where("blood_request_id = ? AND version = ?", req.BloodRequestID, oldVersion).
		Updates(map[string]interface{}{
			"blood_type":     req.BloodType,
			"units":          req.Units,
			"urgency":        req.Urgency,
			"patient_info":   req.PatientInfo,
			"contact_person": req.ContactPerson,
			"contact_phone":  req.ContactPhone,
			"notes":          req.Notes,
			"status":         req.Status,
			"responses":      req.Responses,
			"updated_at":     now,
			"version":        oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	req.Version = oldVersion + 1
	req.UpdatedAt = now
	return nil
}

// Delete removes the record (guarded by version) and its index entries
// atomically.
func (r *bloodRequestRepo) Delete(ctx context.Context, req *model.BloodRequest) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("blood_request_id = ? AND version = ?", req.BloodRequestID, req.Version).
			Delete(&model.BloodRequest{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}
		if err := tx.Where("blood_request_id = ?", req.BloodRequestID).
			Delete(&model.HospitalRequestIndex{}).Error; err != nil {
			return err
		}
		return tx.Where("blood_request_id = ?", req.BloodRequestID).
			Delete(&model.ActiveRequestIndex{}).Error
	})
}

// ────────────────────── indices ──────────────────────

func (r *bloodRequestRepo) ListHospitalIndex(ctx context.Context, hospitalID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.HospitalRequestIndex{}).
		Where("hospital_id = ?", hospitalID).
		Order("position DESC").
		Pluck("blood_request_id", &ids).Error
	return ids, err
}

func (r *bloodRequestRepo) ListActiveIndex(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.ActiveRequestIndex{}).
		Order("position DESC").
		Pluck("blood_request_id", &ids).Error
	return ids, err
}

func (r *bloodRequestRepo) AddToActiveIndex(ctx context.Context, id string, position int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ActiveRequestIndex{BloodRequestID: id, Position: position}).Error
}

func (r *bloodRequestRepo) RemoveFromActiveIndex(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("blood_request_id = ?", id).
		Delete(&model.ActiveRequestIndex{}).Error
}

// ────────────────────── reconciliation ──────────────────────

type requestIndexState struct {
	BloodRequestID string
	HospitalID     string
	Status         string
	Position       int64
}

// ReconcileIndices makes both indices agree with the stored records.
// Index rows are read before records so a request created mid-pass shows up
// as "missing" (re-inserted, no-op on conflict) rather than "dangling".
// Running it twice in a row yields an empty second report.
func (r *bloodRequestRepo) ReconcileIndices(ctx context.Context) (*IndexRepairReport, error) {
	db := r.db.WithContext(ctx)

	var hospitalRows []model.HospitalRequestIndex
	if err := db.Find(&hospitalRows).Error; err != nil {
		return nil, err
	}
	var activeRows []model.ActiveRequestIndex
	if err := db.Find(&activeRows).Error; err != nil {
		return nil, err
	}
	var records []requestIndexState
	if err := db.Model(&model.BloodRequest{}).
		Select("blood_request_id, hospital_id, status, position").
		Scan(&records).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]requestIndexState, len(records))
	for _, rec := range records {
		byID[rec.BloodRequestID] = rec
	}

	report := &IndexRepairReport{}
	var dropHospital []model.HospitalRequestIndex
	hasHospital := make(map[string]bool, len(hospitalRows))
	for _, row := range hospitalRows {
		rec, ok := byID[row.BloodRequestID]
		if !ok || rec.HospitalID != row.HospitalID {
			dropHospital = append(dropHospital, row)
			continue
		}
		hasHospital[row.BloodRequestID] = true
	}
	report.DanglingHospitalEntries = len(dropHospital)

	var dropActive []string
	hasActive := make(map[string]bool, len(activeRows))
	for _, row := range activeRows {
		rec, ok := byID[row.BloodRequestID]
		switch {
		case !ok:
			report.DanglingActiveEntries++
			dropActive = append(dropActive, row.BloodRequestID)
		case rec.Status != model.RequestStatusActive:
			report.StaleActiveEntries++
			dropActive = append(dropActive, row.BloodRequestID)
		default:
			hasActive[row.BloodRequestID] = true
		}
	}

	var addHospital []model.HospitalRequestIndex
	var addActive []model.ActiveRequestIndex
	for _, rec := range records {
		if !hasHospital[rec.BloodRequestID] {
			addHospital = append(addHospital, model.HospitalRequestIndex{
				HospitalID:     rec.HospitalID,
				BloodRequestID: rec.BloodRequestID,
				Position:       rec.Position,
			})
		}
		if rec.Status == model.RequestStatusActive && !hasActive[rec.BloodRequestID] {
			addActive = append(addActive, model.ActiveRequestIndex{
				BloodRequestID: rec.BloodRequestID,
				Position:       rec.Position,
			})
		}
	}
	report.MissingHospitalEntries = len(addHospital)
	report.MissingActiveEntries = len(addActive)

	if report.Total() == 0 {
		return report, nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, row := range dropHospital {
			if err := tx.Where("hospital_id = ? AND blood_request_id = ?", row.HospitalID, row.BloodRequestID).
				Delete(&model.HospitalRequestIndex{}).Error; err != nil {
				return err
			}
		}
		if len(dropActive) > 0 {
			if err := tx.Where("blood_request_id IN ?", dropActive).
				Delete(&model.ActiveRequestIndex{}).Error; err != nil {
				return err
			}
		}
		if len(addHospital) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&addHospital).Error; err != nil {
				return err
			}
		}
		if len(addActive) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&addActive).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

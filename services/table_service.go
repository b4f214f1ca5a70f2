package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yeremiapane/cafe-pos/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultZone = "interior"

// TableService is the persistent store of tables (mesas).
type TableService struct {
	DB *gorm.DB
}

func NewTableService(db *gorm.DB) *TableService {
	return &TableService{DB: db}
}

type TableInput struct {
	Code     string          `json:"code"`
	Number   int             `json:"number"`
	Name     string          `json:"name"`
	Capacity int             `json:"capacity"`
	Zone     string          `json:"zone"`
	State    string          `json:"state"`
	Detail   json.RawMessage `json:"detail"`
}

// TablePatch -> hanya field yang dikirim yang diubah
type TablePatch struct {
	Code     *string `json:"code"`
	Number   *int    `json:"number"`
	Name     *string `json:"name"`
	Capacity *int    `json:"capacity"`
	Zone     *string `json:"zone"`
}

// ListActive returns active tables ordered by number.
func (s *TableService) ListActive(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	err := s.DB.WithContext(ctx).
		Where("active = ?", true).
		Order("number ASC").Order("id ASC").
		Find(&tables).Error
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

func (s *TableService) Get(ctx context.Context, id uint) (*models.Table, error) {
	var table models.Table
	err := s.DB.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&table).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get table %d: %w", id, err)
	}
	return &table, nil
}

func (s *TableService) Create(ctx context.Context, in TableInput) (*models.Table, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return nil, &ValidationError{Field: "code", Message: "is required"}
	}
	if in.Capacity == 0 {
		in.Capacity = 4
	}
	if in.Capacity < 0 {
		return nil, &ValidationError{Field: "capacity", Message: "must be positive"}
	}
	if in.State == "" {
		in.State = models.TableAvailable
	}
	state, err := NormalizeState(in.State)
	if err != nil {
		return nil, err
	}
	now := s.DB.NowFunc()
	detail, err := normalizeDetail(state, in.Detail, now)
	if err != nil {
		return nil, err
	}

	table := models.Table{
		Code:     code,
		Number:   in.Number,
		Name:     in.Name,
		Capacity: in.Capacity,
		Zone:     zoneOrDefault(in.Zone),
		State:    state,
		Detail:   detail,
		Active:   true,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCodeFree(tx, code, 0); err != nil {
			return err
		}
		return tx.Create(&table).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrDuplicateCode
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (s *TableService) Update(ctx context.Context, id uint, patch TablePatch) (*models.Table, error) {
	var table models.Table
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND active = ?", id, true).First(&table).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTableNotFound
			}
			return err
		}

		changes := map[string]interface{}{}
		if patch.Code != nil {
			code := strings.TrimSpace(*patch.Code)
			if code == "" {
				return &ValidationError{Field: "code", Message: "must not be empty"}
			}
			if code != table.Code {
				if err := ensureCodeFree(tx, code, table.ID); err != nil {
					return err
				}
			}
			changes["code"] = code
		}
		if patch.Number != nil {
			changes["number"] = *patch.Number
		}
		if patch.Name != nil {
			changes["name"] = *patch.Name
		}
		if patch.Capacity != nil {
			if *patch.Capacity <= 0 {
				return &ValidationError{Field: "capacity", Message: "must be positive"}
			}
			changes["capacity"] = *patch.Capacity
		}
		if patch.Zone != nil {
			changes["zone"] = zoneOrDefault(*patch.Zone)
		}
		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&table).Updates(changes).Error; err != nil {
			return err
		}
		fresh, err := reloadTable(tx, table.ID)
		table = fresh
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrDuplicateCode
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// SetState writes state and detail together. When expectedUpdatedAt is set the
// write only happens if the row was not modified since; otherwise last write wins.
func (s *TableService) SetState(ctx context.Context, id uint, state string, detail json.RawMessage, expectedUpdatedAt *time.Time) (*models.Table, error) {
	normalized, err := NormalizeState(state)
	if err != nil {
		return nil, err
	}
	now := s.DB.NowFunc()
	payload, err := normalizeDetail(normalized, detail, now)
	if err != nil {
		return nil, err
	}

	var table models.Table
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND active = ?", id, true).
			First(&table).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTableNotFound
		}
		if err != nil {
			return err
		}
		if expectedUpdatedAt != nil && !sameInstant(table.UpdatedAt, *expectedUpdatedAt) {
			return ErrStaleTable
		}

		changes := map[string]interface{}{
			"state":      normalized,
			"detail":     nil,
			"updated_at": now,
		}
		if payload != nil {
			changes["detail"] = *payload
		}
		err = tx.Model(&models.Table{}).Where("id = ?", table.ID).Updates(changes).Error
		if err != nil {
			return err
		}
		table, err = reloadTable(tx, table.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// reloadTable reads a fresh row. Scanning into an already populated struct
// keeps pointer fields (detail) that the row has since set to NULL.
func reloadTable(tx *gorm.DB, id uint) (models.Table, error) {
	var fresh models.Table
	err := tx.First(&fresh, id).Error
	return fresh, err
}

// Remove soft-deletes a table. Unknown or already removed ids succeed.
func (s *TableService) Remove(ctx context.Context, id uint) error {
	err := s.DB.WithContext(ctx).Model(&models.Table{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{"active": false, "updated_at": s.DB.NowFunc()}).Error
	if err != nil {
		return fmt.Errorf("remove table %d: %w", id, err)
	}
	return nil
}

// NormalizeState maps input states onto the two stored ones; "reserved" is a
// legacy alias of available.
func NormalizeState(state string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case models.TableAvailable, models.TableReserved:
		return models.TableAvailable, nil
	case models.TableOccupied:
		return models.TableOccupied, nil
	case "":
		return "", &ValidationError{Field: "state", Message: "is required"}
	default:
		return "", &ValidationError{Field: "state", Message: fmt.Sprintf("unknown state %q", state)}
	}
}

// normalizeDetail keeps detail only for occupied tables. An occupied table
// always gets a payload, defaulting to its start time.
func normalizeDetail(state string, detail json.RawMessage, now time.Time) (*datatypes.JSON, error) {
	if state != models.TableOccupied {
		return nil, nil
	}
	trimmed := strings.TrimSpace(string(detail))
	if trimmed == "" || trimmed == "null" {
		payload, err := json.Marshal(map[string]string{"startedAt": now.UTC().Format(time.RFC3339)})
		if err != nil {
			return nil, err
		}
		out := datatypes.JSON(payload)
		return &out, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, &ValidationError{Field: "detail", Message: "must be valid JSON"}
	}
	out := datatypes.JSON(trimmed)
	return &out, nil
}

func ensureCodeFree(tx *gorm.DB, code string, exceptID uint) error {
	var count int64
	q := tx.Model(&models.Table{}).Where("code = ?", code)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateCode
	}
	return nil
}

func zoneOrDefault(zone string) string {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return defaultZone
	}
	return zone
}

// sameInstant compares at millisecond precision, the resolution every driver keeps.
func sameInstant(a, b time.Time) bool {
	return a.Truncate(time.Millisecond).Equal(b.Truncate(time.Millisecond))
}

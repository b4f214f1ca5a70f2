package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yeremiapane/cafe-pos/models"
	"gorm.io/gorm"
)

const maxLayoutTables = 500

// capacityBuckets is the expansion order of a distribution.
var capacityBuckets = []int{2, 4, 6, 8}

// LayoutSpec describes a bulk table generation run.
type LayoutSpec struct {
	Total       int         `json:"total"`
	Dist        map[int]int `json:"dist"`
	Zones       []string    `json:"zones"`
	Reset       bool        `json:"reset"`
	StartNumber int         `json:"startNumber"`
}

type LayoutResult struct {
	Created     []models.Table
	Reactivated []models.Table
	// Retired holds ids soft-deleted by reset and not brought back by this run.
	Retired []uint
}

// TableCode -> kode meja dari nomor urut, mis. MESA-007
func TableCode(number int) string {
	return fmt.Sprintf("MESA-%03d", number)
}

// ExpandCapacities flattens a distribution into one capacity per table:
// bucket counts first (2, 4, 6, 8), then capacity-4 padding up to total.
func ExpandCapacities(total int, dist map[int]int) []int {
	caps := make([]int, 0, total)
	for _, bucket := range capacityBuckets {
		for i := 0; i < dist[bucket]; i++ {
			caps = append(caps, bucket)
		}
	}
	for len(caps) < total {
		caps = append(caps, 4)
	}
	return caps
}

func knownBucket(capacity int) bool {
	for _, bucket := range capacityBuckets {
		if bucket == capacity {
			return true
		}
	}
	return false
}

func validateLayout(spec LayoutSpec) error {
	if spec.Total < 0 || spec.Total > maxLayoutTables {
		return &ValidationError{Field: "total", Message: fmt.Sprintf("must be between 0 and %d", maxLayoutTables)}
	}
	sum := 0
	for bucket, n := range spec.Dist {
		if !knownBucket(bucket) {
			return &ValidationError{Field: "dist", Message: fmt.Sprintf("capacity %d is not one of 2, 4, 6, 8", bucket)}
		}
		if n < 0 {
			return &ValidationError{Field: "dist", Message: fmt.Sprintf("count for capacity %d is negative", bucket)}
		}
		sum += n
	}
	if sum > maxLayoutTables {
		return &ValidationError{Field: "dist", Message: fmt.Sprintf("more than %d tables requested", maxLayoutTables)}
	}
	return nil
}

// BulkGenerate upserts tables by code. Existing codes (active or not) are
// reactivated and overwritten in place; only inserted rows count as created.
func (s *TableService) BulkGenerate(ctx context.Context, spec LayoutSpec) (*LayoutResult, error) {
	if err := validateLayout(spec); err != nil {
		return nil, err
	}
	start := spec.StartNumber
	if start <= 0 {
		start = 1
	}
	zones := make([]string, 0, len(spec.Zones))
	for _, z := range spec.Zones {
		if z = strings.TrimSpace(z); z != "" {
			zones = append(zones, z)
		}
	}
	if len(zones) == 0 {
		zones = []string{defaultZone}
	}
	caps := ExpandCapacities(spec.Total, spec.Dist)

	result := &LayoutResult{Created: []models.Table{}, Reactivated: []models.Table{}, Retired: []uint{}}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		retired := map[uint]bool{}
		if spec.Reset {
			var ids []uint
			if err := tx.Model(&models.Table{}).Where("active = ?", true).Pluck("id", &ids).Error; err != nil {
				return err
			}
			if len(ids) > 0 {
				err := tx.Model(&models.Table{}).Where("id IN ?", ids).
					Updates(map[string]interface{}{"active": false, "updated_at": s.DB.NowFunc()}).Error
				if err != nil {
					return err
				}
			}
			for _, id := range ids {
				retired[id] = true
			}
		}

		for i, capacity := range caps {
			number := start + i
			code := TableCode(number)
			zone := zones[i%len(zones)]
			name := fmt.Sprintf("Mesa %d", number)

			var existing models.Table
			err := tx.Where("code = ?", code).First(&existing).Error
			switch {
			case err == nil:
				err = tx.Model(&models.Table{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
					"number":     number,
					"name":       name,
					"capacity":   capacity,
					"zone":       zone,
					"state":      models.TableAvailable,
					"detail":     nil,
					"active":     true,
					"updated_at": s.DB.NowFunc(),
				}).Error
				if err != nil {
					return err
				}
				existing, err = reloadTable(tx, existing.ID)
				if err != nil {
					return err
				}
				delete(retired, existing.ID)
				result.Reactivated = append(result.Reactivated, existing)
			case errors.Is(err, gorm.ErrRecordNotFound):
				table := models.Table{
					Code:     code,
					Number:   number,
					Name:     name,
					Capacity: capacity,
					Zone:     zone,
					State:    models.TableAvailable,
					Active:   true,
				}
				if err := tx.Create(&table).Error; err != nil {
					return err
				}
				result.Created = append(result.Created, table)
			default:
				return err
			}
		}

		for id := range retired {
			result.Retired = append(result.Retired, id)
		}
		sort.Slice(result.Retired, func(i, j int) bool { return result.Retired[i] < result.Retired[j] })
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bulk generate: %w", err)
	}
	return result, nil
}

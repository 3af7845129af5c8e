package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/MercyNyamusi/webhook/internal/conversation_service/domain"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// SeedVendor is one vendor entry of a seed file.
type SeedVendor struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	DeviceToken string `mapstructure:"device_token"`
}

// SeedBusiness is one business entry of a seed file.
type SeedBusiness struct {
	ID          string `mapstructure:"id"`
	VendorID    string `mapstructure:"vendor_id"`
	Name        string `mapstructure:"name"`
	PhoneNumber string `mapstructure:"phone_number"`
}

// Seed lists the vendors and businesses a memory store starts with.
// Vendors and businesses are provisioned outside the engine, so without a
// seed every webhook resolves to ErrBusinessNotFound.
type Seed struct {
	Vendors    []SeedVendor   `mapstructure:"vendors"`
	Businesses []SeedBusiness `mapstructure:"businesses"`
}

// LoadSeed reads a seed file in any format viper understands (yaml, json, toml).
func LoadSeed(path string) (*Seed, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	var seed Seed
	if err := v.Unmarshal(&seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return &seed, nil
}

// ApplySeed validates seed and loads it into the store. Nothing is written
// when any entry is invalid.
func (s *Store) ApplySeed(seed *Seed, now time.Time) error {
	if seed == nil {
		return nil
	}

	vendors := make([]domain.Vendor, 0, len(seed.Vendors))
	known := make(map[uuid.UUID]bool, len(seed.Vendors))
	for i, sv := range seed.Vendors {
		id, err := uuid.Parse(sv.ID)
		if err != nil {
			return fmt.Errorf("%w: vendor %d: invalid id %q", domain.ErrInvalidInput, i, sv.ID)
		}
		v := domain.Vendor{ID: id, Name: sv.Name, DeviceToken: strings.TrimSpace(sv.DeviceToken), CreatedAt: now}
		if v.DeviceToken != "" {
			ts := now
			v.DeviceTokenUpdatedAt = &ts
		}
		vendors = append(vendors, v)
		known[id] = true
	}

	businesses := make([]domain.Business, 0, len(seed.Businesses))
	phones := make(map[string]bool, len(seed.Businesses))
	for i, sb := range seed.Businesses {
		id, err := uuid.Parse(sb.ID)
		if err != nil {
			return fmt.Errorf("%w: business %d: invalid id %q", domain.ErrInvalidInput, i, sb.ID)
		}
		vendorID, err := uuid.Parse(sb.VendorID)
		if err != nil || !known[vendorID] {
			return fmt.Errorf("%w: business %d: unknown vendor %q", domain.ErrInvalidInput, i, sb.VendorID)
		}
		phone := strings.TrimSpace(sb.PhoneNumber)
		if phone == "" || phones[phone] {
			return fmt.Errorf("%w: business %d: missing or duplicate phone number %q", domain.ErrInvalidInput, i, sb.PhoneNumber)
		}
		phones[phone] = true
		businesses = append(businesses, domain.Business{ID: id, Name: sb.Name, PhoneNumber: phone, VendorID: vendorID, CreatedAt: now})
	}

	for _, v := range vendors {
		s.PutVendor(v)
	}
	for _, b := range businesses {
		s.PutBusiness(b)
	}
	return nil
}

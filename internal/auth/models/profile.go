package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
)

// Metadata keys for profile fields, as stored by the identity provider.
const (
	KeyFullName        = "full_name"
	KeyGender          = "gender"
	KeyDateOfBirth     = "dob"
	KeyHeight          = "height"
	KeyWeight          = "weight"
	KeyPhone           = "phone"
	KeyAddress         = "address"
	KeyRecoveryEmail   = "recoveryEmail"
	KeyThemePreference = "themePreference"
)

const dateOfBirthLayout = "2006-01-02"

// Profile is the typed view of the profile fields carried in identity metadata.
// Nil fields are absent; Apply leaves absent fields untouched.
type Profile struct {
	FullName        *string  `json:"full_name,omitempty"`
	Gender          *string  `json:"gender,omitempty"`
	DateOfBirth     *string  `json:"dob,omitempty"`
	HeightCm        *float64 `json:"height,omitempty"`
	WeightKg        *float64 `json:"weight,omitempty"`
	Phone           *string  `json:"phone,omitempty"`
	Address         *string  `json:"address,omitempty"`
	RecoveryEmail   *string  `json:"recoveryEmail,omitempty"`
	ThemePreference *string  `json:"themePreference,omitempty"`
}

// Validate checks every present field. now bounds the date of birth.
func (p Profile) Validate(now time.Time) error {
	if p.FullName != nil && !govalidator.StringLength(strings.TrimSpace(*p.FullName), "1", "100") {
		return fmt.Errorf("full_name must be 1-100 characters")
	}
	if p.Gender != nil && !govalidator.StringLength(*p.Gender, "0", "32") {
		return fmt.Errorf("gender must be at most 32 characters")
	}
	if p.DateOfBirth != nil {
		dob, err := time.Parse(dateOfBirthLayout, *p.DateOfBirth)
		if err != nil {
			return fmt.Errorf("dob must be formatted YYYY-MM-DD")
		}
		if dob.After(now) {
			return fmt.Errorf("dob must not be in the future")
		}
	}
	if p.HeightCm != nil && (*p.HeightCm < 50 || *p.HeightCm > 300) {
		return fmt.Errorf("height must be between 50 and 300 cm")
	}
	if p.WeightKg != nil && (*p.WeightKg < 20 || *p.WeightKg > 500) {
		return fmt.Errorf("weight must be between 20 and 500 kg")
	}
	if p.Phone != nil && *p.Phone != "" && !govalidator.Matches(*p.Phone, `^\+?[0-9 ()-]{7,20}$`) {
		return fmt.Errorf("phone is not a valid number")
	}
	if p.Address != nil && !govalidator.StringLength(*p.Address, "0", "255") {
		return fmt.Errorf("address must be at most 255 characters")
	}
	if p.RecoveryEmail != nil && *p.RecoveryEmail != "" && !govalidator.IsEmail(*p.RecoveryEmail) {
		return fmt.Errorf("recoveryEmail is not a valid email")
	}
	if p.ThemePreference != nil && !govalidator.IsIn(*p.ThemePreference, "light", "dark", "system") {
		return fmt.Errorf("themePreference must be light, dark or system")
	}
	return nil
}

// Apply returns a copy of md with the present profile fields written over it.
func (p Profile) Apply(md Metadata) Metadata {
	out := md.Clone()
	if out == nil {
		out = Metadata{}
	}
	setString(out, KeyFullName, p.FullName)
	setString(out, KeyGender, p.Gender)
	setString(out, KeyDateOfBirth, p.DateOfBirth)
	if p.HeightCm != nil {
		out[KeyHeight] = *p.HeightCm
	}
	if p.WeightKg != nil {
		out[KeyWeight] = *p.WeightKg
	}
	setString(out, KeyPhone, p.Phone)
	setString(out, KeyAddress, p.Address)
	setString(out, KeyRecoveryEmail, p.RecoveryEmail)
	setString(out, KeyThemePreference, p.ThemePreference)
	return out
}

// IsEmpty reports whether no field is present.
func (p Profile) IsEmpty() bool {
	return p == Profile{}
}

// ProfileFromMetadata reads the known profile keys. Values of the wrong type
// are ignored; numbers may arrive as JSON floats or strings.
func ProfileFromMetadata(md Metadata) Profile {
	var p Profile
	p.FullName = getString(md, KeyFullName)
	p.Gender = getString(md, KeyGender)
	p.DateOfBirth = getString(md, KeyDateOfBirth)
	p.HeightCm = getFloat(md, KeyHeight)
	p.WeightKg = getFloat(md, KeyWeight)
	p.Phone = getString(md, KeyPhone)
	p.Address = getString(md, KeyAddress)
	p.RecoveryEmail = getString(md, KeyRecoveryEmail)
	p.ThemePreference = getString(md, KeyThemePreference)
	return p
}

func setString(md Metadata, key string, v *string) {
	if v != nil {
		md[key] = *v
	}
}

func getString(md Metadata, key string) *string {
	if s, ok := md[key].(string); ok {
		return &s
	}
	return nil
}

func getFloat(md Metadata, key string) *float64 {
	switch v := md[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

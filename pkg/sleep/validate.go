package sleep

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance for domain structs.
var validate = validator.New()

// ValidateSession checks a session against the documented domain ranges.
// Sessions that fail validation are rejected before reaching memory.
func ValidateSession(s *Session) error {
	if s == nil {
		return fmt.Errorf("sleep: session is nil")
	}
	if err := validate.Struct(s); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("sleep: session field %s failed %s validation", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("sleep: session validation: %w", err)
	}
	if _, err := ParseClock(s.Bedtime); err != nil {
		return fmt.Errorf("sleep: bedtime: %w", err)
	}
	if _, err := ParseClock(s.Waketime); err != nil {
		return fmt.Errorf("sleep: waketime: %w", err)
	}
	if s.Date != "" {
		if _, err := time.Parse(DateLayout, s.Date); err != nil {
			return fmt.Errorf("sleep: session_date must be %s form, got %q", DateLayout, s.Date)
		}
	}
	return nil
}

// ValidateProfile checks an optional profile. A nil profile is valid.
func ValidateProfile(p *Profile) error {
	if p == nil {
		return nil
	}
	if err := validate.Struct(p); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("sleep: profile field %s failed %s validation", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("sleep: profile validation: %w", err)
	}
	return nil
}

// ValidateUserID rejects empty and obviously-default user identifiers.
func ValidateUserID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("sleep: user id is required")
	}
	switch strings.ToLower(trimmed) {
	case "default", "default_user", "anonymous", "unknown":
		return fmt.Errorf("sleep: user id %q is a placeholder, not an identity", trimmed)
	}
	return nil
}

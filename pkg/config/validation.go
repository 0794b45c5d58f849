package config

import (
	"fmt"
	"reflect"
	"time"
)

type RequiredValidator struct{}

func (v *RequiredValidator) Validate(key string, value interface{}) error {
	if value == nil {
		return fmt.Errorf("%s is required", key)
	}
	if str, ok := value.(string); ok && str == "" {
		return fmt.Errorf("%s cannot be empty", key)
	}
	return nil
}

// RangeValidator accepts anything toInt understands, so "12" passes too.
type RangeValidator struct {
	Min int
	Max int
}

func (v *RangeValidator) Validate(key string, value interface{}) error {
	num, err := toInt(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if num < v.Min || (v.Max > v.Min && num > v.Max) {
		if v.Max > v.Min {
			return fmt.Errorf("%s: value %d out of range [%d, %d]", key, num, v.Min, v.Max)
		}
		return fmt.Errorf("%s: value %d is less than %d", key, num, v.Min)
	}
	return nil
}

// PortValidator accepts TCP ports.
func PortValidator() *RangeValidator {
	return &RangeValidator{Min: 1, Max: 65535}
}

type EnumValidator struct {
	Allowed []interface{}
}

func (v *EnumValidator) Validate(key string, value interface{}) error {
	for _, allowed := range v.Allowed {
		if reflect.DeepEqual(allowed, value) {
			return nil
		}
	}
	return fmt.Errorf("%s: value %v not in allowed set %v", key, value, v.Allowed)
}

type DurationValidator struct {
	Min time.Duration
	Max time.Duration
}

func (v *DurationValidator) Validate(key string, value interface{}) error {
	d, err := toDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d < v.Min || (v.Max > 0 && d > v.Max) {
		return fmt.Errorf("%s: duration %v out of range [%v, %v]", key, d, v.Min, v.Max)
	}
	return nil
}

type BoolValidator struct{}

func (v *BoolValidator) Validate(key string, value interface{}) error {
	if _, err := toBool(value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// Package validation checks decoded JSON bodies before anything touches the
// store. Every function returns nil for valid input or an error whose message
// is safe to echo back to the client.
package validation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// ErrTaken marks a uniqueness failure (email, phone, login). Handlers map it
// to 409 instead of the usual 400.
var ErrTaken = errors.New("already taken")

// Store is the narrow lookup surface validators need. repo.GormRepo
// implements it.
type Store interface {
	CategoryExists(ctx context.Context, id uint) (bool, error)
	CustomerExists(ctx context.Context, id uint) (bool, error)
	ProductExists(ctx context.Context, id uint) (bool, error)
	OrderExists(ctx context.Context, id uint) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	PhoneTaken(ctx context.Context, phone string) (bool, error)
	LoginTaken(ctx context.Context, login string) (bool, error)
}

var (
	emailRe = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)
	phoneRe = regexp.MustCompile(`^\d{3}-\d{3}-\d{3}$`)
	loginRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Fields checks the decoded body against the allowed field set. For POST every
// field must also be present and truthy.
func Fields(fields []string, body map[string]any, method string) error {
	if body == nil {
		return fmt.Errorf("request body must be valid JSON with fields: %s", strings.Join(fields, ", "))
	}
	if method == "POST" {
		var missing []string
		for _, f := range fields {
			if !truthy(body[f]) {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
		}
	}
	var extra []string
	for k := range body {
		if !contains(fields, k) {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("unexpected fields: %s", strings.Join(extra, ", "))
	}
	return nil
}

// String requires a non-empty string, except for free-text fields
// (description, content) which may be empty.
func String(value any, name string, maxLength int) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("field %s must be a string", name)
	}
	exempt := name == "description" || name == "content"
	if !exempt && strings.TrimSpace(s) == "" {
		return fmt.Errorf("field %s must be a non-empty string", name)
	}
	if maxLength > 0 && len(s) > maxLength {
		return fmt.Errorf("field %s must not exceed %d characters", name, maxLength)
	}
	return nil
}

// Number requires a finite number >= 0 and applies the per-field ranges:
// vat 0..30, discount 0..1, rating 1..5.
func Number(value any, name string, isInteger bool) error {
	f, ok := asFloat(value)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("field %s must be a valid number", name)
	}
	if f < 0 {
		return fmt.Errorf("field %s must be a positive number", name)
	}
	if isInteger && f != math.Trunc(f) {
		return fmt.Errorf("field %s must be an integer", name)
	}
	switch name {
	case "vat":
		if f > 30 {
			return fmt.Errorf("field vat must be between 0 and 30")
		}
	case "discount":
		if f > 1 {
			return fmt.Errorf("field discount must be between 0 and 1")
		}
	case "rating":
		if f < 1 || f > 5 {
			return fmt.Errorf("field rating must be between 1 and 5")
		}
	}
	return nil
}

// ID requires an integer that exists according to the given lookup.
func ID(ctx context.Context, value any, kind string, exists func(context.Context, uint) (bool, error)) error {
	f, ok := asFloat(value)
	if !ok || f != math.Trunc(f) || f < 0 {
		return fmt.Errorf("field %sId must be an integer", kind)
	}
	found, err := exists(ctx, uint(f))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("a %s with id %d does not exist", kind, uint(f))
	}
	return nil
}

func Email(ctx context.Context, store Store, value any) error {
	s, ok := value.(string)
	if !ok || !emailRe.MatchString(s) {
		return errors.New("field email must be a valid lowercase email address")
	}
	taken, err := store.EmailTaken(ctx, s)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: email %s is already in use", ErrTaken, s)
	}
	return nil
}

func Phone(ctx context.Context, store Store, value any) error {
	s, ok := value.(string)
	if !ok || !phoneRe.MatchString(s) {
		return errors.New("field phone must match the format XXX-XXX-XXX")
	}
	taken, err := store.PhoneTaken(ctx, s)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: phone %s is already in use", ErrTaken, s)
	}
	return nil
}

func Login(ctx context.Context, store Store, value any) error {
	s, ok := value.(string)
	if !ok || len(s) < 8 || !loginRe.MatchString(s) {
		return errors.New("field login must be at least 8 characters of letters, digits or underscores")
	}
	taken, err := store.LoginTaken(ctx, s)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: login %s is already in use", ErrTaken, s)
	}
	return nil
}

func Password(value any) error {
	s, ok := value.(string)
	if !ok || len(s) < 8 {
		return errors.New("field password must be at least 8 characters")
	}
	return nil
}

var itemFields = []string{"productId", "quantity", "unitPrice", "vat", "discount"}

// Items validates the order line list. Errors from all items are collected
// and joined so the client sees every problem at once.
func Items(ctx context.Context, store Store, value any) error {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return errors.New("items must be a non-empty array")
	}
	var errs []string
	add := func(i int, err error) {
		if err != nil {
			errs = append(errs, fmt.Sprintf("item %d: %v", i+1, err))
		}
	}
	for i, raw := range list {
		item, ok := raw.(map[string]any)
		if !ok {
			add(i, errors.New("must be an object"))
			continue
		}
		for k := range item {
			if !contains(itemFields, k) {
				add(i, fmt.Errorf("unexpected field %s", k))
			}
		}
		add(i, ID(ctx, item["productId"], "product", store.ProductExists))
		if err := Number(item["quantity"], "quantity", true); err != nil {
			add(i, err)
		} else if f, _ := asFloat(item["quantity"]); f == 0 {
			add(i, errors.New("field quantity must be a positive integer"))
		}
		add(i, Number(item["unitPrice"], "unitPrice", false))
		if v, present := item["vat"]; present {
			add(i, Number(v, "vat", false))
		}
		if d, present := item["discount"]; present {
			add(i, Number(d, "discount", false))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Role gates endpoints restricted to a single role.
func Role(actual, expected string) error {
	if actual != expected {
		return fmt.Errorf("this action requires the %s role", expected)
	}
	return nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case uint:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

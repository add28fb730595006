package mutation

import (
	"strings"
	"unicode/utf8"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
)

// checkValue coerces a client value for f and applies its bounds.
func checkValue(f schema.Field, raw any) (any, error) {
	v, err := schema.Coerce(f, raw)
	if err != nil {
		return nil, domain.Errorf(domain.KindValidation, "%v", err)
	}
	if s, ok := v.(string); ok {
		if f.Required && strings.TrimSpace(s) == "" {
			return nil, domain.Errorf(domain.KindValidation, "%s must not be empty", f.Name)
		}
		if f.MaxLen > 0 && utf8.RuneCountInString(s) > f.MaxLen {
			return nil, domain.Errorf(domain.KindValidation, "%s must be at most %d characters", f.Name, f.MaxLen)
		}
	}
	return v, nil
}

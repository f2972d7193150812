package service

import (
	"errors"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/s9b/memenem-backend/internal/models"
)

// Limits bounds the size of a generation request
type Limits struct {
	MaxTemplates  int
	MaxVariations int
}

// DefaultLimits returns the request bounds used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxTemplates: 10, MaxVariations: 6}
}

var notBlank = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

// ValidateRequest checks a generation request against limits. The returned
// error is a *ValidationError.
func ValidateRequest(req *models.GenerationRequest, limits Limits) error {
	styles := make([]interface{}, len(models.HumorStyles))
	for i, s := range models.HumorStyles {
		styles[i] = s
	}

	err := validation.ValidateStruct(req,
		validation.Field(&req.Topic, notBlank, validation.RuneLength(1, 200)),
		validation.Field(&req.Style, validation.Required, validation.In(styles...)),
		validation.Field(&req.MaxTemplates,
			validation.Required.Error("must be between 1 and "+strconv.Itoa(limits.MaxTemplates)),
			validation.Min(1), validation.Max(limits.MaxTemplates)),
		validation.Field(&req.VariationsPerTemplate,
			validation.Required.Error("must be between 1 and "+strconv.Itoa(limits.MaxVariations)),
			validation.Min(1), validation.Max(limits.MaxVariations)),
		validation.Field(&req.Source, validation.By(func(value interface{}) error {
			if s, _ := value.(models.SourceName); s != "" && !s.Valid() {
				return errors.New("must be one of imgflip, reddit, knowyourmeme, all")
			}
			return nil
		})),
		validation.Field(&req.TemplateID, validation.Length(0, 128)),
	)
	if err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

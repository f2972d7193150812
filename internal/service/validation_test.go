package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s9b/memenem-backend/internal/models"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *models.GenerationRequest)
		field   string
		wantErr bool
	}{
		{name: "valid", mutate: func(r *models.GenerationRequest) {}},
		{name: "upper bounds", mutate: func(r *models.GenerationRequest) { r.MaxTemplates = 10; r.VariationsPerTemplate = 6 }},
		{name: "blank topic", mutate: func(r *models.GenerationRequest) { r.Topic = "   " }, field: "topic", wantErr: true},
		{name: "long topic", mutate: func(r *models.GenerationRequest) { r.Topic = strings.Repeat("x", 201) }, field: "topic", wantErr: true},
		{name: "unknown style", mutate: func(r *models.GenerationRequest) { r.Style = "deadpan" }, field: "style", wantErr: true},
		{name: "zero templates", mutate: func(r *models.GenerationRequest) { r.MaxTemplates = 0 }, field: "max_templates", wantErr: true},
		{name: "too many templates", mutate: func(r *models.GenerationRequest) { r.MaxTemplates = 11 }, field: "max_templates", wantErr: true},
		{name: "negative variations", mutate: func(r *models.GenerationRequest) { r.VariationsPerTemplate = -1 }, field: "variations_per_template", wantErr: true},
		{name: "too many variations", mutate: func(r *models.GenerationRequest) { r.VariationsPerTemplate = 7 }, field: "variations_per_template", wantErr: true},
		{name: "unknown source", mutate: func(r *models.GenerationRequest) { r.Source = "9gag" }, field: "source", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sampleRequest()
			tt.mutate(&req)

			err := ValidateRequest(&req, DefaultLimits())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields(), tt.field)
			assert.Contains(t, verr.Detail(), tt.field+":")
		})
	}
}

func TestValidateRequest_CustomLimits(t *testing.T) {
	req := sampleRequest()
	req.MaxTemplates = 4

	err := ValidateRequest(&req, Limits{MaxTemplates: 3, MaxVariations: 6})
	assert.ErrorIs(t, err, ErrValidation)
}

package config

import (
	"github.com/go-playground/validator/v10"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/publicurl"
)

// newValidator returns a validator with the custom_domain and bucket_name
// tags registered.
func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or a nil function.
	_ = v.RegisterValidation("custom_domain", func(fl validator.FieldLevel) bool {
		return publicurl.ValidCustomDomain(fl.Field().String())
	})
	_ = v.RegisterValidation("bucket_name", func(fl validator.FieldLevel) bool {
		return validation.BucketName(fl.Field().String()) == nil
	})
	return v
}
